package auth

import (
	"context"

	"github.com/conorfennell/satprep/internal/domain"
)

type ctxkey string

const (
	ownerkey ctxkey = "owner"
	userkey  ctxkey = "autheduser"
)

// AuthedUser is the signed-in user as described by their session token.
type AuthedUser struct {
	ID   int64
	Plan domain.Plan
}

// StoreOwnerInContext records whose deck the request operates on, and the
// signed-in user if there is one.
func StoreOwnerInContext(ctx context.Context, owner domain.Owner, user *AuthedUser) context.Context {
	ctx = context.WithValue(ctx, ownerkey, owner)
	if user != nil {
		ctx = context.WithValue(ctx, userkey, user)
	}
	return ctx
}

// OwnerFromContext returns the zero Owner when the request was not
// identified.
func OwnerFromContext(ctx context.Context) domain.Owner {
	owner, _ := ctx.Value(ownerkey).(domain.Owner)
	return owner
}

func UserFromContext(ctx context.Context) *AuthedUser {
	au, ok := ctx.Value(userkey).(*AuthedUser)
	if ok {
		return au
	}
	return nil
}
