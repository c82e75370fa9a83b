package domain

import "time"

// Plan is a user's subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanPro
}

// User is a registered account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Plan         Plan
	CreatedAt    time.Time
}
