package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/satprep/internal/decksync"
	"github.com/conorfennell/satprep/internal/storage"
)

type fakeSyncer struct {
	calls   int
	results []decksync.Result
}

func (f *fakeSyncer) Run(context.Context) ([]decksync.Result, error) {
	f.calls++
	return f.results, nil
}

type fakeDue []storage.OwnerDue

func (f fakeDue) DueCounts(context.Context, time.Time) ([]storage.OwnerDue, error) {
	return f, nil
}

type recordingNotifier struct {
	got  map[string]int
	fail string
}

func (r *recordingNotifier) NotifyDue(_ context.Context, ownerKey string, due int) error {
	if ownerKey == r.fail {
		return errors.New("mailbox full")
	}
	r.got[ownerKey] = due
	return nil
}

type countPruner int

func (c countPruner) Prune() int { return int(c) }

func TestRunDigest(t *testing.T) {
	n := &recordingNotifier{got: map[string]int{}, fail: "anon:x"}
	s := New(Config{DigestHour: 7}, nil, fakeDue{
		{OwnerKey: "user:1", Due: 4},
		{OwnerKey: "anon:x", Due: 1},
		{OwnerKey: "user:2", Due: 9},
	}, n, zerolog.Nop())

	err := s.RunDigest(context.Background())
	assert.ErrorContains(t, err, "1 of 3")
	assert.Equal(t, map[string]int{"user:1": 4, "user:2": 9}, n.got)
}

func TestRunSyncReportsSourceErrors(t *testing.T) {
	f := &fakeSyncer{results: []decksync.Result{{SourceID: 1}, {SourceID: 2, Errors: []error{errors.New("bad file")}}}}
	s := New(Config{}, f, nil, nil, zerolog.Nop())
	assert.ErrorContains(t, s.RunSync(context.Background()), "bad file")
	assert.Equal(t, 1, f.calls)
}

func TestRunPrune(t *testing.T) {
	s := New(Config{}, nil, nil, nil, zerolog.Nop(), countPruner(2), countPruner(3))
	assert.Equal(t, 5, s.RunPrune())
}

func TestStartRegistersEnabledJobs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"all", Config{SyncInterval: time.Hour, DigestHour: 7}, 3},
		{"sync disabled", Config{SyncInterval: 0, DigestHour: 7}, 2},
		{"digest disabled", Config{SyncInterval: time.Hour, DigestHour: -1}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.cfg, &fakeSyncer{}, fakeDue{}, nil, zerolog.Nop(), countPruner(0))
			require.NoError(t, s.Start())
			defer s.Stop()
			assert.Equal(t, tc.want, s.Jobs())
		})
	}
}

type clockedDue struct{ at time.Time }

func (c *clockedDue) DueCounts(_ context.Context, now time.Time) ([]storage.OwnerDue, error) {
	c.at = now
	return nil, nil
}

func TestDigestCountsInUTC(t *testing.T) {
	due := &clockedDue{}
	s := New(Config{DigestHour: 7}, nil, due, nil, zerolog.Nop())
	require.NoError(t, s.RunDigest(context.Background()))
	require.False(t, due.at.IsZero())
	assert.Equal(t, time.UTC, due.at.Location())
}
