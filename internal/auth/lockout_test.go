package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orienta-lab/orienta/internal/store"
)

type fakeLockoutStore struct {
	rows map[string]store.LoginAttempt
}

func newFakeLockoutStore() *fakeLockoutStore {
	return &fakeLockoutStore{rows: map[string]store.LoginAttempt{}}
}

func (f *fakeLockoutStore) GetLoginAttempt(_ context.Context, ip string) (store.LoginAttempt, error) {
	a, ok := f.rows[ip]
	if !ok {
		return store.LoginAttempt{}, fmt.Errorf("login attempt: %w", store.ErrNotFound)
	}
	return a, nil
}

func (f *fakeLockoutStore) RecordLoginFailure(_ context.Context, ip string, lockAfter int, lockedUntil int64) (store.LoginAttempt, error) {
	a := f.rows[ip]
	a.IP = ip
	a.Attempts++
	if a.Attempts >= lockAfter {
		a.LockedUntil = lockedUntil
	}
	f.rows[ip] = a
	return a, nil
}

func (f *fakeLockoutStore) ClearLoginAttempts(_ context.Context, ip string) error {
	delete(f.rows, ip)
	return nil
}

func testGuard(fs *fakeLockoutStore, now *time.Time) *LockoutGuard {
	g := NewLockoutGuard(fs)
	g.now = func() time.Time { return *now }
	return g
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	fs := newFakeLockoutStore()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g := testGuard(fs, &now)
	ctx := context.Background()
	const ip = "10.0.0.9"

	for i := 0; i < 4; i++ {
		require.NoError(t, g.RecordFailure(ctx, ip))
		locked, err := g.IsLocked(ctx, ip)
		require.NoError(t, err)
		require.False(t, locked, "failure %d must not lock yet", i+1)
	}

	require.NoError(t, g.RecordFailure(ctx, ip))
	locked, err := g.IsLocked(ctx, ip)
	require.NoError(t, err)
	require.True(t, locked, "fifth failure locks immediately")
}

func TestLockoutExpiresImplicitly(t *testing.T) {
	fs := newFakeLockoutStore()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g := testGuard(fs, &now)
	ctx := context.Background()
	const ip = "10.0.0.9"

	for i := 0; i < 5; i++ {
		require.NoError(t, g.RecordFailure(ctx, ip))
	}
	locked, err := g.IsLocked(ctx, ip)
	require.NoError(t, err)
	require.True(t, locked)

	// the window elapsing unlocks on the next check, no reset needed
	now = now.Add(LockWindow + time.Second)
	locked, err = g.IsLocked(ctx, ip)
	require.NoError(t, err)
	require.False(t, locked)

	// but the counter stays elevated: one more failure re-locks
	require.NoError(t, g.RecordFailure(ctx, ip))
	locked, err = g.IsLocked(ctx, ip)
	require.NoError(t, err)
	require.True(t, locked)
}

func TestLockoutClearRemovesRecord(t *testing.T) {
	fs := newFakeLockoutStore()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g := testGuard(fs, &now)
	ctx := context.Background()
	const ip = "10.0.0.9"

	for i := 0; i < 5; i++ {
		require.NoError(t, g.RecordFailure(ctx, ip))
	}
	require.NoError(t, g.Clear(ctx, ip))

	locked, err := g.IsLocked(ctx, ip)
	require.NoError(t, err)
	require.False(t, locked)
	require.NotContains(t, fs.rows, ip, "clear deletes the record entirely")

	// fresh record after clear: a single failure starts over at 1
	require.NoError(t, g.RecordFailure(ctx, ip))
	require.Equal(t, 1, fs.rows[ip].Attempts)
}

func TestLockoutUnknownSourceNotLocked(t *testing.T) {
	g := testGuard(newFakeLockoutStore(), &time.Time{})
	locked, err := g.IsLocked(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	require.False(t, locked)
}
