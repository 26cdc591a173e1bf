package auth

import (
	"context"
	"errors"
	"time"

	"github.com/orienta-lab/orienta/internal/store"
)

const (
	// MaxLoginAttempts failures lock the source out for LockWindow.
	MaxLoginAttempts = 5
	LockWindow       = 10 * time.Minute
)

// LockoutStore is the slice of persistence the lockout guard needs.
type LockoutStore interface {
	GetLoginAttempt(ctx context.Context, ip string) (store.LoginAttempt, error)
	RecordLoginFailure(ctx context.Context, ip string, lockAfter int, lockedUntil int64) (store.LoginAttempt, error)
	ClearLoginAttempts(ctx context.Context, ip string) error
}

// LockoutGuard applies a fixed-window lockout per source IP on the admin
// login path. There is no sliding window and no backoff: the counter only
// resets when a successful login calls Clear.
type LockoutGuard struct {
	store       LockoutStore
	now         func() time.Time
	maxAttempts int
	window      time.Duration
}

func NewLockoutGuard(s LockoutStore) *LockoutGuard {
	return &LockoutGuard{
		store:       s,
		now:         time.Now,
		maxAttempts: MaxLoginAttempts,
		window:      LockWindow,
	}
}

// IsLocked reports whether the source is inside an active lockout window.
// An elapsed window unlocks implicitly on the next check; the attempt
// counter stays elevated until Clear.
func (g *LockoutGuard) IsLocked(ctx context.Context, ip string) (bool, error) {
	a, err := g.store.GetLoginAttempt(ctx, ip)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.LockedUntil > 0 && a.LockedUntil > g.now().Unix(), nil
}

// RecordFailure bumps the counter; reaching the threshold sets the lockout
// expiry to now + window.
func (g *LockoutGuard) RecordFailure(ctx context.Context, ip string) error {
	lockedUntil := g.now().Add(g.window).Unix()
	_, err := g.store.RecordLoginFailure(ctx, ip, g.maxAttempts, lockedUntil)
	return err
}

// Clear deletes the source's record entirely; both the counter and any
// lockout vanish.
func (g *LockoutGuard) Clear(ctx context.Context, ip string) error {
	return g.store.ClearLoginAttempts(ctx, ip)
}
