package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/orienta-lab/orienta/internal/store"
)

// SessionStore is the slice of persistence the session guard needs.
type SessionStore interface {
	UpsertSession(ctx context.Context, studentID int64, token, userAgent string) error
	GetSessionToken(ctx context.Context, studentID int64) (string, error)
}

// SessionGuard binds each student to a single live opaque token. Issuing a
// new token overwrites the stored one, which is the sole mechanism that
// invalidates older browser sessions for that student.
type SessionGuard struct {
	store    SessionStore
	newToken func() string
}

func NewSessionGuard(s SessionStore) *SessionGuard {
	return &SessionGuard{
		store:    s,
		newToken: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Issue generates a fresh token for the student and stores it together with
// the requesting browser's user agent. The user agent is audit data only,
// it is never checked during validation.
func (g *SessionGuard) Issue(ctx context.Context, studentID int64, userAgent string) (string, error) {
	token := g.newToken()
	if err := g.store.UpsertSession(ctx, studentID, token, userAgent); err != nil {
		return "", err
	}
	return token, nil
}

// Validate reports whether presented exactly matches the stored token for
// the student. Missing sessions and mismatches are both false; callers must
// then clear their own credential and force re-entry through the join flow.
func (g *SessionGuard) Validate(ctx context.Context, studentID int64, presented string) (bool, error) {
	if presented == "" {
		return false, nil
	}
	stored, err := g.store.GetSessionToken(ctx, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == presented, nil
}
