package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orienta-lab/orienta/internal/store"
)

type fakeSessionStore struct {
	tokens map[int64]string
	agents map[int64]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{tokens: map[int64]string{}, agents: map[int64]string{}}
}

func (f *fakeSessionStore) UpsertSession(_ context.Context, studentID int64, token, userAgent string) error {
	f.tokens[studentID] = token
	f.agents[studentID] = userAgent
	return nil
}

func (f *fakeSessionStore) GetSessionToken(_ context.Context, studentID int64) (string, error) {
	tok, ok := f.tokens[studentID]
	if !ok {
		return "", fmt.Errorf("session: %w", store.ErrNotFound)
	}
	return tok, nil
}

func TestSessionIssueAndValidate(t *testing.T) {
	fs := newFakeSessionStore()
	g := NewSessionGuard(fs)
	ctx := context.Background()

	tok, err := g.Issue(ctx, 7, "Mozilla/5.0")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.NotContains(t, tok, "-")

	ok, err := g.Validate(ctx, 7, tok)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Mozilla/5.0", fs.agents[7], "user agent stored for audit")
}

func TestSessionReissueInvalidatesOldToken(t *testing.T) {
	g := NewSessionGuard(newFakeSessionStore())
	ctx := context.Background()

	first, err := g.Issue(ctx, 7, "a")
	require.NoError(t, err)
	second, err := g.Issue(ctx, 7, "b")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	ok, err := g.Validate(ctx, 7, first)
	require.NoError(t, err)
	require.False(t, ok, "older session must lose on re-registration")

	ok, err = g.Validate(ctx, 7, second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSessionValidateRejectsEmptyAndUnknown(t *testing.T) {
	g := NewSessionGuard(newFakeSessionStore())
	ctx := context.Background()

	ok, err := g.Validate(ctx, 7, "")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = g.Validate(ctx, 7, "deadbeef")
	require.NoError(t, err)
	require.False(t, ok, "no stored session means no access, not an error")
}

func TestSessionTokensArePerStudent(t *testing.T) {
	g := NewSessionGuard(newFakeSessionStore())
	ctx := context.Background()

	tokA, err := g.Issue(ctx, 1, "")
	require.NoError(t, err)
	tokB, err := g.Issue(ctx, 2, "")
	require.NoError(t, err)

	ok, err := g.Validate(ctx, 2, tokA)
	require.NoError(t, err)
	require.False(t, ok, "a token never crosses students")

	ok, err = g.Validate(ctx, 2, tokB)
	require.NoError(t, err)
	require.True(t, ok)
}
