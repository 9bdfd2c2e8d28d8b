package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-portal/internal/model"
	"report-portal/pkg/apierror"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	manager, err := NewManager("test-secret", time.Hour, store)
	require.NoError(t, err)
	return manager, store
}

func TestNewManagerRequiresSecretAndStore(t *testing.T) {
	_, err := NewManager("  ", time.Hour, NewMemoryStore())
	require.Error(t, err)

	_, err = NewManager("secret", time.Hour, nil)
	require.Error(t, err)

	manager, err := NewManager("secret", 0, NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, manager.TTL())
}

func TestStartResolveEnd(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	identity, token, err := manager.Start(ctx, "  Student@Example.EDU ")
	require.NoError(t, err)
	assert.Equal(t, "student@example.edu", identity.Email)
	assert.NotEmpty(t, identity.SessionID)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, identity.IssuedAt.Add(time.Hour), identity.ExpiresAt, time.Second)

	resolved, err := manager.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, identity.SessionID, resolved.SessionID)
	assert.Equal(t, identity.Email, resolved.Email)

	sessionID, err := manager.End(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, identity.SessionID, sessionID)

	_, err = manager.Resolve(ctx, token)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	_, err = manager.End(ctx, token)
	assert.NoError(t, err)
}

func TestStartRejectsInvalidEmail(t *testing.T) {
	manager, _ := newTestManager(t)

	for _, email := range []string{"", "not-an-email", "@example.edu"} {
		_, _, err := manager.Start(context.Background(), email)
		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr), "email %q", email)
		assert.Equal(t, "BAD_REQUEST", apiErr.Code)
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, token, err := manager.Start(ctx, "student@example.edu")
	require.NoError(t, err)

	_, err = manager.Resolve(ctx, "")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = manager.Resolve(ctx, token+"x")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	other, err := NewManager("another-secret", time.Hour, NewMemoryStore())
	require.NoError(t, err)
	_, err = other.Resolve(ctx, token)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestResolveExpiredToken(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, token, err := manager.Start(ctx, "student@example.edu")
	require.NoError(t, err)

	manager.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = manager.Resolve(ctx, token)
	assert.ErrorIs(t, err, model.ErrSessionExpired)
}

func TestResolveRejectsDigestMismatch(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	identity, token, err := manager.Start(ctx, "student@example.edu")
	require.NoError(t, err)

	record, err := store.Get(ctx, identity.SessionID)
	require.NoError(t, err)
	record.TokenDigest = digest("someone-else")
	require.NoError(t, store.Create(ctx, record))

	_, err = manager.Resolve(ctx, token)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestCleanExpiredRemovesRevokedAndExpired(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	_, revokedToken, err := manager.Start(ctx, "first@example.edu")
	require.NoError(t, err)
	_, _, err = manager.Start(ctx, "second@example.edu")
	require.NoError(t, err)
	_, err = manager.End(ctx, revokedToken)
	require.NoError(t, err)

	removed, err := manager.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	store.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	removed, err = manager.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStartCleanupTickerStopsWithContext(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		manager.StartCleanupTicker(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup ticker did not stop")
	}
}
