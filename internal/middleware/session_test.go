package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-portal/internal/model"
)

type stubResolver struct {
	identities map[string]model.Identity
	err        error
}

func (s stubResolver) Resolve(_ context.Context, token string) (model.Identity, error) {
	if s.err != nil {
		return model.Identity{}, s.err
	}
	identity, ok := s.identities[token]
	if !ok {
		return model.Identity{}, model.ErrSessionNotFound
	}
	return identity, nil
}

func TestRequireSession(t *testing.T) {
	identity := model.Identity{SessionID: "s-1", Email: "student@example.edu"}
	mw := NewSessionMiddleware(stubResolver{identities: map[string]model.Identity{"good": identity}}, "portal_session")

	var seen model.Identity
	handler := mw.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		seen, ok = IdentityFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.AddCookie(&http.Cookie{Name: "portal_session", Value: "good"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, identity, seen)
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "SESSION_REQUIRED")
	})

	t.Run("revoked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})
}

func TestRequireSessionExpired(t *testing.T) {
	mw := NewSessionMiddleware(stubResolver{err: model.ErrSessionExpired}, "portal_session")
	handler := mw.RequireSession(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer old")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_EXPIRED")
}

func TestIdentityFromContextRejectsZeroIdentity(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	_, ok = IdentityFromContext(WithIdentity(context.Background(), model.Identity{}))
	assert.False(t, ok)
}

func TestRecoveryAndSecurityHeaders(t *testing.T) {
	handler := Logging(Recovery(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}
