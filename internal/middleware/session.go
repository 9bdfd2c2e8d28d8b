package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"report-portal/internal/model"
)

type identityResolver interface {
	Resolve(ctx context.Context, token string) (model.Identity, error)
}

type contextKey string

const identityContextKey contextKey = "portal_identity"

// SessionMiddleware resolves the portal session from the session cookie or
// a bearer token and puts the identity in the request context.
type SessionMiddleware struct {
	resolver   identityResolver
	cookieName string
}

func NewSessionMiddleware(resolver identityResolver, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{resolver: resolver, cookieName: cookieName}
}

func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := SessionToken(r, m.cookieName)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "sign in to continue")
			return
		}

		identity, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, model.ErrSessionExpired) {
				writeJSONError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session expired, sign in again")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or revoked session")
			return
		}

		setLoggedSession(r.Context(), identity.SessionID)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// SessionToken returns the session token carried by r, preferring the cookie.
func SessionToken(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok && !identity.IsZero()
}
