package session

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"report-portal/internal/model"
	"report-portal/pkg/apierror"
)

const tokenType = "session"

// Store persists session records.
type Store interface {
	Create(ctx context.Context, record model.SessionRecord) error
	Get(ctx context.Context, id string) (model.SessionRecord, error)
	Revoke(ctx context.Context, id string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// Manager owns the identity lifecycle: a session is acquired at sign-in,
// resolved on every request and invalidated at sign-out.
type Manager struct {
	secret   []byte
	ttl      time.Duration
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewManager(secret string, ttl time.Duration, store Store) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		store:    store,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Start signs a student in and returns the identity plus the signed token
// to hand to the browser.
func (m *Manager) Start(ctx context.Context, email string) (model.Identity, string, error) {
	request := model.StartSessionRequest{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := m.validate.Struct(request); err != nil {
		return model.Identity{}, "", apierror.BadRequest("a valid email is required", "email")
	}

	now := m.now()
	identity := model.Identity{
		SessionID: uuid.NewString(),
		Email:     request.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	tokenID := uuid.NewString()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid":   identity.SessionID,
		"email": identity.Email,
		"typ":   tokenType,
		"jti":   tokenID,
		"iat":   now.Unix(),
		"exp":   identity.ExpiresAt.Unix(),
	}).SignedString(m.secret)
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("sign session token: %w", err)
	}

	record := model.SessionRecord{
		ID:          identity.SessionID,
		Email:       identity.Email,
		TokenDigest: digest(tokenID),
		CreatedAt:   now,
		ExpiresAt:   identity.ExpiresAt,
	}
	if err := m.store.Create(ctx, record); err != nil {
		return model.Identity{}, "", fmt.Errorf("store session: %w", err)
	}

	slog.Info("session started", "session_id", identity.SessionID, "email", identity.Email)
	return identity, token, nil
}

// Resolve verifies a token and returns the identity it stands for.
func (m *Manager) Resolve(ctx context.Context, token string) (model.Identity, error) {
	claims, err := m.parse(token)
	if err != nil {
		return model.Identity{}, err
	}

	record, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return model.Identity{}, err
	}
	if record.RevokedAt != nil {
		return model.Identity{}, model.ErrSessionNotFound
	}
	if !m.now().Before(record.ExpiresAt) {
		return model.Identity{}, model.ErrSessionExpired
	}
	if subtle.ConstantTimeCompare([]byte(record.TokenDigest), []byte(digest(claims.TokenID))) != 1 {
		return model.Identity{}, model.ErrSessionNotFound
	}

	return model.Identity{
		SessionID: record.ID,
		Email:     record.Email,
		IssuedAt:  record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// End revokes the session behind token. Unknown or already revoked
// sessions are not an error.
func (m *Manager) End(ctx context.Context, token string) (string, error) {
	claims, err := m.parse(token)
	if err != nil {
		return "", err
	}

	if err := m.store.Revoke(ctx, claims.SessionID); err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		return "", fmt.Errorf("revoke session: %w", err)
	}

	slog.Info("session ended", "session_id", claims.SessionID)
	return claims.SessionID, nil
}

func (m *Manager) CleanExpired(ctx context.Context) (int64, error) {
	return m.store.CleanExpired(ctx)
}

// StartCleanupTicker purges expired sessions until ctx is done.
func (m *Manager) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := m.CleanExpired(ctx)
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired sessions removed", "count", removed)
			}
		}
	}
}

func (m *Manager) parse(token string) (model.SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.SessionClaims{}, model.ErrUnauthorized
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.SessionClaims{}, model.ErrSessionExpired
		}
		return model.SessionClaims{}, model.ErrUnauthorized
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return model.SessionClaims{}, model.ErrUnauthorized
	}

	claims := model.SessionClaims{}
	claims.Type, _ = claimsMap["typ"].(string)
	claims.SessionID, _ = claimsMap["sid"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.Type != tokenType || claims.SessionID == "" || claims.TokenID == "" {
		return model.SessionClaims{}, model.ErrUnauthorized
	}
	return claims, nil
}

func digest(tokenID string) string {
	sum := blake2b.Sum256([]byte(tokenID))
	return hex.EncodeToString(sum[:])
}
