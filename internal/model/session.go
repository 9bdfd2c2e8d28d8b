package model

import "time"

// Identity is the signed-in student a portal session acts for.
type Identity struct {
	SessionID string    `json:"session_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (i Identity) IsZero() bool {
	return i.Email == ""
}

// SessionRecord is the persisted form of a session. TokenDigest is the
// BLAKE2b digest of the token id; the token itself is never stored.
type SessionRecord struct {
	ID          string
	Email       string
	TokenDigest string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

type SessionClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	Type      string `json:"typ"`
	TokenID   string `json:"jti"`
}

type StartSessionRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}
