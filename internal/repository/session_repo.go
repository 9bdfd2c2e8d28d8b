package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"report-portal/internal/model"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, record model.SessionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO portal_sessions (id, email, token_digest, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.Email, record.TokenDigest, record.CreatedAt, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (model.SessionRecord, error) {
	var record model.SessionRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, token_digest, created_at, expires_at, revoked_at
		 FROM portal_sessions WHERE id = $1`, id).
		Scan(&record.ID, &record.Email, &record.TokenDigest, &record.CreatedAt, &record.ExpiresAt, &record.RevokedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.SessionRecord{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE portal_sessions SET revoked_at = now()
		 WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM portal_sessions WHERE expires_at <= now() OR revoked_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
