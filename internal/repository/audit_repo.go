package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"report-portal/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO portal_activity
		 (action, occurred_at, session_id, email, client_ip, status, resource, details, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.Action, occurredAt,
		entry.Actor.SessionID, entry.Actor.Email, entry.Actor.IP,
		entry.Status, entry.Resource, detailsJSON, entry.Error)
	if err != nil {
		return fmt.Errorf("log activity entry: %w", err)
	}
	return nil
}

// ListByEmail returns the most recent activity of one student, newest first.
func (r *AuditRepository) ListByEmail(ctx context.Context, email string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx,
		`SELECT action, occurred_at, session_id, email, client_ip, status, resource, details, error_text
		 FROM portal_activity
		 WHERE lower(email) = lower($1)
		 ORDER BY occurred_at DESC
		 LIMIT $2`, strings.TrimSpace(email), limit)
	if err != nil {
		return nil, fmt.Errorf("query activity entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var occurredAt time.Time
		var detailsJSON []byte

		if err := rows.Scan(
			&e.Action, &occurredAt,
			&e.Actor.SessionID, &e.Actor.Email, &e.Actor.IP,
			&e.Status, &e.Resource, &detailsJSON, &e.Error,
		); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}

		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339Nano)
		if len(detailsJSON) > 0 {
			var details any
			if jsonErr := json.Unmarshal(detailsJSON, &details); jsonErr == nil {
				e.Details = details
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
