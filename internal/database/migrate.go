package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

//go:embed migrations/002_session_email_index.up.sql
var sessionEmailIndexSQL string

var requiredTables = []string{
	"portal_sessions",
	"portal_activity",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasAllRequiredTables(ctx)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying initial migration")
		if _, err := db.Pool.Exec(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}

		exists, err = db.hasAllRequiredTables(ctx)
		if err != nil {
			return fmt.Errorf("re-check tables after migration: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema initialization incomplete: required tables are still missing")
		}
	}

	// 002: lookup index for per-student session queries.
	if err := db.applySessionEmailIndex(ctx); err != nil {
		return fmt.Errorf("apply session email index migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}

func (db *DB) applySessionEmailIndex(ctx context.Context) error {
	var hasIndex bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public'
			  AND indexname = 'idx_portal_sessions_email'
		)
	`).Scan(&hasIndex)
	if err != nil {
		return fmt.Errorf("check session email index: %w", err)
	}

	if !hasIndex {
		slog.Info("applying session email index migration (002)")
		if _, err := db.Pool.Exec(ctx, sessionEmailIndexSQL); err != nil {
			return fmt.Errorf("exec session email index SQL: %w", err)
		}
	}

	return nil
}

func (db *DB) hasAllRequiredTables(ctx context.Context) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, requiredTables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(requiredTables), nil
}
