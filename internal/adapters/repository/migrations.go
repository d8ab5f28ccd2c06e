package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	version int
	up      string
}

var migrations = []migration{
	{
		version: 1,
		up: `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	feed_path TEXT NOT NULL,
	source_path TEXT NOT NULL,
	interval_seconds INTEGER NOT NULL CHECK(interval_seconds > 0)
);

CREATE TABLE IF NOT EXISTS teams (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (run_id, team_id)
);

CREATE TABLE IF NOT EXISTS submissions (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	submission_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	problem_id TEXT NOT NULL,
	language TEXT NOT NULL,
	time_ms INTEGER NOT NULL,
	accepted INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, submission_id)
);

CREATE TABLE IF NOT EXISTS dominant_tools (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	bucket INTEGER NOT NULL,
	bucket_start TEXT NOT NULL,
	team_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	PRIMARY KEY (run_id, bucket, team_id)
);

CREATE TABLE IF NOT EXISTS attributions (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	submission_id TEXT NOT NULL,
	bucket INTEGER NOT NULL,
	tool TEXT NOT NULL,
	mismatch INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, submission_id)
);

CREATE TABLE IF NOT EXISTS unidentified_commands (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	command TEXT NOT NULL,
	PRIMARY KEY (run_id, command)
);

CREATE INDEX IF NOT EXISTS idx_attributions_mismatch ON attributions(run_id, mismatch);
`,
	},
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
