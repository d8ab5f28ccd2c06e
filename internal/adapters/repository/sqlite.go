package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/pkg/logger"
)

const defaultBusyTimeoutMS = 5000

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db            *sql.DB
	path          string
	busyTimeoutMS int
	logger        logger.Logger
}

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:          path,
		busyTimeoutMS: defaultBusyTimeoutMS,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("repository")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %w", ErrOpen, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, s.busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %w", ErrOpen, err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	s.db = db
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores run and its data in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, data Export) (err error) { //nolint:gocritic // hugeParam: Run is a value record
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	var exists int
	switch qerr := tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, run.ID).Scan(&exists); {
	case qerr == nil:
		return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
	case !errors.Is(qerr, sql.ErrNoRows):
		return fmt.Errorf("check run: %w", qerr)
	}

	if _, err = tx.ExecContext(ctx, `
INSERT INTO runs(run_id, started_at, feed_path, source_path, interval_seconds)
VALUES (?, ?, ?, ?, ?)`, run.ID, ts(run.StartedAt), run.FeedPath, run.SourcePath, int64(run.Interval/time.Second)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err = s.insertTeams(ctx, tx, run.ID, data.Teams); err != nil {
		return err
	}
	if err = s.insertSubmissions(ctx, tx, run.ID, data.Submissions); err != nil {
		return err
	}
	if err = s.insertTimeline(ctx, tx, run.ID, data); err != nil {
		return err
	}
	if err = s.insertAttributions(ctx, tx, run.ID, data); err != nil {
		return err
	}
	if err = s.insertUnidentified(ctx, tx, run.ID, data.Unidentified); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	s.logger.Info(ctx, "run stored",
		logger.String("run_id", run.ID),
		logger.String("path", s.path),
	)
	return nil
}

func (s *SQLiteStore) insertTeams(ctx context.Context, tx *sql.Tx, runID string, teams []model.Team) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO teams(run_id, team_id, name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare teams: %w", err)
	}
	defer stmt.Close()
	for _, t := range teams {
		if _, err := stmt.ExecContext(ctx, runID, t.ID, t.Name); err != nil {
			return fmt.Errorf("insert team %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) insertSubmissions(ctx context.Context, tx *sql.Tx, runID string, subs []model.Submission) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO submissions(run_id, submission_id, team_id, problem_id, language, time_ms, accepted)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare submissions: %w", err)
	}
	defer stmt.Close()
	for i := range subs {
		sub := &subs[i]
		if _, err := stmt.ExecContext(ctx, runID, sub.ID, sub.TeamID, sub.ProblemID, sub.Language.String(), sub.Time, boolToInt(sub.Accepted)); err != nil {
			return fmt.Errorf("insert submission %s: %w", sub.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) insertTimeline(ctx context.Context, tx *sql.Tx, runID string, data Export) error { //nolint:gocritic // hugeParam: Export is a value record
	if data.Timeline == nil {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO dominant_tools(run_id, bucket, bucket_start, team_id, tool)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare dominant tools: %w", err)
	}
	defer stmt.Close()
	tl := data.Timeline
	for _, bucket := range tl.Buckets() {
		start := ts(tl.BucketStart(bucket))
		for team, id := range tl.Teams(bucket) {
			if _, err := stmt.ExecContext(ctx, runID, bucket, start, team, string(id)); err != nil {
				return fmt.Errorf("insert dominant tool: %w", err)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) insertAttributions(ctx context.Context, tx *sql.Tx, runID string, data Export) error { //nolint:gocritic // hugeParam: Export is a value record
	if data.CrossRef == nil {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO attributions(run_id, submission_id, bucket, tool, mismatch)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare attributions: %w", err)
	}
	defer stmt.Close()
	for _, a := range data.CrossRef.Attributions {
		if _, err := stmt.ExecContext(ctx, runID, a.SubmissionID, a.Bucket, string(a.Tool), boolToInt(a.Mismatch)); err != nil {
			return fmt.Errorf("insert attribution %s: %w", a.SubmissionID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) insertUnidentified(ctx context.Context, tx *sql.Tx, runID string, cmds []string) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO unidentified_commands(run_id, command) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare unidentified commands: %w", err)
	}
	defer stmt.Close()
	for _, c := range cmds {
		if _, err := stmt.ExecContext(ctx, runID, c); err != nil {
			return fmt.Errorf("insert unidentified command: %w", err)
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.run_id, r.started_at, r.feed_path, r.source_path, r.interval_seconds,
	(SELECT COUNT(*) FROM teams t WHERE t.run_id = r.run_id),
	(SELECT COUNT(*) FROM submissions s WHERE s.run_id = r.run_id),
	(SELECT COUNT(*) FROM attributions a WHERE a.run_id = r.run_id AND a.mismatch = 1)
FROM runs r
ORDER BY r.started_at DESC, r.run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs       RunSummary
			started  string
			interval int64
		)
		if err := rows.Scan(&rs.ID, &started, &rs.FeedPath, &rs.SourcePath, &interval, &rs.Teams, &rs.Submissions, &rs.Mismatches); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rs.StartedAt, err = parseTS(started); err != nil {
			return nil, fmt.Errorf("parse run start: %w", err)
		}
		rs.Interval = time.Duration(interval) * time.Second
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// DominantTool returns the stored dominant tool of team in bucket.
func (s *SQLiteStore) DominantTool(ctx context.Context, runID string, bucket int64, team string) (model.ToolID, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
SELECT tool FROM dominant_tools WHERE run_id = ? AND bucket = ? AND team_id = ?`, runID, bucket, team).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query dominant tool: %w", err)
	}
	return model.ToolID(id), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// tsLayout keeps the fraction at a fixed width so stored text sorts in time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTS also accepts the variable-width RFC 3339 text older databases hold.
func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
