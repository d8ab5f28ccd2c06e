// Package repository persists audit runs so several contests or re-runs can
// be compared with SQL.
package repository

import (
	"context"
	"time"

	"github.com/okian/toolaudit/internal/crossref"
	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/usage"
)

// Run describes one audit run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FeedPath   string
	SourcePath string
	Interval   time.Duration
}

// RunSummary is a stored run with its headline counts.
type RunSummary struct {
	Run
	Teams       int
	Submissions int
	Mismatches  int
}

// Export is the data of a finished run.
type Export struct {
	Teams        []model.Team
	Submissions  []model.Submission
	Timeline     *usage.Timeline
	Unidentified []string
	// CrossRef is nil when cross-referencing is disabled.
	CrossRef *crossref.Report
}

// Store provides write access for finished runs and read access for queries.
type Store interface {
	// SaveRun stores run and its data atomically.
	// Returns ErrDuplicateRun if a run with the same id exists.
	SaveRun(ctx context.Context, run Run, data Export) error

	// Runs lists stored runs, newest first.
	Runs(ctx context.Context) ([]RunSummary, error)

	// DominantTool returns the tool stored for team in bucket of run.
	// Returns ErrNotFound if nothing was stored.
	DominantTool(ctx context.Context, runID string, bucket int64, team string) (model.ToolID, error)

	Close() error
}
