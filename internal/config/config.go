// Package config defines the audit configuration and how it is loaded.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file, a .env file and TOOLAUDIT_* env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata" // contest zones must load on hosts without zoneinfo
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ResultDir receives the report files.
	ResultDir string `koanf:"result_dir"`

	// IntervalSeconds is the bucket width.
	IntervalSeconds int `koanf:"interval_seconds"`

	// Timezone is the IANA zone used for TIME columns.
	Timezone string `koanf:"timezone"`

	// SnapshotPrefix and SnapshotSuffix surround the unit id in snapshot file names.
	SnapshotPrefix string `koanf:"snapshot_prefix"`
	SnapshotSuffix string `koanf:"snapshot_suffix"`

	// TeamUserPrefix names the OS user of a team: prefix + team id.
	TeamUserPrefix string `koanf:"team_user_prefix"`

	// CleanCommands strips shell wrappers and volatile arguments before classification.
	CleanCommands bool `koanf:"clean_commands"`

	// WorkerCount sets the number of snapshot parsing workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the snapshot job queue.
	QueueSize int `koanf:"queue_size"`

	// CrossrefEnabled turns the submission cross-reference on.
	CrossrefEnabled bool `koanf:"crossref_enabled"`

	// ValidateFeed checks feed records against the record schema.
	ValidateFeed bool `koanf:"validate_feed"`

	// SQLitePath, when set, receives a copy of the run.
	SQLitePath string `koanf:"sqlite_path"`

	// MetricsFile, when set, receives the run metrics in Prometheus text format.
	MetricsFile string `koanf:"metrics_file"`

	ChartEnabled bool `koanf:"chart_enabled"`
	ChartHeight  int  `koanf:"chart_height"`

	// Addr is the listen address of the results API.
	Addr string `koanf:"addr"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		ResultDir:       "result",
		IntervalSeconds: 600,
		Timezone:        "Asia/Dhaka",
		SnapshotPrefix:  "ps.team",
		SnapshotSuffix:  ".txt",
		TeamUserPrefix:  "team",
		WorkerCount:     runtime.NumCPU(),
		QueueSize:       4096,
		CrossrefEnabled: true,
		ChartEnabled:    true,
		ChartHeight:     8,
		Addr:            ":9080",
	}
}

// Interval is the bucket width.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.ResultDir == "" {
		return fmt.Errorf("%w: result_dir must not be empty", ErrInvalidConfig)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: interval_seconds must be positive, got %d", ErrInvalidConfig, c.IntervalSeconds)
	}
	if c.SnapshotPrefix == "" && c.SnapshotSuffix == "" {
		return fmt.Errorf("%w: snapshot_prefix and snapshot_suffix must not both be empty", ErrInvalidConfig)
	}
	if c.TeamUserPrefix == "" {
		return fmt.Errorf("%w: team_user_prefix must not be empty", ErrInvalidConfig)
	}
	if c.WorkerCount < 0 {
		return fmt.Errorf("%w: worker_count must not be negative", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.ChartHeight <= 0 {
		return fmt.Errorf("%w: chart_height must be positive", ErrInvalidConfig)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
