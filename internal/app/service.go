// Package service runs one tool usage audit: it ingests the event feed,
// parses the snapshot dumps on a worker pool, aggregates dominant tools,
// cross-references submissions and writes the reports.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/toolaudit/internal/adapters/mq/queue"
	"github.com/okian/toolaudit/internal/adapters/mq/worker"
	"github.com/okian/toolaudit/internal/adapters/repository"
	"github.com/okian/toolaudit/internal/adapters/source"
	"github.com/okian/toolaudit/internal/config"
	"github.com/okian/toolaudit/internal/crossref"
	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/feed"
	"github.com/okian/toolaudit/internal/report"
	"github.com/okian/toolaudit/internal/snapshot"
	"github.com/okian/toolaudit/internal/usage"
	"github.com/okian/toolaudit/pkg/logger"
	"github.com/okian/toolaudit/pkg/metrics"
)

// Pipeline stage names reported to metrics.
const (
	stageFeed      = "feed"
	stageSnapshots = "snapshots"
	stageAggregate = "aggregate"
	stageCrossref  = "crossref"
	stageReport    = "report"
	stageStore     = "store"
)

// Result is the outcome of one audit run.
type Result struct {
	RunID        string
	Feed         *feed.Feed
	Teams        []string
	Units        int
	Unidentified []string
	Timeline     *usage.Timeline
	// CrossRef is nil when cross-referencing is disabled.
	CrossRef *crossref.Report
	Files    []string
}

// Service runs audits with one configuration.
type Service struct {
	cfg      *config.Config
	loc      *time.Location
	registry *tool.Registry
	now      func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the tool registry shared by every stage.
func WithRegistry(r *tool.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithClock sets the source of the run start time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. cfg is validated first.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		loc:      loc,
		registry: tool.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s, nil
}

// Run audits the event feed at feedPath against the snapshot directory or
// zip archive at sourcePath.
func (s *Service) Run(ctx context.Context, feedPath, sourcePath string) (*Result, error) {
	started := s.now()
	res := &Result{RunID: uuid.NewString()}
	s.logger.Info(ctx, "starting audit",
		logger.String("run_id", res.RunID),
		logger.String("feed", feedPath),
		logger.String("snapshots", sourcePath),
		logger.Int64("interval_seconds", int64(s.cfg.IntervalSeconds)),
	)

	var err error
	if err = stage(stageFeed, func() error {
		res.Feed, err = s.ingestFeed(ctx, feedPath)
		return err
	}); err != nil {
		return nil, err
	}

	var (
		obs     []model.Observation
		samples []int64
	)
	if err = stage(stageSnapshots, func() error {
		obs, samples, err = s.parseSnapshots(ctx, sourcePath, res)
		return err
	}); err != nil {
		return nil, err
	}

	_ = stage(stageAggregate, func() error {
		agg := usage.New(usage.WithWidth(s.cfg.Interval()), usage.WithRegistry(s.registry))
		res.Timeline = agg.Aggregate(obs, samples)
		metrics.UpdateBuckets(len(res.Timeline.Buckets()))
		return nil
	})

	if s.cfg.CrossrefEnabled {
		_ = stage(stageCrossref, func() error {
			res.CrossRef = crossref.New(crossref.WithRegistry(s.registry)).
				Analyze(ctx, res.Feed.SubmissionList(), res.Timeline)
			return nil
		})
	} else {
		s.logger.Info(ctx, "cross-reference disabled")
	}

	if err = stage(stageReport, func() error {
		res.Files, err = s.writeReports(ctx, res)
		return err
	}); err != nil {
		return nil, err
	}

	if s.cfg.SQLitePath != "" {
		if err = stage(stageStore, func() error { return s.store(ctx, started, feedPath, sourcePath, res) }); err != nil {
			return nil, err
		}
	}

	if s.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			return nil, fmt.Errorf("write metrics: %w", err)
		}
	}

	s.logger.Info(ctx, "audit finished",
		logger.String("run_id", res.RunID),
		logger.Int("files", len(res.Files)),
		logger.Int64("elapsed_ms", time.Since(started).Milliseconds()),
	)
	return res, nil
}

func (s *Service) ingestFeed(ctx context.Context, path string) (*feed.Feed, error) {
	ing, err := feed.New(feed.WithValidation(s.cfg.ValidateFeed))
	if err != nil {
		return nil, err
	}
	return ing.IngestFile(ctx, path)
}

// parseSnapshots matches the dumps to feed teams and parses them on the pool.
// It returns every observation and every sampled time.
func (s *Service) parseSnapshots(ctx context.Context, path string, res *Result) ([]model.Observation, []int64, error) {
	opts := []source.Option{
		source.WithPrefix(s.cfg.SnapshotPrefix),
		source.WithSuffix(s.cfg.SnapshotSuffix),
	}
	if len(res.Feed.Teams) > 0 {
		opts = append(opts, source.WithTeams(res.Feed.HasTeam))
	} else {
		s.logger.Warn(ctx, "event feed registered no teams; using every snapshot")
	}
	src, err := source.Open(ctx, path, opts...)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.logger.Warn(ctx, "error closing snapshot source", logger.Error(cerr))
		}
	}()
	res.Teams = src.Teams()
	entries := src.Entries()
	s.logger.Info(ctx, "snapshots found",
		logger.Int("units", len(entries)),
		logger.Int("teams", len(res.Teams)),
		logger.Int("skipped", src.Skipped()),
	)

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	parser := snapshot.NewParser(
		snapshot.WithRegistry(s.registry),
		snapshot.WithUserPrefix(s.cfg.TeamUserPrefix),
		snapshot.WithCleanCommands(s.cfg.CleanCommands),
	)
	coll := &collector{}
	pool := worker.NewPool(s.cfg.WorkerCount, q, parser, coll)
	pool.Start(ctx)
	// on cancellation stop taking dumps; the one in hand sees the cancelled ctx
	stop := context.AfterFunc(ctx, func() {
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn(ctx, "snapshot workers did not stop cleanly", logger.Error(err))
		}
	})
	defer stop()

	produced := make(chan error, 1)
	go func() {
		defer func() { _ = q.Close() }()
		for _, e := range entries {
			if err := q.Put(ctx, e); err != nil {
				produced <- err
				return
			}
		}
		produced <- nil
	}()

	werr := pool.Wait()
	_ = q.Close()
	perr := <-produced
	switch {
	case werr != nil:
		return nil, nil, werr
	case ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case perr != nil:
		return nil, nil, fmt.Errorf("queue snapshots: %w", perr)
	}

	obs, samples, unidentified := coll.merge()
	res.Units = len(entries)
	res.Unidentified = unidentified
	metrics.UpdateSnapshotTotals(res.Units, len(unidentified))
	if len(samples) > 0 {
		s.logger.Info(ctx, "snapshot time range",
			logger.Int64("min", samples[0]),
			logger.Int64("max", samples[len(samples)-1]),
		)
	}
	s.logger.Info(ctx, "snapshots parsed",
		logger.Int("observations", len(obs)),
		logger.Int("unidentified_commands", len(unidentified)),
	)
	return obs, samples, nil
}

func (s *Service) writeReports(ctx context.Context, res *Result) ([]string, error) {
	names := make(map[string]string, len(res.Feed.Teams))
	for id, t := range res.Feed.Teams {
		names[id] = t.Name
	}
	w := report.NewWriter(s.cfg.ResultDir,
		report.WithLocation(s.loc),
		report.WithChart(s.cfg.ChartEnabled, s.cfg.ChartHeight),
	)
	return w.Write(ctx, report.Input{
		Registry:     s.registry,
		Teams:        res.Teams,
		TeamNames:    names,
		Unidentified: res.Unidentified,
		Timeline:     res.Timeline,
		CrossRef:     res.CrossRef,
	})
}

func (s *Service) store(ctx context.Context, started time.Time, feedPath, sourcePath string, res *Result) (err error) {
	st, err := repository.Open(ctx, s.cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	teams := make([]model.Team, 0, len(res.Feed.Teams))
	for _, id := range res.Feed.TeamIDs() {
		teams = append(teams, res.Feed.Teams[id])
	}
	return st.SaveRun(ctx, repository.Run{
		ID:         res.RunID,
		StartedAt:  started,
		FeedPath:   feedPath,
		SourcePath: sourcePath,
		Interval:   s.cfg.Interval(),
	}, repository.Export{
		Teams:        teams,
		Submissions:  res.Feed.SubmissionList(),
		Timeline:     res.Timeline,
		Unidentified: res.Unidentified,
		CrossRef:     res.CrossRef,
	})
}

// stage runs fn and records its duration.
func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStageDuration(name, time.Since(start).Seconds())
	if err != nil {
		metrics.RecordErrorByComponent("service", name)
	}
	return err
}

// collector gathers parse results from the workers.
type collector struct {
	mu      sync.Mutex
	results []*snapshot.Result
}

var _ worker.Sink = (*collector)(nil)

func (c *collector) Collect(_ context.Context, res *snapshot.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

// merge combines the results in unit order so the outcome does not depend on
// worker scheduling.
func (c *collector) merge() (obs []model.Observation, samples []int64, unidentified []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.Slice(c.results, func(i, j int) bool {
		return c.results[i].Unit.ID < c.results[j].Unit.ID
	})
	times := make(map[int64]struct{})
	cmds := make(map[string]struct{})
	for _, r := range c.results {
		obs = append(obs, r.Observations...)
		for _, t := range r.Times {
			times[t] = struct{}{}
		}
		for cmd := range r.Unidentified {
			cmds[cmd] = struct{}{}
		}
	}
	for t := range times {
		samples = append(samples, t)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	for cmd := range cmds {
		unidentified = append(unidentified, cmd)
	}
	sort.Strings(unidentified)
	return obs, samples, unidentified
}
