package testevents

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/feed"
	"github.com/okian/toolaudit/pkg/logger"
)

// Output layout under Config.Dir.
const (
	FeedFile    = "events.json"
	SnapshotDir = "snapshots"

	directoryPermission = 0o750
	filePermission      = 0o600
	psHeader            = "USER       PID %CPU %MEM    VSZ   RSS TTY      STAT START   TIME COMMAND"
)

// Run generates the contest described by cfg under cfg.Dir.
func Run(ctx context.Context, cfg *Config, reg *tool.Registry) (*Plan, *Stats, error) {
	if reg == nil {
		reg = tool.Default()
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("testevents")

	plan, err := NewPlan(cfg, reg)
	if err != nil {
		return nil, nil, err
	}
	log.Info(ctx, "generating synthetic contest",
		logger.String("dir", cfg.Dir),
		logger.Int("teams", cfg.Teams),
		logger.Int("buckets", plan.Buckets),
		logger.Int("samples", len(plan.Samples)),
	)

	snapDir := filepath.Join(cfg.Dir, SnapshotDir)
	if err := os.MkdirAll(snapDir, directoryPermission); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	feedPath := filepath.Join(cfg.Dir, FeedFile)
	if err := writeFile(feedPath, func(b *bufio.Writer) error { return writeFeed(b, plan) }); err != nil {
		return nil, nil, err
	}
	stats.Files = append(stats.Files, feedPath)

	// one generator per run keeps the dumps reproducible from the seed
	r := rand.New(rand.NewPCG(cfg.Seed+1, cfg.Seed^pcgStream)) //nolint:gosec // reproducible fixtures, not secrets
	for _, team := range plan.Teams {
		for ws := 1; ws <= cfg.Workstations; ws++ {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			unit := team
			if cfg.Workstations > 1 {
				unit = team + "-" + strconv.Itoa(ws)
			}
			path := filepath.Join(snapDir, "ps.team"+unit+".txt")
			err := writeFile(path, func(b *bufio.Writer) error {
				return writeDump(b, r, reg, plan, team, ws == 1)
			})
			if err != nil {
				return nil, nil, err
			}
			stats.Files = append(stats.Files, path)
			stats.Units++
		}
	}

	stats.Teams = len(plan.Teams)
	stats.Samples = len(plan.Samples)
	stats.Submissions = len(plan.Submissions)
	for i := range plan.Submissions {
		if plan.Submissions[i].Accepted {
			stats.Accepted++
		}
		if plan.Submissions[i].Excluded {
			stats.Excluded++
		}
		if plan.Submissions[i].Mismatch {
			stats.Mismatches++
		}
	}
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	log.Info(ctx, "synthetic contest written",
		logger.Int("units", stats.Units),
		logger.Int("submissions", stats.Submissions),
		logger.Int("accepted", stats.Accepted),
		logger.Int("planned_mismatches", stats.Mismatches),
		logger.Int("planned_excluded", stats.Excluded),
	)
	return plan, stats, nil
}

// FeedPath is the generated event feed.
func (c *Config) FeedPath() string { return filepath.Join(c.Dir, FeedFile) }

// SnapshotPath is the directory of generated snapshot dumps.
func (c *Config) SnapshotPath() string { return filepath.Join(c.Dir, SnapshotDir) }

func writeFile(path string, fn func(*bufio.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWrite, cerr)
		}
	}()
	b := bufio.NewWriter(f)
	if err := fn(b); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := b.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}

// writeFeed writes teams, then submissions, then judgements of the accepted ones.
func writeFeed(b *bufio.Writer, plan *Plan) error {
	enc := json.NewEncoder(b)
	for _, team := range plan.Teams {
		if err := enc.Encode(record{Type: "teams", ID: team, Data: teamData{ID: team, Name: "Team " + team}}); err != nil {
			return err
		}
	}
	for i := range plan.Submissions {
		s := &plan.Submissions[i]
		if err := enc.Encode(record{Type: "submissions", ID: s.ID, Data: submissionData{
			ID:         s.ID,
			LanguageID: wireLanguage(s.Language),
			Time:       time.UnixMilli(s.Time).UTC().Format(feed.TimeLayout),
			TeamID:     s.TeamID,
			ProblemID:  s.ProblemID,
		}}); err != nil {
			return err
		}
	}
	for i := range plan.Submissions {
		s := &plan.Submissions[i]
		if !s.Accepted {
			continue
		}
		if err := enc.Encode(record{Type: "judgements", ID: "j" + s.ID, Data: judgementData{
			SubmissionID:    s.ID,
			JudgementTypeID: "AC",
		}}); err != nil {
			return err
		}
	}
	return nil
}

// writeDump writes the snapshot blocks of one workstation. The planned tool
// runs on the first workstation; every workstation carries the background
// tool and a shell while the team is active.
func writeDump(b *bufio.Writer, r *rand.Rand, reg *tool.Registry, plan *Plan, team string, primary bool) error {
	user := "team" + team
	pid := 1000
	for _, at := range plan.Samples {
		if _, err := fmt.Fprintf(b, "%d\n%s\n", at, psHeader); err != nil {
			return err
		}
		id := plan.Dominant[team][(at-plan.Start)/plan.Width]
		if id != "" {
			if primary {
				if err := psRow(b, user, pid, dominantCPU(r), command(reg, id)); err != nil {
					return err
				}
			}
			if err := psRow(b, user, pid+1, backgroundCPU, command(reg, plan.Background[team])); err != nil {
				return err
			}
		}
		if err := psRow(b, user, pid+2, 0.1, "/usr/bin/bash --login"); err != nil {
			return err
		}
		if err := psRow(b, "root", 1, 0.0, "/sbin/init splash"); err != nil {
			return err
		}
	}
	return nil
}

func psRow(b *bufio.Writer, user string, pid int, cpu float64, cmd string) error {
	_, err := fmt.Fprintf(b, "%-9s %5d %4.1f %4.1f %6d %5d %-8s %-4s %5s %6s %s\n",
		user, pid, cpu, 1.0, 123456, 7890, "?", "Sl", "10:00", "0:01", cmd)
	return err
}
