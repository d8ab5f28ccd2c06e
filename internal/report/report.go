// Package report writes the audit results as CSV and text files into a
// result directory.
package report

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/toolaudit/internal/crossref"
	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/usage"
	"github.com/okian/toolaudit/pkg/logger"
)

// Output file names.
const (
	UnidentifiedToolsFile         = "icpc-unidentified-tools.txt"
	UnexpectedSubmissionToolsFile = "icpc-unexpected-submission-tools.txt"
	ToolsFile                     = "icpc-tools.csv"
	TeamsTimeFile                 = "icpc-teams-time.csv"
	TeamsNameFile                 = "icpc-teams-name.csv"
	LangsSubmittedFile            = "icpc-langs-submitted.csv"
	LangsAcceptedFile             = "icpc-langs-accepted.csv"
	ToolsChartFile                = "icpc-tools-chart.txt"
)

const (
	timeLayout = "15:04"
	noTool     = "--"
)

// Input is everything a report run needs.
type Input struct {
	Registry *tool.Registry
	// Teams are the columns of the per-team timeline, in order.
	Teams     []string
	TeamNames map[string]string
	// Unidentified holds command lines that matched no tool.
	Unidentified []string
	Timeline     *usage.Timeline
	// CrossRef is nil when cross-referencing is disabled.
	CrossRef *crossref.Report
}

// Writer writes report files.
type Writer struct {
	dir         string
	loc         *time.Location
	chart       bool
	chartHeight int
	logger      logger.Logger
}

// NewWriter creates a writer for dir with configuration options.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:         dir,
		loc:         time.UTC,
		chartHeight: defaultChartHeight,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("report")
	}
	return w
}

// Write creates the result directory and every report file. It returns the
// paths written.
func (w *Writer) Write(ctx context.Context, in Input) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResultDir, err)
	}
	reg := in.Registry
	if reg == nil {
		reg = in.Timeline.Registry()
	}

	steps := []file{
		{UnidentifiedToolsFile, func(b *bufio.Writer) error { return writeLines(b, in.Unidentified) }},
		{ToolsFile, func(b *bufio.Writer) error { return w.writeTools(b, reg, in.Timeline) }},
		{TeamsTimeFile, func(b *bufio.Writer) error { return w.writeTeamsTime(b, in.Teams, in.Timeline) }},
		{TeamsNameFile, func(b *bufio.Writer) error { return writeTeamNames(b, in.Teams, in.TeamNames) }},
	}
	if rep := in.CrossRef; rep != nil {
		steps = append(steps,
			file{UnexpectedSubmissionToolsFile, func(b *bufio.Writer) error { return writeMismatches(b, rep) }},
			file{LangsSubmittedFile, func(b *bufio.Writer) error { return writeLangTable(b, rep.Tools, rep.Submitted) }},
			file{LangsAcceptedFile, func(b *bufio.Writer) error { return writeLangTable(b, rep.Tools, rep.Accepted) }},
		)
	}
	if w.chart {
		steps = append(steps, file{ToolsChartFile, func(b *bufio.Writer) error { return w.writeChart(b, reg, in.Timeline) }})
	}

	paths := make([]string, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		p := filepath.Join(w.dir, s.name)
		w.logger.Info(ctx, "writing report", logger.String("path", p))
		if err := writeFile(p, s.write); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// file is one report file and the function producing its content.
type file struct {
	name  string
	write func(*bufio.Writer) error
}

func writeFile(path string, fn func(*bufio.Writer) error) (err error) {
	f, err := os.Create(path)
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
		return fmt.Errorf("%w: %s: %w", ErrWrite, filepath.Base(path), err)
	}
	if err := b.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func writeLines(b *bufio.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := b.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// writeTools writes the number of teams per dominant tool in every bucket
// that resolved at least one team.
func (w *Writer) writeTools(b *bufio.Writer, reg *tool.Registry, tl *usage.Timeline) error {
	cw := csv.NewWriter(b)
	tools := reg.Tools()
	header := []string{"TIME"}
	for _, t := range tools {
		header = append(header, string(t.ID))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, bucket := range tl.Buckets() {
		counts := tl.Counts(bucket)
		if len(counts) == 0 {
			continue
		}
		row := []string{w.bucketTime(tl, bucket)}
		for _, t := range tools {
			row = append(row, strconv.Itoa(counts[t.ID]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTeamsTime writes the dominant tool of every team per bucket.
func (w *Writer) writeTeamsTime(b *bufio.Writer, teams []string, tl *usage.Timeline) error {
	cw := csv.NewWriter(b)
	if err := cw.Write(append([]string{"TIME"}, teams...)); err != nil {
		return err
	}
	for _, bucket := range tl.Buckets() {
		if len(tl.Counts(bucket)) == 0 {
			continue
		}
		row := []string{w.bucketTime(tl, bucket)}
		for _, team := range teams {
			cell := noTool
			if id, ok := tl.Dominant(bucket, team); ok {
				cell = string(id)
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTeamNames(b *bufio.Writer, teams []string, names map[string]string) error {
	cw := csv.NewWriter(b)
	if err := cw.Write([]string{"TEAM", "NAME"}); err != nil {
		return err
	}
	for _, team := range teams {
		if err := cw.Write([]string{team, names[team]}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeMismatches writes one row per flagged submission; TIME is epoch seconds.
func writeMismatches(b *bufio.Writer, rep *crossref.Report) error {
	cw := csv.NewWriter(b)
	if err := cw.Write([]string{"TIME", "TEAM", "LANGUAGE", "TOOL"}); err != nil {
		return err
	}
	for _, m := range rep.Mismatches {
		row := []string{
			strconv.FormatInt(m.Time/1000, 10),
			m.TeamID,
			m.Language.String(),
			string(m.Tool),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeLangTable writes a language x tool table. Languages without any
// count are left out.
func writeLangTable(b *bufio.Writer, tools []tool.Tool, table map[model.Language][]int) error {
	cw := csv.NewWriter(b)
	header := []string{"LANG"}
	for _, t := range tools {
		header = append(header, string(t.ID))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, lang := range model.Languages() {
		counts := table[lang]
		total := 0
		for _, n := range counts {
			total += n
		}
		if total == 0 {
			continue
		}
		row := []string{lang.String()}
		for i := range tools {
			row = append(row, strconv.Itoa(counts[i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) bucketTime(tl *usage.Timeline, bucket int64) string {
	return tl.BucketStart(bucket).In(w.loc).Format(timeLayout)
}
