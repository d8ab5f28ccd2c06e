// Package crossref attributes each submission to the dominant tool of its team
// at submission time and flags languages the tool is not expected to produce.
package crossref

import (
	"context"
	"sort"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/internal/usage"
	"github.com/okian/toolaudit/pkg/logger"
	"github.com/okian/toolaudit/pkg/metrics"
)

// Attribution links one submission to the tool its team used in that bucket.
type Attribution struct {
	SubmissionID string
	TeamID       string
	Language     model.Language
	Time         int64 // epoch milliseconds
	Bucket       int64
	Tool         model.ToolID
	Accepted     bool
	Mismatch     bool
}

// Report is the result of one cross-reference pass.
type Report struct {
	// Tools are the contingency table columns, Unknown last.
	Tools        []tool.Tool
	Attributions []Attribution
	Mismatches   []Attribution
	// Submitted and Accepted count submissions per language and tool; the
	// slices are indexed like Tools.
	Submitted map[model.Language][]int
	Accepted  map[model.Language][]int
	Excluded  int
}

// SubmittedCount returns the submitted count for (lang, id).
func (r *Report) SubmittedCount(lang model.Language, id model.ToolID) int {
	return r.count(r.Submitted, lang, id)
}

// AcceptedCount returns the accepted count for (lang, id).
func (r *Report) AcceptedCount(lang model.Language, id model.ToolID) int {
	return r.count(r.Accepted, lang, id)
}

func (r *Report) count(table map[model.Language][]int, lang model.Language, id model.ToolID) int {
	for i, t := range r.Tools {
		if t.ID == id {
			return table[lang][i]
		}
	}
	return 0
}

// Analyzer cross-references submissions against a usage timeline.
type Analyzer struct {
	registry *tool.Registry
	logger   logger.Logger
}

// New creates an analyzer with configuration options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Named("crossref")
	}
	return a
}

// Analyze attributes subs against tl. Submissions whose bucket was not
// observed in tl are excluded from the tables and from mismatch detection. Without a configured registry the timeline's one is used.
func (a *Analyzer) Analyze(ctx context.Context, subs []model.Submission, tl *usage.Timeline) *Report {
	reg := a.registry
	if reg == nil {
		reg = tl.Registry()
	}
	tools := reg.ToolsWithUnknown()
	rep := &Report{
		Tools:     tools,
		Submitted: make(map[model.Language][]int),
		Accepted:  make(map[model.Language][]int),
	}
	for _, lang := range model.Languages() {
		rep.Submitted[lang] = make([]int, len(tools))
		rep.Accepted[lang] = make([]int, len(tools))
	}

	ordered := make([]model.Submission, len(subs))
	copy(ordered, subs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Time != ordered[j].Time {
			return ordered[i].Time < ordered[j].Time
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, s := range ordered {
		bucket := tl.BucketOfMillis(s.Time)
		if !tl.Has(bucket) {
			rep.Excluded++
			metrics.RecordExcludedSubmission()
			continue
		}
		t := reg.Unknown()
		if id, ok := tl.Dominant(bucket, s.TeamID); ok {
			if found, ok := reg.Lookup(id); ok {
				t = found
			}
		}

		at := Attribution{
			SubmissionID: s.ID,
			TeamID:       s.TeamID,
			Language:     s.Language,
			Time:         s.Time,
			Bucket:       bucket,
			Tool:         t.ID,
			Accepted:     s.Accepted,
			Mismatch:     !t.Expects(s.Language),
		}
		rep.Attributions = append(rep.Attributions, at)
		metrics.RecordAttributedSubmission()
		if at.Mismatch {
			rep.Mismatches = append(rep.Mismatches, at)
			metrics.RecordMismatch(s.Language.String(), string(t.ID))
		}

		if _, ok := rep.Submitted[s.Language]; !ok {
			rep.Submitted[s.Language] = make([]int, len(tools))
			rep.Accepted[s.Language] = make([]int, len(tools))
		}
		rep.Submitted[s.Language][t.Index()]++
		if s.Accepted {
			rep.Accepted[s.Language][t.Index()]++
		}
	}

	a.logger.Info(ctx, "cross-referenced submissions",
		logger.Int("attributed", len(rep.Attributions)),
		logger.Int("excluded", rep.Excluded),
		logger.Int("mismatches", len(rep.Mismatches)),
	)
	return rep
}
