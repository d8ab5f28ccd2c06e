// Package feed ingests the line-delimited contest event feed into teams and
// submissions.
//
// Two wire schemas are accepted. In the first every record is an upsert. In
// the second records carry an "op" field and only "create" is applied to teams
// and submissions; judgements are inspected whatever their op, because the
// verdict arrives as an update there.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/okian/toolaudit/internal/domain/dedupe"
	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/pkg/logger"
	"github.com/okian/toolaudit/pkg/metrics"
)

// TimeLayout is the timestamp format of submission records.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	typeTeams       = "teams"
	typeSubmissions = "submissions"
	typeJudgements  = "judgements"
	opCreate        = "create"
	verdictAccepted = "AC"

	defaultMaxLine  = 16 << 20
	readBufferSize  = 64 << 10
	outcomeTooLong  = "too_long"
	recordTypeUnset = "unknown"
)

// Record outcomes reported to metrics.
const (
	outcomeApplied         = "applied"
	outcomeIgnored         = "ignored"
	outcomeMalformed       = "malformed"
	outcomeInvalid         = "invalid"
	outcomeUnknownLanguage = "unknown_language"
)

// Stats summarizes one ingestion.
type Stats struct {
	Lines           int
	Malformed       int
	Invalid         int
	Ignored         int
	UnknownLanguage int
	BadTime         int
	Accepted        int
	// FirstSubmission and LastSubmission are epoch milliseconds; both are
	// zero when no submission was ingested.
	FirstSubmission int64
	LastSubmission  int64
}

// Feed is the ingested state of an event feed.
type Feed struct {
	Teams       map[string]model.Team
	Submissions map[string]*model.Submission
	Stats       Stats

	accepted dedupe.Deduper
}

// TeamIDs returns the team ids ordered by their zero-padded sort key.
func (f *Feed) TeamIDs() []string {
	ids := make([]string, 0, len(f.Teams))
	for id := range f.Teams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ki, kj := model.TeamSortKey(ids[i]), model.TeamSortKey(ids[j])
		if ki != kj {
			return ki < kj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// HasTeam reports whether the feed registered team id.
func (f *Feed) HasTeam(id string) bool {
	_, ok := f.Teams[id]
	return ok
}

// SubmissionList returns copies of all submissions ordered by time, then id.
func (f *Feed) SubmissionList() []model.Submission {
	out := make([]model.Submission, 0, len(f.Submissions))
	for _, s := range f.Submissions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AcceptedPairs is the number of (team, problem) pairs solved.
func (f *Feed) AcceptedPairs() int64 {
	return f.accepted.Size()
}

// Ingester reads event feeds. It is safe for concurrent use; every call to
// Ingest builds an independent Feed.
type Ingester struct {
	logger     logger.Logger
	validate   bool
	schema     *jsonschema.Schema
	newDeduper func() dedupe.Deduper
	maxLine    int
}

// New creates an ingester with configuration options.
func New(opts ...Option) (*Ingester, error) {
	i := &Ingester{
		newDeduper: func() dedupe.Deduper { return dedupe.NewInMemoryDeduper() },
		maxLine:    defaultMaxLine,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = logger.Named("feed")
	}
	if i.validate {
		schema, err := compileRecordSchema()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchema, err)
		}
		i.schema = schema
	}
	return i, nil
}

// IngestFile opens path and ingests it. Failing to open the file is the only
// fatal condition besides read errors.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*Feed, error) {
	i.logger.Info(ctx, "reading event feed", logger.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()
	return i.Ingest(ctx, f)
}

// Ingest consumes r line by line. Malformed records, including lines longer
// than the configured maximum, are skipped. Only read errors are fatal.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader) (*Feed, error) {
	feed := &Feed{
		Teams:       make(map[string]model.Team),
		Submissions: make(map[string]*model.Submission),
		accepted:    i.newDeduper(),
	}

	br := bufio.NewReaderSize(r, readBufferSize)
	var buf []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, tooLong, readErr := readLine(br, buf[:0], i.maxLine)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrRead, readErr)
		}
		buf = raw

		line := bytes.TrimSpace(raw)
		switch {
		case tooLong:
			feed.Stats.Lines++
			feed.Stats.Malformed++
			metrics.RecordFeedRecord(recordTypeUnset, outcomeTooLong)
			i.logger.Warn(ctx, "record line too long, skipped",
				logger.Int("line", feed.Stats.Lines),
				logger.Int("max_bytes", i.maxLine),
			)
		case len(line) > 0:
			feed.Stats.Lines++
			i.apply(ctx, feed, line)
		}

		if readErr != nil {
			break
		}
	}

	i.summarize(ctx, feed)
	return feed, nil
}

// readLine reads one line into buf. A line over limit bytes, terminator
// included, is drained to its end and reported as tooLong; buf then holds
// no more than limit bytes of it.
func readLine(br *bufio.Reader, buf []byte, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong && len(buf)+len(chunk) > limit {
			tooLong = true
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}
		if !errors.Is(rerr, bufio.ErrBufferFull) {
			return buf, tooLong, rerr
		}
	}
}

// apply handles one line.
func (i *Ingester) apply(ctx context.Context, feed *Feed, line []byte) {
	var rec envelope
	if err := json.Unmarshal(line, &rec); err != nil || rec.Type == "" {
		feed.Stats.Malformed++
		metrics.RecordFeedRecord(recordTypeUnset, outcomeMalformed)
		return
	}
	if i.schema != nil {
		if err := validateRecord(i.schema, line); err != nil {
			feed.Stats.Invalid++
			metrics.RecordFeedRecord(rec.Type, outcomeInvalid)
			i.logger.Debug(ctx, "record failed schema validation",
				logger.String("type", rec.Type),
				logger.Error(err),
			)
			return
		}
	}

	var outcome string
	switch rec.Type {
	case typeTeams:
		outcome = i.team(feed, &rec)
	case typeSubmissions:
		outcome = i.submission(ctx, feed, &rec)
	case typeJudgements:
		outcome = i.judgement(ctx, feed, &rec)
	default:
		outcome = outcomeIgnored
	}

	switch outcome {
	case outcomeMalformed:
		feed.Stats.Malformed++
	case outcomeIgnored:
		feed.Stats.Ignored++
	}
	metrics.RecordFeedRecord(rec.Type, outcome)
}

func (i *Ingester) team(feed *Feed, rec *envelope) string {
	if !rec.applies() {
		return outcomeIgnored
	}
	var data teamData
	if err := rec.decode(&data); err != nil || data.ID == nil || data.Name == nil {
		return outcomeMalformed
	}
	feed.Teams[*data.ID] = model.Team{ID: *data.ID, Name: *data.Name}
	return outcomeApplied
}

func (i *Ingester) submission(ctx context.Context, feed *Feed, rec *envelope) string {
	if !rec.applies() {
		return outcomeIgnored
	}
	var data submissionData
	if err := rec.decode(&data); err != nil || !data.complete() {
		return outcomeMalformed
	}
	lang, ok := model.ParseLanguage(*data.LanguageID)
	if !ok {
		feed.Stats.UnknownLanguage++
		// the op-carrying schema drops these without a diagnostic
		if rec.Op == nil {
			i.logger.Warn(ctx, "unknown language",
				logger.String("language_id", *data.LanguageID),
				logger.String("submission", *data.ID),
			)
		}
		return outcomeUnknownLanguage
	}
	at, err := parseTime(*data.Time)
	if err != nil {
		feed.Stats.BadTime++
		i.logger.Debug(ctx, "bad submission time",
			logger.String("submission", *data.ID),
			logger.Error(err),
		)
		return outcomeMalformed
	}

	sub := &model.Submission{
		ID:        *data.ID,
		TeamID:    *data.TeamID,
		ProblemID: *data.ProblemID,
		Language:  lang,
		Time:      at.UnixMilli(),
	}
	if prev, ok := feed.Submissions[sub.ID]; ok && prev.Accepted {
		// acceptance never reverts
		sub.Accepted = true
	}
	feed.Submissions[sub.ID] = sub
	return outcomeApplied
}

func (i *Ingester) judgement(ctx context.Context, feed *Feed, rec *envelope) string {
	var data judgementData
	if err := rec.decode(&data); err != nil {
		return outcomeMalformed
	}
	if data.JudgementTypeID == nil || *data.JudgementTypeID != verdictAccepted || data.SubmissionID == nil {
		return outcomeIgnored
	}
	sub, ok := feed.Submissions[*data.SubmissionID]
	if !ok {
		return outcomeIgnored
	}
	if feed.accepted.SeenAndRecord(ctx, sub.TeamProblem()) {
		return outcomeIgnored
	}
	sub.Accepted = true
	feed.Stats.Accepted++
	return outcomeApplied
}

// summarize fills the submission time range and logs what was found.
func (i *Ingester) summarize(ctx context.Context, feed *Feed) {
	first := true
	for _, s := range feed.Submissions {
		if first || s.Time < feed.Stats.FirstSubmission {
			feed.Stats.FirstSubmission = s.Time
		}
		if first || s.Time > feed.Stats.LastSubmission {
			feed.Stats.LastSubmission = s.Time
		}
		first = false
	}

	metrics.UpdateFeedTotals(len(feed.Teams), len(feed.Submissions), feed.Stats.Accepted)

	i.logger.Info(ctx, "teams found",
		logger.Int("teams", len(feed.Teams)),
		logger.Strings("team_ids", feed.TeamIDs()),
	)
	i.logger.Info(ctx, "submissions found",
		logger.Int("submissions", len(feed.Submissions)),
		logger.Int("accepted", feed.Stats.Accepted),
		logger.Int("unknown_language", feed.Stats.UnknownLanguage),
		logger.Int("malformed", feed.Stats.Malformed),
		logger.Int("invalid", feed.Stats.Invalid),
	)
	if len(feed.Submissions) > 0 {
		i.logger.Info(ctx, "submission time range",
			logger.Int64("min", feed.Stats.FirstSubmission/1000),
			logger.Int64("max", feed.Stats.LastSubmission/1000),
		)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	if t2, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
		return t2, nil
	}
	return time.Time{}, err
}
