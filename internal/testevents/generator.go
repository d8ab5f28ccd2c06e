package testevents

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
)

// Generation constants.
const (
	defaultTeams       = 12
	defaultSubmissions = 8
	maxWorkstations    = 4
	idleOneIn          = 8
	acceptedOneIn      = 3
	backgroundCPU      = 0.5
	dominantCPUMin     = 4.0
	dominantCPUSteps   = 20
	pcgStream          = 0x9e3779b97f4a7c15
)

// Plan is the ground truth of a synthetic contest.
type Plan struct {
	Start   int64 // epoch seconds of the first bucket
	Width   int64 // bucket width in seconds
	Buckets int
	Samples []int64
	Teams   []string
	// Dominant holds, per team, the planned tool of every bucket; empty
	// means the team ran no tool in that bucket.
	Dominant    map[string][]model.ToolID
	Background  map[string]model.ToolID
	Submissions []Submission
}

// Submission is a generated submission and how it must be attributed.
// Excluded submissions fall in a bucket where no team ran any tool, so the
// audit has no observation there and must leave them out.
type Submission struct {
	model.Submission
	Tool     model.ToolID
	Mismatch bool
	Excluded bool
}

// Bucket returns the timeline bucket number of plan bucket i.
func (p *Plan) Bucket(i int) int64 { return p.Start/p.Width + int64(i) }

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Teams < 1:
		return fmt.Errorf("%w: teams must be positive", ErrInvalidConfig)
	case c.Workstations < 1 || c.Workstations > maxWorkstations:
		return fmt.Errorf("%w: workstations must be between 1 and %d", ErrInvalidConfig, maxWorkstations)
	case c.Interval < time.Second:
		return fmt.Errorf("%w: interval must be at least one second", ErrInvalidConfig)
	case c.Sample < time.Second || c.Sample > c.Interval:
		return fmt.Errorf("%w: sample period must be between one second and the interval", ErrInvalidConfig)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	case c.Submissions < 0:
		return fmt.Errorf("%w: submissions must not be negative", ErrInvalidConfig)
	case c.Dir == "":
		return fmt.Errorf("%w: output directory must not be empty", ErrInvalidConfig)
	}
	return nil
}

// NewPlan draws a contest from cfg. The same seed yields the same plan.
func NewPlan(cfg *Config, reg *tool.Registry) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^pcgStream)) //nolint:gosec // reproducible fixtures, not secrets

	width := int64(cfg.Interval / time.Second)
	start := cfg.Start.Unix()
	start -= ((start % width) + width) % width
	buckets := int((int64(cfg.Duration/time.Second) + width - 1) / width)
	end := start + int64(buckets)*width

	p := &Plan{
		Start:      start,
		Width:      width,
		Buckets:    buckets,
		Dominant:   make(map[string][]model.ToolID, cfg.Teams),
		Background: make(map[string]model.ToolID, cfg.Teams),
	}
	step := int64(cfg.Sample / time.Second)
	for t := start; t < end; t += step {
		p.Samples = append(p.Samples, t)
	}

	tools := reg.Tools()
	for i := 1; i <= cfg.Teams; i++ {
		team := strconv.Itoa(i)
		p.Teams = append(p.Teams, team)
		plan := make([]model.ToolID, buckets)
		for b := range plan {
			if r.IntN(idleOneIn) == 0 {
				continue
			}
			plan[b] = tools[r.IntN(len(tools))].ID
		}
		p.Dominant[team] = plan
		p.Background[team] = tools[r.IntN(len(tools))].ID
	}

	active := make([]bool, buckets)
	for _, plan := range p.Dominant {
		for b, id := range plan {
			active[b] = active[b] || id != ""
		}
	}

	langs := model.Languages()
	seq := 0
	for _, team := range p.Teams {
		for i := 0; i < cfg.Submissions; i++ {
			seq++
			at := start*1000 + r.Int64N((end-start)*1000)
			lang := langs[r.IntN(len(langs))]
			b := (at/1000 - start) / width
			id := p.Dominant[team][b]
			t := reg.Unknown()
			if id != "" {
				t, _ = reg.Lookup(id)
			}
			p.Submissions = append(p.Submissions, Submission{
				Submission: model.Submission{
					ID:        strconv.Itoa(seq),
					TeamID:    team,
					ProblemID: "p" + strconv.Itoa(i),
					Language:  lang,
					Time:      at,
					Accepted:  r.IntN(acceptedOneIn) == 0,
				},
				Tool:     t.ID,
				Mismatch: active[b] && !t.Expects(lang),
				Excluded: !active[b],
			})
		}
	}
	return p, nil
}

// dominantCPU draws the per-sample CPU of a planned tool. It always exceeds
// the background load of every workstation combined.
func dominantCPU(r *rand.Rand) float64 {
	return dominantCPUMin + float64(r.IntN(dominantCPUSteps))/10
}

// command returns a command line classified as id.
func command(reg *tool.Registry, id model.ToolID) string {
	t, ok := reg.Lookup(id)
	if !ok || len(t.Prefixes) == 0 {
		return "/usr/bin/bash --login"
	}
	return t.Prefixes[0] + " main.c"
}

// wireLanguage is the feed language id of lang.
func wireLanguage(lang model.Language) string {
	if lang == model.Python {
		return "python3"
	}
	return lang.Prefix()
}
