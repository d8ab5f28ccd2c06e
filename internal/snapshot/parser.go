// Package snapshot parses per-team process snapshot dumps into tool usage observations.
//
// A dump is a sequence of blocks. Each block starts with a line holding only
// the epoch-seconds sampling time, followed by `ps aux` rows:
//
//	USER PID %CPU %MEM VSZ RSS TTY STAT START TIME COMMAND
//
// COMMAND is the remainder of the row and may contain whitespace.
package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/pkg/logger"
)

const (
	psColumns      = 11
	colUser        = 0
	colCPU         = 2
	colCommand     = 10
	minToolCPU     = 0.01
	ctxCheckPeriod = 4096
)

// Unit identifies one snapshot dump: a team, or one workstation of a team.
type Unit struct {
	ID   string
	Team string
}

// Stats counts what happened to the lines of one dump.
type Stats struct {
	Lines        int
	Timestamps   int
	Classified   int
	Unidentified int
	ForeignUser  int
	Malformed    int
}

// Result is the outcome of parsing one dump.
type Result struct {
	Unit         Unit
	Observations []model.Observation
	// Unidentified holds team command lines that matched no known tool.
	Unidentified map[string]struct{}
	// Times holds every sampled block time, ascending and unique.
	Times []int64
	Stats Stats
}

// Parser turns dumps into observations. It is safe for concurrent use.
type Parser struct {
	registry   *tool.Registry
	userPrefix string
	clean      bool
	logger     logger.Logger
}

// NewParser creates a parser with configuration options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		registry:   tool.Default(),
		userPrefix: "team",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Named("snapshot")
	}
	return p
}

// blockState accumulates CPU per tool for the current block.
type blockState struct {
	time    int64
	hasTime bool
	cpu     []float64
}

// Parse reads one dump. Malformed rows are skipped; only read errors and
// context cancellation are returned.
func (p *Parser) Parse(ctx context.Context, unit Unit, r io.Reader) (*Result, error) {
	res := &Result{
		Unit:         unit,
		Unidentified: make(map[string]struct{}),
	}
	owner := p.userPrefix + unit.Team
	tools := p.registry.Tools()
	block := blockState{cpu: make([]float64, len(tools))}
	emitted := make(map[obsKey]int)
	times := make(map[int64]struct{})

	flush := func() {
		if !block.hasTime {
			// rows before the first timestamp have no time to be stamped with
			clear(block.cpu)
			return
		}
		times[block.time] = struct{}{}
		for i, v := range block.cpu {
			if v == 0 {
				continue
			}
			key := obsKey{time: block.time, tool: i}
			if at, ok := emitted[key]; ok {
				res.Observations[at].CPU += v
			} else {
				emitted[key] = len(res.Observations)
				res.Observations = append(res.Observations, model.Observation{
					Time: block.time,
					Unit: unit.ID,
					Team: unit.Team,
					Tool: tools[i].ID,
					CPU:  v,
				})
			}
			block.cpu[i] = 0
		}
	}

	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("%w: %s: %w", ErrRead, unit.ID, readErr)
		}
		if line != "" {
			res.Stats.Lines++
			if res.Stats.Lines%ctxCheckPeriod == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			line = strings.TrimRight(line, "\r\n")

			if t, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64); err == nil {
				res.Stats.Timestamps++
				// a repeated time keeps accumulating into the same block
				if !block.hasTime || t != block.time {
					flush()
					block.time, block.hasTime = t, true
				}
			} else {
				p.row(line, owner, &block, res)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
	}
	flush()

	sort.SliceStable(res.Observations, func(i, j int) bool {
		return res.Observations[i].Time < res.Observations[j].Time
	})
	res.Times = make([]int64, 0, len(times))
	for t := range times {
		res.Times = append(res.Times, t)
	}
	sort.Slice(res.Times, func(i, j int) bool { return res.Times[i] < res.Times[j] })

	p.logger.Debug(ctx, "parsed snapshot",
		logger.String("unit", unit.ID),
		logger.Int("lines", res.Stats.Lines),
		logger.Int("blocks", len(res.Times)),
		logger.Int("observations", len(res.Observations)),
		logger.Int("malformed", res.Stats.Malformed),
	)
	return res, nil
}

type obsKey struct {
	time int64
	tool int
}

// row handles one process-table line.
func (p *Parser) row(line, owner string, block *blockState, res *Result) {
	cols := splitColumns(line, psColumns)
	if len(cols) == 0 || cols[colUser] != owner {
		res.Stats.ForeignUser++
		return
	}
	if len(cols) < psColumns {
		res.Stats.Malformed++
		return
	}
	cmd := cols[colCommand]
	if p.clean {
		cmd = tool.Normalize(cmd)
	}
	t := p.registry.Classify(cmd)
	if t.IsUnknown() {
		res.Stats.Unidentified++
		res.Unidentified[cmd] = struct{}{}
		return
	}
	cpu, err := strconv.ParseFloat(cols[colCPU], 64)
	if err != nil || math.IsNaN(cpu) || math.IsInf(cpu, 0) {
		res.Stats.Malformed++
		return
	}
	res.Stats.Classified++
	i := t.Index()
	block.cpu[i] = math.Max(block.cpu[i]+cpu, minToolCPU)
}

// splitColumns splits line on runs of blanks into at most n columns; the last
// column keeps the rest of the line verbatim.
func splitColumns(line string, n int) []string {
	var cols []string
	rest := strings.TrimLeft(line, " \t")
	for rest != "" {
		if len(cols) == n-1 {
			cols = append(cols, rest)
			break
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			cols = append(cols, rest)
			break
		}
		cols = append(cols, rest[:end])
		rest = strings.TrimLeft(rest[end:], " \t")
	}
	return cols
}
