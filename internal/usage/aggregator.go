// Package usage buckets tool observations into fixed time intervals and
// resolves the dominant tool of every team in every bucket.
package usage

import (
	"sort"
	"time"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
)

// DefaultWidth is the bucket width used when none is configured.
const DefaultWidth = 10 * time.Minute

// Aggregator folds observations into a Timeline.
type Aggregator struct {
	width    int64 // seconds
	registry *tool.Registry
	byUnit   bool
}

// New creates an aggregator with configuration options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		width:    int64(DefaultWidth / time.Second),
		registry: tool.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate resolves the dominant tool per team per bucket. A bucket is
// observed when at least one observation of a registered tool fell into it.
// samples are the sampled snapshot times; they only set the sampled range and
// never make a bucket observed. Neither input needs to be sorted.
func (a *Aggregator) Aggregate(obs []model.Observation, samples []int64) *Timeline {
	tl := &Timeline{
		width:    a.width,
		registry: a.registry,
		dominant: make(map[int64]map[string]model.ToolID),
		counts:   make(map[int64]map[model.ToolID]int),
	}

	sorted := make([]model.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	tools := a.registry.ToolsWithUnknown()
	vectors := make(map[string][]float64)
	var cur int64
	hasCur := false

	resolve := func() {
		if !hasCur {
			return
		}
		top := make(map[string]model.ToolID)
		counts := make(map[model.ToolID]int)
		for key, vec := range vectors {
			best, bestCPU := -1, 0.0
			for i, v := range vec {
				if v > bestCPU {
					best, bestCPU = i, v
				}
			}
			clear(vec)
			if best < 0 {
				continue
			}
			top[key] = tools[best].ID
			counts[tools[best].ID]++
		}
		tl.dominant[cur] = top
		tl.counts[cur] = counts
	}

	for _, o := range sorted {
		t, ok := a.registry.Lookup(o.Tool)
		if !ok {
			continue
		}
		b := tl.BucketOf(o.Time)
		if !hasCur || b != cur {
			resolve()
			cur, hasCur = b, true
		}
		key := o.Team
		if a.byUnit {
			key = o.Unit
		}
		vec, ok := vectors[key]
		if !ok {
			vec = make([]float64, len(tools))
			vectors[key] = vec
		}
		vec[t.Index()] += o.CPU
	}
	resolve()

	for i, s := range samples {
		if i == 0 || s < tl.firstSample {
			tl.firstSample = s
		}
		if i == 0 || s > tl.lastSample {
			tl.lastSample = s
		}
	}
	tl.sampled = len(samples) > 0
	tl.buckets = make([]int64, 0, len(tl.dominant))
	for b := range tl.dominant {
		tl.buckets = append(tl.buckets, b)
	}
	sort.Slice(tl.buckets, func(i, j int) bool { return tl.buckets[i] < tl.buckets[j] })
	return tl
}
