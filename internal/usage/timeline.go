package usage

import (
	"time"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/domain/tool"
)

// Timeline is the dominant-tool map: bucket index -> team -> tool.
// A team missing from a bucket had no observed tool activity in it.
type Timeline struct {
	width    int64
	registry *tool.Registry
	buckets  []int64
	dominant map[int64]map[string]model.ToolID
	counts   map[int64]map[model.ToolID]int

	sampled                 bool
	firstSample, lastSample int64
}

// Width is the bucket width.
func (t *Timeline) Width() time.Duration { return time.Duration(t.width) * time.Second }

// Registry is the registry the timeline was resolved against.
func (t *Timeline) Registry() *tool.Registry { return t.registry }

// BucketOf returns floor(sec / width); a time on a boundary starts a new bucket.
func (t *Timeline) BucketOf(sec int64) int64 {
	return floorDiv(sec, t.width)
}

// BucketOfMillis is BucketOf for epoch milliseconds.
func (t *Timeline) BucketOfMillis(ms int64) int64 {
	return floorDiv(ms, t.width*1000)
}

// BucketStart returns the start time of bucket b.
func (t *Timeline) BucketStart(b int64) time.Time {
	return time.Unix(b*t.width, 0)
}

// Buckets returns the observed bucket indexes in ascending order.
func (t *Timeline) Buckets() []int64 {
	return append([]int64(nil), t.buckets...)
}

// Range returns the first and last observed bucket.
func (t *Timeline) Range() (first, last int64, ok bool) {
	if len(t.buckets) == 0 {
		return 0, 0, false
	}
	return t.buckets[0], t.buckets[len(t.buckets)-1], true
}

// Has reports whether bucket b was observed. Gaps between observed buckets
// and buckets holding only samples without tool activity are not.
func (t *Timeline) Has(b int64) bool {
	_, ok := t.dominant[b]
	return ok
}

// Sampled returns the first and last sampled snapshot time in epoch seconds.
func (t *Timeline) Sampled() (first, last int64, ok bool) {
	return t.firstSample, t.lastSample, t.sampled
}

// Dominant returns the dominant tool of team in bucket b.
func (t *Timeline) Dominant(b int64, team string) (model.ToolID, bool) {
	id, ok := t.dominant[b][team]
	return id, ok
}

// Teams returns a copy of the team -> tool assignments of bucket b.
func (t *Timeline) Teams(b int64) map[string]model.ToolID {
	out := make(map[string]model.ToolID, len(t.dominant[b]))
	for k, v := range t.dominant[b] {
		out[k] = v
	}
	return out
}

// Counts returns how many teams used each tool as dominant tool in bucket b.
func (t *Timeline) Counts(b int64) map[model.ToolID]int {
	out := make(map[model.ToolID]int, len(t.counts[b]))
	for k, v := range t.counts[b] {
		out[k] = v
	}
	return out
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
