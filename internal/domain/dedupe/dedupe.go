// Package dedupe tracks keys that have already produced an effect, giving
// at-most-once semantics to replayed or repeated feed events.
package dedupe

import (
	"context"
	"sort"
	"sync"
)

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Contains reports whether key was recorded, without recording it.
	Contains(ctx context.Context, key string) bool

	Size() int64
}

// inMemoryDeduper is an unbounded set. Entries are never evicted: forgetting a
// (team, problem) pair would let a later AC count as a first solve.
type inMemoryDeduper struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	hint int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.hint)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Contains(_ context.Context, key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.seen[key]
	return exists
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.seen))
}

// Keys returns the recorded keys of d in ascending order. It returns nil for
// implementations other than the in-memory one.
func Keys(d Deduper) []string {
	m, ok := d.(*inMemoryDeduper)
	if !ok {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.seen))
	for k := range m.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
