package usage

import (
	"time"

	"github.com/okian/toolaudit/internal/domain/tool"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWidth sets the bucket width. Widths under one second are ignored.
func WithWidth(width time.Duration) Option {
	return func(a *Aggregator) {
		if s := int64(width / time.Second); s > 0 {
			a.width = s
		}
	}
}

// WithRegistry sets the registry that defines tool order for tie breaking.
func WithRegistry(r *tool.Registry) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithGroupByUnit keys the timeline by snapshot unit (team-workstation)
// instead of by team.
func WithGroupByUnit(byUnit bool) Option {
	return func(a *Aggregator) {
		a.byUnit = byUnit
	}
}
