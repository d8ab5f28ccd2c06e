package crossref

import (
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/pkg/logger"
)

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithRegistry sets the registry that supplies expected languages.
func WithRegistry(r *tool.Registry) Option {
	return func(a *Analyzer) {
		a.registry = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}
