package feed

import (
	"github.com/okian/toolaudit/internal/domain/dedupe"
	"github.com/okian/toolaudit/pkg/logger"
)

// Option applies a configuration option to the Ingester.
type Option func(*Ingester)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithValidation checks every record against the embedded JSON schema before
// applying it. Records that fail are skipped.
func WithValidation(enabled bool) Option {
	return func(i *Ingester) {
		i.validate = enabled
	}
}

// WithDeduperFactory sets how the accepted-pair set of each ingestion is created.
func WithDeduperFactory(f func() dedupe.Deduper) Option {
	return func(i *Ingester) {
		if f != nil {
			i.newDeduper = f
		}
	}
}

// WithMaxLineSize sets the longest record line accepted, in bytes.
func WithMaxLineSize(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.maxLine = n
		}
	}
}
