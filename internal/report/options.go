package report

import (
	"time"

	"github.com/okian/toolaudit/pkg/logger"
)

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithLocation sets the time zone of the TIME columns.
func WithLocation(loc *time.Location) Option {
	return func(w *Writer) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// WithChart enables the text chart of tool usage.
func WithChart(enabled bool, height int) Option {
	return func(w *Writer) {
		w.chart = enabled
		if height > 0 {
			w.chartHeight = height
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}
