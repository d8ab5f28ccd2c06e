package repository

import "github.com/okian/toolaudit/pkg/logger"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBusyTimeout sets how long a write waits for a locked database, in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(s *SQLiteStore) {
		if ms > 0 {
			s.busyTimeoutMS = ms
		}
	}
}
