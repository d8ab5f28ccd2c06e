package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrOpen         = errors.New("open run store")
	ErrNotFound     = errors.New("not found")
	ErrDuplicateRun = errors.New("duplicate run")
)
