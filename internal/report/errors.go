package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrResultDir = errors.New("result directory unavailable")
	ErrWrite     = errors.New("write report")
)
