package metrics

import "errors"

// ErrWriteFailed is returned when the run metrics cannot be written as a textfile.
var ErrWriteFailed = errors.New("metrics textfile write failed")
