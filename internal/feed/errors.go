package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrOpen   = errors.New("open event feed")
	ErrRead   = errors.New("read event feed")
	ErrSchema = errors.New("feed record schema")

	errNoData = errors.New("record has no data")
)
