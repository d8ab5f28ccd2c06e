package snapshot

import "errors"

// Sentinel kinds for snapshot errors.
var (
	ErrRead = errors.New("read snapshot")
)
