package source

import "errors"

// ErrSourceUnavailable reports a snapshot source that cannot be read.
var ErrSourceUnavailable = errors.New("snapshot source unavailable")
