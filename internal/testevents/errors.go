package testevents

import "errors"

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid synthetic contest config")
	ErrWrite         = errors.New("write synthetic contest")
	ErrVerification  = errors.New("audit does not match plan")
)
