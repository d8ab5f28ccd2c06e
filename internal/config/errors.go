package config

import "errors"

// Sentinel errors returned by Validate and Load.
var (
	// ErrInvalidConfig marks a field outside its allowed range.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a config file, .env file or env var that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
