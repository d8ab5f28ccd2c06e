package tool

import "strings"

// shellWrappers are leading invocations that only launch the real command.
var shellWrappers = []string{ //nolint:gochecknoglobals // static table
	"/bin/sh -c ",
	"/bin/bash -c ",
	"/usr/bin/bash -c ",
	"sh -c ",
	"bash -c ",
	"/usr/bin/env ",
	"env ",
}

// volatilePrefixes mark the first token from which a command line differs
// between machines: per-user paths, temp dirs and browser/electron sandbox flags.
var volatilePrefixes = []string{ //nolint:gochecknoglobals // static table
	"/home/",
	"/tmp/",
	"/run/user/",
	"--type=",
	"--no-sandbox",
	"--user-data-dir=",
	"--enable-crashpad",
	"--field-trial-handle=",
}

// Normalize strips a leading shell wrapper and truncates cmd at the first
// volatile token so the same logical command classifies identically on every
// workstation. The first token itself is never dropped.
func Normalize(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	for _, w := range shellWrappers {
		if strings.HasPrefix(cmd, w) {
			cmd = strings.TrimSpace(strings.TrimPrefix(cmd, w))
			cmd = strings.Trim(cmd, `'"`)
			break
		}
	}

	fields := strings.Fields(cmd)
	for i, f := range fields {
		if i == 0 {
			continue
		}
		if isVolatile(f) {
			return strings.Join(fields[:i], " ")
		}
	}
	return strings.Join(fields, " ")
}

func isVolatile(token string) bool {
	for _, p := range volatilePrefixes {
		if strings.HasPrefix(token, p) {
			return true
		}
	}
	return false
}
