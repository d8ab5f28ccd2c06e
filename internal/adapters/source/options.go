package source

import (
	"strings"

	"github.com/okian/toolaudit/internal/snapshot"
	"github.com/okian/toolaudit/pkg/logger"
)

type options struct {
	prefix  string
	suffix  string
	hasTeam func(string) bool
	logger  logger.Logger
}

// Option applies a configuration option to Open.
type Option func(*options)

// WithPrefix sets the file name prefix preceding the unit id.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithSuffix sets the file name suffix following the unit id.
func WithSuffix(suffix string) Option {
	return func(o *options) {
		o.suffix = suffix
	}
}

// WithTeams keeps only units whose team satisfies has. A unit id that is not
// itself a team is tried as "<team>-<workstation>".
func WithTeams(has func(team string) bool) Option {
	return func(o *options) {
		o.hasTeam = has
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func (o *options) resolve(id string) (snapshot.Unit, bool) {
	if o.hasTeam == nil || o.hasTeam(id) {
		return snapshot.Unit{ID: id, Team: id}, true
	}
	if i := strings.LastIndex(id, "-"); i > 0 && o.hasTeam(id[:i]) {
		return snapshot.Unit{ID: id, Team: id[:i]}, true
	}
	return snapshot.Unit{}, false
}
