package snapshot

import (
	"github.com/okian/toolaudit/internal/domain/tool"
	"github.com/okian/toolaudit/pkg/logger"
)

// Option applies a configuration option to the Parser.
type Option func(*Parser)

// WithRegistry sets the tool registry used for classification.
func WithRegistry(r *tool.Registry) Option {
	return func(p *Parser) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithUserPrefix sets the prefix of the OS user owning a team's processes;
// team 17 runs as "team17" with the default prefix.
func WithUserPrefix(prefix string) Option {
	return func(p *Parser) {
		if prefix != "" {
			p.userPrefix = prefix
		}
	}
}

// WithCleanCommands strips shell wrappers and volatile segments before classification.
func WithCleanCommands(clean bool) Option {
	return func(p *Parser) {
		p.clean = clean
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}
