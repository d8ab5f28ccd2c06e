// Package tool holds the ordered catalog of development tools and classifies
// process command lines against it.
package tool

import (
	"strings"

	"github.com/okian/toolaudit/internal/domain/model"
)

// Well-known tool identifiers.
const (
	CLion      model.ToolID = "CLion"
	Idea       model.ToolID = "Idea"
	Pycharm    model.ToolID = "Pycharm"
	Eclipse    model.ToolID = "Eclipse"
	CodeBlocks model.ToolID = "CodeBlocks"
	Geany      model.ToolID = "Geany"
	Emacs      model.ToolID = "Emacs"
	GEdit      model.ToolID = "GEdit"
	Vim        model.ToolID = "Vim"
	Vi         model.ToolID = "Vi"
	VSCode     model.ToolID = "VSCode"
	Kate       model.ToolID = "Kate"
	Nano       model.ToolID = "Nano"
	Unknown    model.ToolID = "Unknown"
)

// Tool describes one development tool.
type Tool struct {
	ID       model.ToolID
	Prefixes []string
	// Languages the tool is expected to be used for. Ignored when AllLanguages is set.
	Languages    []model.Language
	AllLanguages bool

	index int
}

// Index is the tool's position in its registry; Unknown is always last.
func (t Tool) Index() int { return t.index }

// IsUnknown reports whether t is the Unknown sentinel.
func (t Tool) IsUnknown() bool { return t.ID == Unknown }

// Expects reports whether a submission in lang is expected from this tool.
func (t Tool) Expects(lang model.Language) bool {
	if t.AllLanguages {
		return true
	}
	for _, l := range t.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Registry is an immutable ordered list of tools followed by Unknown.
type Registry struct {
	tools []Tool
	byID  map[model.ToolID]int
}

// NewRegistry builds a registry from tools in classification order and
// appends the Unknown sentinel.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{
		tools: make([]Tool, 0, len(tools)+1),
		byID:  make(map[model.ToolID]int, len(tools)+1),
	}
	for _, t := range tools {
		if t.ID == Unknown {
			continue
		}
		t.index = len(r.tools)
		t.Prefixes = append([]string(nil), t.Prefixes...)
		t.Languages = append([]model.Language(nil), t.Languages...)
		r.byID[t.ID] = t.index
		r.tools = append(r.tools, t)
	}
	r.byID[Unknown] = len(r.tools)
	r.tools = append(r.tools, Tool{ID: Unknown, index: len(r.tools)})
	return r
}

var defaultRegistry = NewRegistry( //nolint:gochecknoglobals // immutable built-in table
	Tool{ID: CLion, Prefixes: []string{"/opt/clion", "/usr/bin/clion", "clion"}, Languages: []model.Language{model.C}},
	Tool{ID: Idea, Prefixes: []string{"/usr/lib/idea", "idea"}, Languages: []model.Language{model.Java, model.Kotlin}},
	Tool{ID: Pycharm, Prefixes: []string{"/usr/lib/pycharm", "pycharm"}, Languages: []model.Language{model.Python}},
	Tool{ID: Eclipse, Prefixes: []string{"/usr/lib/eclipse", "/usr/bin/java -Dosgi.requiredJavaVersion=1.8", "eclipse"}, Languages: []model.Language{model.Java}},
	Tool{ID: CodeBlocks, Prefixes: []string{"/usr/bin/codeblocks", "codeblocks"}, Languages: []model.Language{model.C}},
	Tool{ID: Geany, Prefixes: []string{"/usr/bin/geany", "geany"}, AllLanguages: true},
	Tool{ID: Emacs, Prefixes: []string{"/usr/bin/emacs", "emacs"}, AllLanguages: true},
	Tool{ID: GEdit, Prefixes: []string{"/usr/bin/gedit", "gedit"}, AllLanguages: true},
	Tool{ID: Vim, Prefixes: []string{"/usr/bin/vim", "vim", "gvim"}, AllLanguages: true},
	Tool{ID: Vi, Prefixes: []string{"/usr/bin/vi", "vi"}, AllLanguages: true},
	Tool{ID: VSCode, Prefixes: []string{"/usr/share/code", "/usr/bin/code", "vscode"}, Languages: []model.Language{model.C, model.Java, model.Python}},
	Tool{ID: Kate, Prefixes: []string{"/usr/bin/kate", "kate"}, AllLanguages: true},
	Tool{ID: Nano, Prefixes: []string{"nano"}, AllLanguages: true},
)

// Default returns the built-in contest workstation registry.
func Default() *Registry { return defaultRegistry }

// Classify returns the first tool whose prefix cmd starts with, or Unknown.
func (r *Registry) Classify(cmd string) Tool {
	for _, t := range r.tools {
		for _, p := range t.Prefixes {
			if strings.HasPrefix(cmd, p) {
				return t
			}
		}
	}
	return r.Unknown()
}

// Lookup returns the tool registered under id.
func (r *Registry) Lookup(id model.ToolID) (Tool, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// ExpectedLanguages returns the languages id is expected to be used for.
// Unknown and unregistered ids expect nothing.
func (r *Registry) ExpectedLanguages(id model.ToolID) []model.Language {
	t, ok := r.Lookup(id)
	if !ok {
		return nil
	}
	if t.AllLanguages {
		return model.Languages()
	}
	return append([]model.Language(nil), t.Languages...)
}

// Unknown returns the sentinel tool.
func (r *Registry) Unknown() Tool { return r.tools[len(r.tools)-1] }

// Tools returns the classifiable tools, without Unknown.
func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.tools[:len(r.tools)-1]...)
}

// ToolsWithUnknown returns every tool including the trailing Unknown.
func (r *Registry) ToolsWithUnknown() []Tool {
	return append([]Tool(nil), r.tools...)
}

// Len is the number of tools including Unknown.
func (r *Registry) Len() int { return len(r.tools) }
