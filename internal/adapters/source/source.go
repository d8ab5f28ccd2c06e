// Package source lists the per-team snapshot dumps of a contest, stored either
// as files in a directory or as entries of a zip archive.
package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/okian/toolaudit/internal/domain/model"
	"github.com/okian/toolaudit/internal/snapshot"
	"github.com/okian/toolaudit/pkg/logger"
)

// Defaults for snapshot file names: ps.team17.txt, ps.team17-2.txt.
const (
	DefaultPrefix = "ps.team"
	DefaultSuffix = ".txt"
)

// Entry is one snapshot dump.
type Entry struct {
	Unit snapshot.Unit
	Name string
	open func() (io.ReadCloser, error)
}

// NewEntry creates an entry read through open.
func NewEntry(unit snapshot.Unit, name string, open func() (io.ReadCloser, error)) Entry {
	return Entry{Unit: unit, Name: name, open: open}
}

// Open opens the dump for reading.
func (e Entry) Open() (io.ReadCloser, error) {
	rc, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, e.Name, err)
	}
	return rc, nil
}

// Source is an opened snapshot source.
type Source struct {
	path    string
	entries []Entry
	skipped int
	closer  io.Closer
}

// Open opens a directory or zip archive of snapshot dumps. Entries are
// matched by base name, resolved to their team and ordered by team sort key.
func Open(ctx context.Context, p string, opts ...Option) (*Source, error) {
	o := options{
		prefix: DefaultPrefix,
		suffix: DefaultSuffix,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Named("source")
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	s := &Source{path: p}
	var names []string
	openers := make(map[string]func() (io.ReadCloser, error))
	if info.IsDir() {
		des, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		for _, de := range des {
			if de.IsDir() {
				continue
			}
			full := filepath.Join(p, de.Name())
			names = append(names, de.Name())
			openers[de.Name()] = func() (io.ReadCloser, error) { return os.Open(full) }
		}
	} else {
		zr, err := zip.OpenReader(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		s.closer = zr
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			names = append(names, f.Name)
			openers[f.Name] = f.Open
		}
	}

	seen := make(map[string]struct{})
	for _, name := range names {
		id, ok := unitID(name, o.prefix, o.suffix)
		if !ok {
			continue
		}
		unit, ok := o.resolve(id)
		if !ok {
			s.skipped++
			o.logger.Debug(ctx, "snapshot without team", logger.String("name", name))
			continue
		}
		if _, dup := seen[unit.ID]; dup {
			s.skipped++
			o.logger.Warn(ctx, "duplicate snapshot unit", logger.String("name", name))
			continue
		}
		seen[unit.ID] = struct{}{}
		s.entries = append(s.entries, Entry{Unit: unit, Name: name, open: openers[name]})
	}
	sort.Slice(s.entries, func(i, j int) bool {
		a, b := s.entries[i].Unit, s.entries[j].Unit
		if ka, kb := model.TeamSortKey(a.Team), model.TeamSortKey(b.Team); ka != kb {
			return ka < kb
		}
		return a.ID < b.ID
	})

	o.logger.Info(ctx, "found snapshot files",
		logger.String("path", p),
		logger.Int("units", len(s.entries)),
		logger.Int("skipped", s.skipped),
	)
	return s, nil
}

// Entries returns the matched dumps in team order.
func (s *Source) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Teams returns the distinct teams of the entries in team order.
func (s *Source) Teams() []string {
	var teams []string
	seen := make(map[string]struct{})
	for _, e := range s.entries {
		if _, ok := seen[e.Unit.Team]; ok {
			continue
		}
		seen[e.Unit.Team] = struct{}{}
		teams = append(teams, e.Unit.Team)
	}
	return teams
}

// Skipped is the number of matching names dropped for having no known team.
func (s *Source) Skipped() int { return s.skipped }

// Close releases the archive, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// unitID extracts the unit id from an entry name.
func unitID(name, prefix, suffix string) (string, bool) {
	base := path.Base(filepath.ToSlash(name))
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) {
		return "", false
	}
	if len(base) < len(prefix)+len(suffix) {
		return "", false
	}
	id := base[len(prefix) : len(base)-len(suffix)]
	return id, id != ""
}
