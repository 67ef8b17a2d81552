// Package selector picks the files whose content is shown to the model as
// context for a query.
package selector

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/store"
)

// DefaultIgnore lists the patterns skipped unless the caller overrides them.
var DefaultIgnore = []string{".git", "__pycache__", "*.pyc", ".DS_Store", ".env", "node_modules", "venv"}

// Lister enumerates candidate context files under a directory.
type Lister struct {
	store   store.Store
	include string
	ignore  []glob.Glob
}

type ListerOption func(*Lister) error

// WithInclude limits candidates to a doublestar pattern, "**/*" by default.
func WithInclude(pattern string) ListerOption {
	return func(l *Lister) error {
		if pattern == "" {
			return nil
		}
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid include pattern %q", pattern)
		}
		l.include = pattern
		return nil
	}
}

// WithIgnore replaces DefaultIgnore. A pattern matches a whole relative path
// or any single element of it.
func WithIgnore(patterns ...string) ListerOption {
	return func(l *Lister) error {
		compiled, err := compileIgnore(patterns)
		if err != nil {
			return err
		}
		l.ignore = compiled
		return nil
	}
}

func NewLister(s store.Store, opts ...ListerOption) (*Lister, error) {
	ignore, err := compileIgnore(DefaultIgnore)
	if err != nil {
		return nil, err
	}
	l := &Lister{store: s, include: "**/*", ignore: ignore}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func compileIgnore(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ignore pattern %q", p)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// List returns the files under root, relative to it with forward slashes and
// sorted, leaving out ignored paths. Ignored directories are not descended.
func (l *Lister) List(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := l.store.GlobWalk(ctx, root, "**/*", func(e store.Entry) error {
		if l.Ignored(e.Path) {
			if e.Dir {
				return fs.SkipDir
			}
			return nil
		}
		if e.Dir {
			return nil
		}
		if ok, _ := doublestar.Match(l.include, e.Path); ok {
			files = append(files, e.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Ignored reports whether rel, a slash separated relative path, matches an
// ignore pattern.
func (l *Lister) Ignored(rel string) bool {
	rel = path.Clean(rel)
	for _, g := range l.ignore {
		if g.Match(rel) {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if g.Match(part) {
				return true
			}
		}
	}
	return false
}
