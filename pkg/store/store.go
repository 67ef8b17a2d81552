// Package store is the file-store collaborator used by the anchor patch engine
// and the orchestrator. Paths are resolved to absolute, cleaned form before use
// and writes replace the target in one rename so readers never observe a
// partially written file.
package store

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const maxLinks = 40

// ErrNotFound is returned by Read when the path does not exist.
var ErrNotFound = errors.New("file not found")

// Store reads and writes whole files.
type Store interface {
	// Abs resolves path to its absolute canonical form.
	Abs(path string) (string, error)
	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)
	// Read returns the file content or ErrNotFound.
	Read(ctx context.Context, path string) (string, error)
	// ReadHead returns at most n bytes from the start of the file.
	ReadHead(ctx context.Context, path string, n int) (string, error)
	// Write replaces the file content, creating parent directories as needed.
	Write(ctx context.Context, path, content string) error
	// Glob lists the entries under root matching a doublestar pattern.
	Glob(ctx context.Context, root, pattern string) ([]Entry, error)
	// GlobWalk calls fn for each match under root in walk order. Returning
	// fs.SkipDir for a directory skips its contents.
	GlobWalk(ctx context.Context, root, pattern string, fn func(Entry) error) error
}

// Entry is a path found by Glob.
type Entry struct {
	// Path is slash-separated and relative to the glob root.
	Path string `json:"path"`
	Dir  bool   `json:"dir,omitempty"`
	Size int64  `json:"size"`
}

// FS is a Store backed by an afero filesystem.
type FS struct {
	fs   afero.Fs
	base string
	perm os.FileMode
}

// Option configures an FS.
type Option func(*FS)

// WithBaseDir resolves relative paths against dir instead of the process working directory.
func WithBaseDir(dir string) Option {
	return func(s *FS) {
		s.base = dir
	}
}

// New wraps an afero filesystem.
func New(fs afero.Fs, opts ...Option) *FS {
	s := &FS{fs: fs, perm: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOS returns a Store on the real filesystem.
func NewOS(opts ...Option) *FS {
	return New(afero.NewOsFs(), opts...)
}

// NewMemory returns a Store on an in-memory filesystem.
func NewMemory(opts ...Option) *FS {
	return New(afero.NewMemMapFs(), opts...)
}

// Fs exposes the underlying filesystem, e.g. for directory walks.
func (s *FS) Fs() afero.Fs {
	return s.fs
}

func (s *FS) Abs(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve home directory")
		}
		path = filepath.Join(home, path[2:])
	}
	if !filepath.IsAbs(path) {
		base := s.base
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", errors.Wrap(err, "failed to get working directory")
			}
			base = wd
		}
		path = filepath.Join(base, path)
	}
	return filepath.Clean(path), nil
}

func (s *FS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		return false, errors.Errorf("%s is a directory", path)
	}
	return true, nil
}

func (s *FS) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(ErrNotFound, path)
		}
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return string(b), nil
}

func (s *FS) ReadHead(ctx context.Context, path string, n int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(ErrNotFound, path)
		}
		return "", errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, int64(max(n, 0))))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return string(b), nil
}

func (s *FS) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolveLinks(path)
	if err != nil {
		return err
	}
	perm, existed := s.perm, false
	if info, err := s.fs.Stat(target); err == nil {
		perm, existed = info.Mode().Perm(), true
	}

	dir := filepath.Dir(target)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(s.fs, tmp, []byte(content), perm); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, "failed to write %s", path)
	}
	// the umask applies on create
	if existed {
		if err := s.fs.Chmod(tmp, perm); err != nil {
			_ = s.fs.Remove(tmp)
			return errors.Wrapf(err, "failed to set mode of %s", path)
		}
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// resolveLinks follows symlinks at path so a write replaces the file they
// point to and leaves the links in place.
func (s *FS) resolveLinks(path string) (string, error) {
	lstater, ok := s.fs.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := s.fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}
	for range maxLinks {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		link, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read link %s", path)
		}
		if !filepath.IsAbs(link) {
			link = filepath.Join(filepath.Dir(path), link)
		}
		path = filepath.Clean(link)
	}
	return "", errors.Errorf("too many levels of symbolic links at %s", path)
}

func (s *FS) Glob(ctx context.Context, root, pattern string) ([]Entry, error) {
	var entries []Entry
	err := s.GlobWalk(ctx, root, pattern, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (s *FS) GlobWalk(ctx context.Context, root, pattern string, fn func(Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := s.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrNotFound, root)
		}
		return errors.Wrapf(err, "failed to stat %s", root)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", root)
	}
	if !doublestar.ValidatePattern(pattern) {
		return errors.Errorf("invalid glob pattern %q", pattern)
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(s.fs, root))
	err = doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == "." {
			return nil
		}
		entry := Entry{Path: path, Dir: d.IsDir()}
		if !entry.Dir {
			if fi, err := d.Info(); err == nil {
				entry.Size = fi.Size()
			}
		}
		return fn(entry)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to glob %s in %s", pattern, root)
	}
	return nil
}
