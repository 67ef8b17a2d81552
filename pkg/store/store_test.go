package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_Abs(t *testing.T) {
	s := NewMemory(WithBaseDir("/work/project"))

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "relative", input: "src/main.go", expected: "/work/project/src/main.go"},
		{name: "dot segments", input: "./a/../b.txt", expected: "/work/project/b.txt"},
		{name: "absolute untouched", input: "/etc/hosts", expected: "/etc/hosts"},
		{name: "absolute cleaned", input: "/tmp//x/./y", expected: "/tmp/x/y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Abs(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := s.Abs("")
	assert.Error(t, err)
}

func TestFS_Abs_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := NewMemory().Abs("~/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes.txt"), got)
}

func TestFS_ReadWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Read(ctx, "/a/b.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	exists, err := s.Exists(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Write(ctx, "/a/b.txt", "hello"))

	exists, err = s.Exists(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Read(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, s.Write(ctx, "/a/b.txt", "bye"))
	got, err = s.Read(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "bye", got)

	entries, err := afero.ReadDir(s.Fs(), "/a")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFS_Exists_Directory(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Fs().MkdirAll("/dir", 0o755))

	_, err := s.Exists(ctx, "/dir")
	assert.Error(t, err)
}

func TestFS_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemory()

	_, err := s.Read(ctx, "/x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Write(ctx, "/x", "y"), context.Canceled)
	_, err = s.Exists(ctx, "/x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFS_OnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewOS(WithBaseDir(dir))

	path, err := s.Abs("nested/file.txt")
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, path, "content"))

	b, err := os.ReadFile(filepath.Join(dir, "nested", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))
}

func TestFS_Write_KeepsMode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Chmod(script, 0o755))

	s := NewOS()
	require.NoError(t, s.Write(ctx, script, "#!/bin/sh\necho hi\n"))

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	fresh := filepath.Join(dir, "new.txt")
	require.NoError(t, s.Write(ctx, fresh, "x"))
	info, err = os.Stat(fresh)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o111, "new files are not executable")
}

func TestFS_Write_FollowsSymlinks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "real"), 0o755))
	target := filepath.Join(dir, "real", "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	relative := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.Symlink(filepath.Join("real", "config.yaml"), relative))
	chained := filepath.Join(dir, "chained.yaml")
	require.NoError(t, os.Symlink(relative, chained))

	s := NewOS()
	require.NoError(t, s.Write(ctx, chained, "new"))

	for _, link := range []string{relative, chained} {
		info, err := os.Lstat(link)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeSymlink, "%s is still a link", link)
	}
	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Join(dir, "real"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestFS_Write_SymlinkLoop(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	require.NoError(t, os.Symlink(b, a))
	require.NoError(t, os.Symlink(a, b))

	err := NewOS().Write(context.Background(), a, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many levels of symbolic links")
}

func TestFS_Glob(t *testing.T) {
	dir := t.TempDir()
	s := NewOS()
	ctx := context.Background()
	for _, name := range []string{"main.go", "pkg/a/a.go", "pkg/a/a_test.go", "README.md"} {
		require.NoError(t, s.Write(ctx, filepath.Join(dir, name), "package x\n"))
	}

	entries, err := s.Glob(ctx, dir, "**/*.go")
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
		assert.False(t, e.Dir)
		assert.Equal(t, int64(len("package x\n")), e.Size)
	}
	assert.Equal(t, []string{"main.go", "pkg/a/a.go", "pkg/a/a_test.go"}, paths)

	top, err := s.Glob(ctx, dir, "*")
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, Entry{Path: "README.md", Size: 10}, top[0])
	assert.Equal(t, "pkg", top[2].Path)
	assert.True(t, top[2].Dir)
}

func TestFS_GlobWalk_SkipDir(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	for _, name := range []string{"/repo/main.go", "/repo/vendor/a/a.go", "/repo/vendor/b.go", "/repo/pkg/c.go"} {
		require.NoError(t, s.Write(ctx, name, "x"))
	}

	var visited []string
	err := s.GlobWalk(ctx, "/repo", "**/*", func(e Entry) error {
		if e.Dir && e.Path == "vendor" {
			return fs.SkipDir
		}
		visited = append(visited, e.Path)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "pkg", "pkg/c.go"}, visited)

	err = s.GlobWalk(ctx, "/repo", "**/*", func(Entry) error { return errors.New("stop") })
	assert.ErrorContains(t, err, "stop")
}

func TestFS_ReadHead(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "/repo/big.txt", "0123456789"))

	head, err := s.ReadHead(ctx, "/repo/big.txt", 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", head)

	head, err = s.ReadHead(ctx, "/repo/big.txt", 100)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", head)

	_, err = s.ReadHead(ctx, "/repo/missing.txt", 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFS_Glob_Memory(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "/repo/x/y.txt", "y"))
	require.NoError(t, s.Write(ctx, "/repo/z.txt", "zz"))

	entries, err := s.Glob(ctx, "/repo", "**/*.txt")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "x/y.txt", entries[0].Path)
	assert.Equal(t, "z.txt", entries[1].Path)
	assert.Equal(t, int64(2), entries[1].Size)
}

func TestFS_Glob_Errors(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "/repo/f", "x"))

	_, err := s.Glob(ctx, "/missing", "*")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Glob(ctx, "/repo/f", "*")
	assert.Error(t, err)

	_, err = s.Glob(ctx, "/repo", "[")
	assert.Error(t, err)
}
