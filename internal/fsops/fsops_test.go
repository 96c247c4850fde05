package fsops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Cyclone1070/coursevfs/internal/platform"
	"github.com/Cyclone1070/coursevfs/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, caps platform.Capabilities) (*Service, string) {
	t.Helper()
	sb := sandbox.New(sandbox.Context{BaseDir: t.TempDir(), Mode: sandbox.ModeTest})
	require.NoError(t, sb.Initialize())
	return NewService(sb, caps), sb.Base()
}

type deniedSymlink struct{}

func (deniedSymlink) Symlink(target, link string) error {
	return &os.LinkError{Op: "symlink", Old: target, New: link, Err: os.ErrPermission}
}

func skipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
}

// --- HAPPY PATH TESTS ---

func TestWriteFile_ReadFile_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()

	payloads := [][]byte{
		[]byte("# Lesson 1\n"),
		{0x00, 0xff, 0x10, 0x80},
		{},
	}
	for i, payload := range payloads {
		p := filepath.ToSlash(filepath.Join("repos", "course", "f", string(rune('a'+i))+".bin"))
		require.NoError(t, svc.WriteFile(ctx, p, payload))

		got, err := svc.ReadFile(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestWriteFile_OverwritesAndCreatesParents(t *testing.T) {
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()

	require.NoError(t, svc.WriteFile(ctx, "/a/b/c.md", []byte("first")))
	require.NoError(t, svc.WriteFile(ctx, "/a/b/c.md", []byte("second")))

	data, err := os.ReadFile(filepath.Join(base, "a", "b", "c.md"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestExists(t *testing.T) {
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "here.txt", []byte("x")))

	ok, err := svc.Exists(ctx, "here.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStat(t *testing.T) {
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "dir/file.md", []byte("hello")))

	st, err := svc.Stat(ctx, "dir/file.md")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(5), st.Size)
	assert.True(t, st.IsFile)
	assert.False(t, st.IsDirectory)
	assert.False(t, st.IsSymbolicLink)
	assert.Equal(t, filepath.Join(base, "dir", "file.md"), st.ResolvedPath)
	assert.False(t, st.ModifiedAt.IsZero())

	st, err = svc.Stat(ctx, "dir")
	require.NoError(t, err)
	assert.True(t, st.IsDirectory)

	st, err = svc.Stat(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestCopyFile(t *testing.T) {
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "src.md", []byte("copy me")))

	require.NoError(t, svc.CopyFile(ctx, "src.md", "deep/nested/dest.md"))

	got, err := svc.ReadFile(ctx, "deep/nested/dest.md")
	require.NoError(t, err)
	assert.Equal(t, "copy me", string(got))
}

func TestCopyFile_WithoutClone(t *testing.T) {
	caps := platform.Host()
	caps.Clone = platform.NoClone{}
	svc, _ := newTestService(t, caps)
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "src.bin", []byte{1, 2, 3}))

	require.NoError(t, svc.CopyFile(ctx, "src.bin", "dst.bin"))

	got, err := svc.ReadFile(ctx, "dst.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestRm(t *testing.T) {
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "tree/a/b.txt", []byte("x")))

	assert.NoError(t, svc.Rm(ctx, "missing", false))
	assert.NoError(t, svc.Rm(ctx, "missing", true))

	assert.Error(t, svc.Rm(ctx, "tree", false), "non-empty directory needs recursive")
	require.NoError(t, svc.Rm(ctx, "tree", true))
	assert.NoDirExists(t, filepath.Join(base, "tree"))
}

func TestRename_MovesInsteadOfDeleting(t *testing.T) {
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "old.md", []byte("content")))

	require.NoError(t, svc.Rename(ctx, "old.md", "new/dir/new.md"))

	assert.NoFileExists(t, filepath.Join(base, "old.md"))
	got, err := svc.ReadFile(ctx, "new/dir/new.md")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
}

func TestMkdir_RecursiveIsIdempotent(t *testing.T) {
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()

	require.NoError(t, svc.Mkdir(ctx, "x/y/z", true))
	require.NoError(t, svc.Mkdir(ctx, "x/y/z", true))

	assert.DirExists(t, filepath.Join(base, "x", "y", "z"))
}

func TestMkdir_NonRecursive(t *testing.T) {
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()

	assert.Error(t, svc.Mkdir(ctx, "p/q", false))
	require.NoError(t, svc.Mkdir(ctx, "p", false))
	assert.ErrorIs(t, svc.Mkdir(ctx, "p", false), os.ErrExist)
}

func TestReaddir(t *testing.T) {
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "d/file.md", nil))
	require.NoError(t, svc.Mkdir(ctx, "d/sub", true))

	entries, err := svc.Readdir(ctx, "d")
	require.NoError(t, err)

	assert.ElementsMatch(t, []DirEntry{
		{Name: "file.md", IsFile: true},
		{Name: "sub", IsDirectory: true},
	}, entries)

	_, err = svc.Readdir(ctx, "absent")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSymlink_Readlink(t *testing.T) {
	skipWithoutSymlinks(t)
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "docs/readme.md", []byte("r")))

	require.NoError(t, svc.Symlink(ctx, "readme.md", "docs/link.md"))
	require.NoError(t, svc.Symlink(ctx, "/docs/readme.md", "other/abs-link.md"))

	target, err := svc.Readlink(ctx, "docs/link.md")
	require.NoError(t, err)
	assert.Equal(t, "readme.md", target)

	target, err = svc.Readlink(ctx, "other/abs-link.md")
	require.NoError(t, err)
	assert.Equal(t, "../docs/readme.md", target)

	data, err := os.ReadFile(filepath.Join(base, "other", "abs-link.md"))
	require.NoError(t, err)
	assert.Equal(t, "r", string(data))

	st, err := svc.Stat(ctx, "docs/link.md")
	require.NoError(t, err)
	assert.True(t, st.IsSymbolicLink)
}

func TestSymlink_VirtualAbsoluteTargetFromLinkedDirectory(t *testing.T) {
	skipWithoutSymlinks(t)
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "docs/readme.md", []byte("r")))
	require.NoError(t, svc.Symlink(ctx, "/docs", "alias"))

	require.NoError(t, svc.Symlink(ctx, "/docs/readme.md", "alias/abs.md"))

	target, err := svc.Readlink(ctx, "docs/abs.md")
	require.NoError(t, err)
	assert.Equal(t, "readme.md", target)

	data, err := svc.ReadFile(ctx, "alias/abs.md")
	require.NoError(t, err)
	assert.Equal(t, "r", string(data))
}

func TestCopyFile_ReplacesLinkAtDestination(t *testing.T) {
	skipWithoutSymlinks(t)
	svc, _ := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "target.md", []byte("keep")))
	require.NoError(t, svc.WriteFile(ctx, "src.md", []byte("new")))
	require.NoError(t, svc.Symlink(ctx, "target.md", "dest.md"))

	require.NoError(t, svc.CopyFile(ctx, "src.md", "dest.md"))

	st, err := svc.Stat(ctx, "dest.md")
	require.NoError(t, err)
	assert.False(t, st.IsSymbolicLink)
	got, err := svc.ReadFile(ctx, "dest.md")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	got, err = svc.ReadFile(ctx, "target.md")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestSymlink_PermissionDeniedFallsBackToFile(t *testing.T) {
	caps := platform.Host()
	caps.Symlink = platform.FallbackSymlink{
		Native: deniedSymlink{},
		Denied: func(err error) bool { return os.IsPermission(err) },
	}
	svc, _ := newTestService(t, caps)
	ctx := context.Background()

	require.NoError(t, svc.Symlink(ctx, "target.md", "dir/link.md"))

	data, err := svc.ReadFile(ctx, "dir/link.md")
	require.NoError(t, err)
	assert.Equal(t, "target.md", string(data))
}

func TestChmod(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no permission bits on windows")
	}
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	require.NoError(t, svc.WriteFile(ctx, "run.sh", []byte("#!/bin/sh\n")))

	require.NoError(t, svc.Chmod(ctx, "run.sh", "755"))
	info, err := os.Stat(filepath.Join(base, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.NoError(t, svc.Chmod(ctx, "run.sh", 0o600))
	info, err = os.Stat(filepath.Join(base, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	var chmodErr *ChmodError
	assert.ErrorAs(t, svc.Chmod(ctx, "missing.sh", 0o644), &chmodErr)
}

// --- UNHAPPY PATH TESTS ---

func TestOperations_RejectEscapes(t *testing.T) {
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	outside := filepath.Join(filepath.Dir(base), "escaped.txt")

	assert.ErrorIs(t, svc.WriteFile(ctx, "../escaped.txt", []byte("x")), sandbox.ErrOutsideSandbox)
	assert.NoFileExists(t, outside)

	_, err := svc.ReadFile(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, sandbox.ErrOutsideSandbox)

	_, err = svc.Exists(ctx, "..")
	assert.ErrorIs(t, err, sandbox.ErrOutsideSandbox)

	assert.ErrorIs(t, svc.Mkdir(ctx, "../escaped-dir", true), sandbox.ErrOutsideSandbox)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(base), "escaped-dir"))

	require.NoError(t, svc.WriteFile(ctx, "in.txt", []byte("x")))
	assert.ErrorIs(t, svc.CopyFile(ctx, "in.txt", "../escaped.txt"), sandbox.ErrOutsideSandbox)
	assert.ErrorIs(t, svc.Rename(ctx, "in.txt", "../escaped.txt"), sandbox.ErrOutsideSandbox)
	assert.FileExists(t, filepath.Join(base, "in.txt"))
	assert.ErrorIs(t, svc.Rm(ctx, "../", true), sandbox.ErrOutsideSandbox)
	assert.ErrorIs(t, svc.Symlink(ctx, "../../outside", "link"), sandbox.ErrOutsideSandbox)
	assert.ErrorIs(t, svc.Symlink(ctx, "x", "../link"), sandbox.ErrOutsideSandbox)
	assert.NoFileExists(t, outside)
}

func TestSymlink_RejectsTargetEscapingThroughLinkedDirectory(t *testing.T) {
	skipWithoutSymlinks(t)
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644))

	// The chain is as deep as the base and its last element links back to the
	// root, so a target climbing out of the real directory stays inside virtually.
	depth := len(strings.Split(strings.Trim(filepath.ToSlash(base), "/"), "/"))
	chain := make([]string, depth)
	for i := range chain {
		chain[i] = fmt.Sprintf("d%d", i)
	}
	linkDir := strings.Join(chain, "/")
	require.NoError(t, svc.Symlink(ctx, "/", linkDir))

	target := strings.Repeat("../", depth) + strings.TrimPrefix(filepath.ToSlash(outside), "/")
	assert.ErrorIs(t, svc.Symlink(ctx, target, linkDir+"/l"), sandbox.ErrOutsideSandbox)

	_, err := os.Lstat(filepath.Join(base, "l"))
	assert.True(t, os.IsNotExist(err))
}

func TestCopyFile_DestinationLinkedOutsideIsRejected(t *testing.T) {
	skipWithoutSymlinks(t)
	svc, base := newTestService(t, platform.Host())
	ctx := context.Background()
	victim := filepath.Join(t.TempDir(), "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("original"), 0o644))
	// Links like this arrive through cloned repositories.
	require.NoError(t, os.Symlink(victim, filepath.Join(base, "v")))
	require.NoError(t, svc.WriteFile(ctx, "evil.txt", []byte("overwritten")))

	assert.ErrorIs(t, svc.CopyFile(ctx, "evil.txt", "v"), sandbox.ErrOutsideSandbox)

	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestReadFile_Missing(t *testing.T) {
	svc, _ := newTestService(t, platform.Host())

	_, err := svc.ReadFile(context.Background(), "missing.md")

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected os.FileMode
		wantErr  bool
	}{
		{name: "int", input: 0o644, expected: 0o644},
		{name: "json number", input: float64(493), expected: 0o755},
		{name: "octal string", input: "755", expected: 0o755},
		{name: "octal string with prefix", input: "0o600", expected: 0o600},
		{name: "leading zero", input: "0644", expected: 0o644},
		{name: "sticky bit", input: "1777", expected: 0o777 | os.ModeSticky},
		{name: "file mode", input: os.FileMode(0o700), expected: 0o700},
		{name: "not octal", input: "9", wantErr: true},
		{name: "negative", input: -1, wantErr: true},
		{name: "fraction", input: 1.5, wantErr: true},
		{name: "too large", input: 0o17777, wantErr: true},
		{name: "wrong type", input: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
