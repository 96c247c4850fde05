package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deniedSymlink struct {
	err error
}

func (d deniedSymlink) Symlink(target, link string) error {
	return &os.LinkError{Op: "symlink", Old: target, New: link, Err: d.err}
}

type failingChmod struct {
	err error
}

func (f failingChmod) Chmod(path string, mode os.FileMode) error {
	return &os.PathError{Op: "chmod", Path: path, Err: f.err}
}

func isPermission(err error) bool { return errors.Is(err, os.ErrPermission) }

func TestFallbackSymlink_DeniedWritesTargetFile(t *testing.T) {
	link := filepath.Join(t.TempDir(), "link")
	strategy := FallbackSymlink{Native: deniedSymlink{err: os.ErrPermission}, Denied: isPermission}

	require.NoError(t, strategy.Symlink("../docs/readme.md", link))

	data, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, "../docs/readme.md", string(data))
}

func TestFallbackSymlink_OtherErrorsPropagate(t *testing.T) {
	link := filepath.Join(t.TempDir(), "link")
	strategy := FallbackSymlink{Native: deniedSymlink{err: os.ErrExist}, Denied: isPermission}

	err := strategy.Symlink("target", link)

	assert.ErrorIs(t, err, os.ErrExist)
	assert.NoFileExists(t, link)
}

func TestTolerantChmod(t *testing.T) {
	swallow := TolerantChmod{Native: failingChmod{err: os.ErrPermission}, Unsupported: isPermission}
	assert.NoError(t, swallow.Chmod("x", 0o644))

	propagate := TolerantChmod{Native: failingChmod{err: os.ErrNotExist}, Unsupported: isPermission}
	assert.ErrorIs(t, propagate.Chmod("x", 0o644), os.ErrNotExist)
}

func TestNoClone(t *testing.T) {
	assert.ErrorIs(t, NoClone{}.CloneFile(nil, nil), ErrCloneUnsupported)
}

func TestHost_HasAllStrategies(t *testing.T) {
	caps := Host()

	assert.NotNil(t, caps.Symlink)
	assert.NotNil(t, caps.Chmod)
	assert.NotNil(t, caps.Clone)
}
