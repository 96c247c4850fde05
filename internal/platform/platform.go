// Package platform isolates host-specific behavior behind small strategies so the
// filesystem operations never branch on the operating system themselves.
package platform

import (
	"errors"
	"os"
)

// -- Sentinels --

var (
	ErrCloneUnsupported = errors.New("copy-on-write clone not supported")
)

// SymlinkStrategy creates a link at link pointing to target.
type SymlinkStrategy interface {
	Symlink(target, link string) error
}

// ChmodStrategy changes permission bits.
type ChmodStrategy interface {
	Chmod(path string, mode os.FileMode) error
}

// CloneStrategy makes dst a copy-on-write clone of src.
// Returns an error wrapping ErrCloneUnsupported when the host cannot clone.
type CloneStrategy interface {
	CloneFile(dst, src *os.File) error
}

// Capabilities bundles the strategies for the running host.
type Capabilities struct {
	Symlink SymlinkStrategy
	Chmod   ChmodStrategy
	Clone   CloneStrategy
}

// NativeSymlink calls os.Symlink. On Windows the link type (file or directory) is
// inferred by the runtime from the target.
type NativeSymlink struct{}

func (NativeSymlink) Symlink(target, link string) error {
	return os.Symlink(target, link)
}

// FallbackSymlink delegates to Native and, when Denied classifies the failure as a
// missing privilege, writes a plain file whose content is the target string instead.
type FallbackSymlink struct {
	Native SymlinkStrategy
	Denied func(error) bool
}

func (f FallbackSymlink) Symlink(target, link string) error {
	err := f.Native.Symlink(target, link)
	if err == nil || f.Denied == nil || !f.Denied(err) {
		return err
	}
	return os.WriteFile(link, []byte(target), 0o644)
}

// NativeChmod calls os.Chmod.
type NativeChmod struct{}

func (NativeChmod) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// TolerantChmod swallows the errors Unsupported classifies as "no permission bits
// on this host" and propagates everything else.
type TolerantChmod struct {
	Native      ChmodStrategy
	Unsupported func(error) bool
}

func (c TolerantChmod) Chmod(path string, mode os.FileMode) error {
	err := c.Native.Chmod(path, mode)
	if err != nil && c.Unsupported != nil && c.Unsupported(err) {
		return nil
	}
	return err
}

// NoClone always reports ErrCloneUnsupported.
type NoClone struct{}

func (NoClone) CloneFile(dst, src *os.File) error {
	return ErrCloneUnsupported
}
