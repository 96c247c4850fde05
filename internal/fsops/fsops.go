// Package fsops implements the primitive file operations exposed to the front end.
// Every path argument is a virtual path resolved through the sandbox before any I/O.
package fsops

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Cyclone1070/coursevfs/internal/platform"
)

// Service implements file operations on top of a sandbox.
type Service struct {
	sandbox pathResolver
	caps    platform.Capabilities
}

// NewService creates a Service using the given sandbox and host capabilities.
func NewService(sandbox pathResolver, caps platform.Capabilities) *Service {
	if sandbox == nil {
		panic("sandbox is required")
	}
	return &Service{sandbox: sandbox, caps: caps}
}

// WriteFile creates missing parent directories and replaces the file content.
func (s *Service) WriteFile(ctx context.Context, p string, data []byte) error {
	full, err := s.sandbox.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
		perm = info.Mode().Perm()
	}
	return writeFileAtomic(full, data, perm)
}

// ReadFile returns the file content.
func (s *Service) ReadFile(ctx context.Context, p string) ([]byte, error) {
	full, err := s.sandbox.ResolveTarget(ctx, p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Exists reports whether the path is accessible. Any access error counts as missing;
// only sandbox and context errors are returned.
func (s *Service) Exists(ctx context.Context, p string) (bool, error) {
	full, err := s.sandbox.ResolveTarget(ctx, p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		return false, nil
	}
	return true, nil
}

// Stat returns metadata for the path without following a trailing symlink.
// Returns nil (and no error) when the path cannot be stat'ed.
func (s *Service) Stat(ctx context.Context, p string) (*FileStat, error) {
	full, err := s.sandbox.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		return nil, nil
	}
	return newFileStat(full, info), nil
}

// CopyFile copies src to dest, creating dest's parent directories. A copy-on-write
// clone is attempted first and a byte copy is used when the host cannot clone. The
// copy lands in a temp file renamed over dest, so a symlink at dest is replaced
// rather than written through.
func (s *Service) CopyFile(ctx context.Context, src, dest string) error {
	fullSrc, err := s.sandbox.ResolveTarget(ctx, src)
	if err != nil {
		return err
	}
	fullDest, err := s.sandbox.ResolveTarget(ctx, dest)
	if err != nil {
		return err
	}

	in, err := os.Open(fullSrc)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	dir := filepath.Dir(fullDest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	out, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &TempFileError{Dir: dir, Cause: err}
	}
	tmpPath := out.Name()
	if err := s.copyInto(out, in, info.Mode().Perm()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, fullDest); err != nil {
		_ = os.Remove(tmpPath)
		return &RenameError{Old: tmpPath, New: fullDest, Cause: err}
	}
	return nil
}

func (s *Service) copyInto(out, in *os.File, perm os.FileMode) error {
	if s.caps.Clone == nil || s.caps.Clone.CloneFile(out, in) != nil {
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return &TempWriteError{Path: out.Name(), Cause: err}
		}
	}
	if err := out.Close(); err != nil {
		return &TempWriteError{Path: out.Name(), Cause: err}
	}
	if err := os.Chmod(out.Name(), perm); err != nil {
		return &ChmodError{Path: out.Name(), Mode: perm, Cause: err}
	}
	return nil
}

// Rm removes the path. A missing path is not an error.
func (s *Service) Rm(ctx context.Context, p string, recursive bool) error {
	full, err := s.sandbox.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if recursive {
		return os.RemoveAll(full)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Rename moves oldPath to newPath, creating newPath's parent directories first.
func (s *Service) Rename(ctx context.Context, oldPath, newPath string) error {
	fullOld, err := s.sandbox.Resolve(ctx, oldPath)
	if err != nil {
		return err
	}
	fullNew, err := s.sandbox.Resolve(ctx, newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullNew), 0o755); err != nil {
		return err
	}
	if err := os.Rename(fullOld, fullNew); err != nil {
		return &RenameError{Old: oldPath, New: newPath, Cause: err}
	}
	return nil
}

// Mkdir creates a directory. With recursive set, existing directories are not an error.
func (s *Service) Mkdir(ctx context.Context, p string, recursive bool) error {
	full, err := s.sandbox.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if recursive {
		return os.MkdirAll(full, 0o755)
	}
	return os.Mkdir(full, 0o755)
}

// Readdir lists the children of a directory.
func (s *Service) Readdir(ctx context.Context, p string) ([]DirEntry, error) {
	full, err := s.sandbox.ResolveTarget(ctx, p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}

	result := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, DirEntry{
			Name:        e.Name(),
			IsFile:      e.Type().IsRegular(),
			IsDirectory: e.IsDir(),
		})
	}
	return result, nil
}

// Readlink returns the raw link target with forward slashes.
func (s *Service) Readlink(ctx context.Context, p string) (string, error) {
	full, err := s.sandbox.Resolve(ctx, p)
	if err != nil {
		return "", err
	}
	target, err := os.Readlink(full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(target), nil
}

// Symlink creates link pointing at target. A target starting with "/" is a virtual
// absolute path; it is stored as a path relative to the link so the link stays valid
// inside the sandbox and inside git. Relative targets are kept as given. Either way
// the target must resolve inside the sandbox from the link's real directory.
func (s *Service) Symlink(ctx context.Context, target, link string) error {
	fullLink, err := s.sandbox.Resolve(ctx, link)
	if err != nil {
		return err
	}
	stored, err := s.sandbox.LinkTarget(ctx, fullLink, target)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullLink), 0o755); err != nil {
		return err
	}
	return s.caps.Symlink.Symlink(stored, fullLink)
}

// Chmod sets permission bits. mode is numeric or an octal string.
func (s *Service) Chmod(ctx context.Context, p string, mode any) error {
	m, err := ParseMode(mode)
	if err != nil {
		return err
	}
	full, err := s.sandbox.ResolveTarget(ctx, p)
	if err != nil {
		return err
	}
	if err := s.caps.Chmod.Chmod(full, m); err != nil {
		return &ChmodError{Path: p, Mode: m, Cause: err}
	}
	return nil
}
