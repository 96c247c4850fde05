package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Resolve turns a virtual path into a real path inside the sandbox base.
// Backslashes are treated as separators and a leading "/" names the virtual root.
// The containment check runs on the joined, cleaned path, so no I/O happens for a
// rejected path beyond lstat probes of existing ancestors.
func (s *Sandbox) Resolve(ctx context.Context, virtual string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.Initialize(); err != nil {
		return "", err
	}
	return s.resolve(virtual)
}

// ResolveTarget is Resolve for operations that follow a symlink at the leaf
// (reading, copying, chmod). If the leaf exists and resolves outside the base the
// path is rejected.
func (s *Sandbox) ResolveTarget(ctx context.Context, virtual string) (string, error) {
	real, err := s.Resolve(ctx, virtual)
	if err != nil {
		return "", err
	}
	if canonical, err := filepath.EvalSymlinks(real); err == nil && !isWithin(canonical, s.base) {
		return "", &ViolationError{Path: virtual}
	}
	return real, nil
}

// LinkTarget returns the target to store for a symlink at the real path link.
// A target starting with "/" is a virtual absolute path and is rewritten relative
// to the link's canonical directory. The stored target is then walked from that
// directory, following existing symlinks, and rejected if any step leaves the base.
func (s *Sandbox) LinkTarget(ctx context.Context, link, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.Initialize(); err != nil {
		return "", err
	}

	dir, err := canonicalPath(filepath.Dir(link))
	if err != nil {
		return "", &ViolationError{Path: target}
	}

	stored := strings.ReplaceAll(target, `\`, "/")
	if strings.HasPrefix(stored, "/") && !hasVolumePrefix(stored) {
		full, err := s.resolve(stored)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(dir, full)
		if err != nil {
			return "", &ViolationError{Path: target}
		}
		stored = filepath.ToSlash(rel)
	}
	if hasVolumePrefix(stored) || strings.HasPrefix(stored, "/") || !s.walkInside(dir, stored) {
		return "", &ViolationError{Path: target}
	}
	return stored, nil
}

// walkInside follows target from dir one component at a time, the way the OS
// would, and reports whether every step stays inside the base.
func (s *Sandbox) walkInside(dir, target string) bool {
	cur := dir
	for _, part := range strings.Split(target, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			if info, err := os.Lstat(cur); err == nil && info.Mode()&os.ModeSymlink != 0 {
				resolved, err := filepath.EvalSymlinks(cur)
				if err != nil {
					return false
				}
				cur = resolved
			}
		}
		if !isWithin(cur, s.base) {
			return false
		}
	}
	return true
}

// canonicalPath evaluates symlinks in the deepest existing ancestor of p and
// re-appends the missing components.
func canonicalPath(p string) (string, error) {
	var missing []string
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", os.ErrNotExist
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
	resolved, err := filepath.EvalSymlinks(cur)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, missing...)...), nil
}

// Rel converts a real path inside the sandbox back to a POSIX virtual path.
func (s *Sandbox) Rel(real string) (string, error) {
	rel, err := filepath.Rel(s.base, real)
	if err != nil || escapes(rel) {
		return "", &ViolationError{Path: real}
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

func (s *Sandbox) resolve(virtual string) (string, error) {
	if strings.ContainsRune(virtual, 0) {
		return "", ErrInvalidPath
	}

	normalized := strings.ReplaceAll(virtual, `\`, "/")
	if hasVolumePrefix(normalized) {
		return "", &ViolationError{Path: virtual}
	}

	joined := filepath.Join(s.base, filepath.FromSlash(normalized))

	rel, err := filepath.Rel(s.base, joined)
	if err != nil || escapes(rel) {
		return "", &ViolationError{Path: virtual}
	}

	if joined != s.base && !s.parentContained(joined) {
		return "", &ViolationError{Path: virtual}
	}

	return joined, nil
}

// parentContained follows symlinks in the deepest existing ancestor of path's parent
// and reports whether that ancestor is still inside the base. The leaf itself is not
// followed so links can be read and removed.
func (s *Sandbox) parentContained(path string) bool {
	dir := filepath.Dir(path)
	for dir != s.base {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
	if dir == s.base {
		return true
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Dangling link in the chain: treat as outside.
		return false
	}
	return isWithin(canonical, s.base)
}

// escapes reports whether a relative path climbs out of its base.
func escapes(rel string) bool {
	if filepath.IsAbs(rel) {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// hasVolumePrefix detects Windows drive letters and UNC prefixes, which would
// otherwise override the base on that platform.
func hasVolumePrefix(p string) bool {
	if strings.HasPrefix(p, "//") {
		return true
	}
	if len(p) >= 2 && p[1] == ':' {
		c := p[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return filepath.VolumeName(p) != ""
}

// isWithin checks if path is root or a descendant of root.
func isWithin(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !escapes(rel)
}
