package gitops

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// GitignoreReadError is returned when .gitignore files cannot be read.
type GitignoreReadError struct {
	Path  string
	Cause error
}

func (e *GitignoreReadError) Error() string {
	return fmt.Sprintf("failed to read .gitignore under %s: %v", e.Path, e.Cause)
}
func (e *GitignoreReadError) Unwrap() error { return e.Cause }

// ignoreMatcher answers whether an untracked path is excluded by .gitignore files
// anywhere in the working copy.
type ignoreMatcher struct {
	matcher gitignore.Matcher
}

// newIgnoreMatcher loads every .gitignore below the worktree root. A working copy
// without .gitignore files yields a matcher that never ignores.
func newIgnoreMatcher(wt billy.Filesystem) (*ignoreMatcher, error) {
	if wt == nil {
		panic("wt is required")
	}
	patterns, err := gitignore.ReadPatterns(wt, nil)
	if err != nil {
		return nil, &GitignoreReadError{Path: wt.Root(), Cause: err}
	}
	if len(patterns) == 0 {
		return &ignoreMatcher{}, nil
	}
	return &ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

// ShouldIgnore reports whether relativePath matches an ignore pattern.
func (m *ignoreMatcher) ShouldIgnore(relativePath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	segments := splitPath(relativePath)
	if len(segments) == 0 {
		return false
	}
	return m.matcher.Match(segments, isDir)
}

// splitPath splits a path into segments for gitignore matching.
// It normalizes path separators and filters out empty and "." segments.
func splitPath(path string) []string {
	if path == "" {
		return []string{}
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	var segments []string
	for _, part := range parts {
		if part != "" && part != "." {
			segments = append(segments, part)
		}
	}
	return segments
}
