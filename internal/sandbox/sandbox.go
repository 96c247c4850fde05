// Package sandbox confines caller-supplied virtual paths to a single base directory.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Mode selects between the production and the test sandbox.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeTest   Mode = "test"
)

// Context describes one sandbox instance. It is created once at startup and never
// handed to the untrusted side.
type Context struct {
	BaseDir string
	Mode    Mode
}

// Sandbox resolves virtual paths against Context.BaseDir.
// Construction has no side effects; the base directory is prepared by Initialize.
type Sandbox struct {
	ctx Context

	once    sync.Once
	base    string
	initErr error
}

// New creates a sandbox for the given context.
func New(ctx Context) *Sandbox {
	return &Sandbox{ctx: ctx}
}

// Context returns the context the sandbox was created with.
func (s *Sandbox) Context() Context {
	return s.ctx
}

// Initialize prepares the base directory exactly once. In test mode the existing
// contents are cleared first (best effort). Concurrent callers block until the first
// call finishes and all observe the same result.
func (s *Sandbox) Initialize() error {
	s.once.Do(func() {
		s.base, s.initErr = s.prepare()
	})
	return s.initErr
}

// Base returns the canonical base directory. Only meaningful after Initialize succeeded.
func (s *Sandbox) Base() string {
	return s.base
}

func (s *Sandbox) prepare() (string, error) {
	if s.ctx.BaseDir == "" {
		return "", ErrBaseDirNotSet
	}

	abs, err := filepath.Abs(s.ctx.BaseDir)
	if err != nil {
		return "", &BaseDirError{Dir: s.ctx.BaseDir, Cause: err}
	}

	if s.ctx.Mode == ModeTest {
		// The directory may not exist yet on a first run.
		clearDirectory(abs)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", &BaseDirError{Dir: abs, Cause: err}
	}

	return CanonicaliseRoot(abs)
}

// CanonicaliseRoot makes root absolute and resolves symlinks in it.
// Returns an error if the path doesn't exist or isn't a directory.
func CanonicaliseRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", &BaseDirError{Dir: root, Cause: err}
	}

	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", &BaseDirError{Dir: absRoot, Cause: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &BaseDirError{Dir: resolved, Cause: err}
	}
	if !info.IsDir() {
		return "", &BaseDirError{Dir: resolved, Cause: fmt.Errorf("%w: %s", ErrNotADirectory, resolved)}
	}
	return resolved, nil
}

func clearDirectory(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = os.RemoveAll(filepath.Join(dir, name))
		}(entry.Name())
	}
	wg.Wait()
}
