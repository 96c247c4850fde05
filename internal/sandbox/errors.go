package sandbox

import (
	"errors"
	"fmt"
)

// -- Error Types --

// ViolationError is returned when a virtual path would resolve outside the sandbox base.
type ViolationError struct {
	Path string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("path escapes the sandbox: %q", e.Path)
}
func (e *ViolationError) Unwrap() error { return ErrOutsideSandbox }

// BaseDirError is returned when the sandbox base directory cannot be prepared.
type BaseDirError struct {
	Dir   string
	Cause error
}

func (e *BaseDirError) Error() string {
	return fmt.Sprintf("invalid sandbox base %s: %v", e.Dir, e.Cause)
}
func (e *BaseDirError) Unwrap() error { return e.Cause }

// -- Sentinels --

var (
	ErrOutsideSandbox = errors.New("path is outside sandbox base")
	ErrBaseDirNotSet  = errors.New("sandbox base directory not set")
	ErrNotADirectory  = errors.New("not a directory")
	ErrInvalidPath    = errors.New("invalid virtual path")
)
