package gitops

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	// ErrNonFastForward is returned by Pull when local and remote history diverged.
	ErrNonFastForward = errors.New("pull would require a merge: histories diverged")
	// ErrNoStash is returned when the stash stack is empty.
	ErrNoStash = errors.New("no stash entries")
	// ErrNothingToStash is returned by a stash push without local changes.
	ErrNothingToStash = errors.New("no local changes to save")
	// ErrLocalChanges is returned by a stash pop that would overwrite uncommitted edits.
	ErrLocalChanges = errors.New("local changes would be overwritten by stash pop")
	// ErrRefExists is returned by WriteRef when the ref exists and force is off.
	ErrRefExists = errors.New("reference already exists")
	// ErrInvalidConfigKey is returned for config keys without a section or name.
	ErrInvalidConfigKey = errors.New("invalid config key")
	// ErrInvalidHash is returned when a ref value is not a full object id.
	ErrInvalidHash = errors.New("invalid object id")
	// ErrUnknownStashOp is returned for stash operations other than list, push, pop and drop.
	ErrUnknownStashOp = errors.New("unknown stash operation")
)

// OpenError is returned when the directory at Path is not a usable repository.
type OpenError struct {
	Path  string
	Cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open repository %s: %v", e.Path, e.Cause)
}
func (e *OpenError) Unwrap() error { return e.Cause }

// RemoteError wraps a failed network operation against a remote.
type RemoteError struct {
	Op     string
	Remote string
	Cause  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Remote, e.Cause)
}
func (e *RemoteError) Unwrap() error { return e.Cause }
