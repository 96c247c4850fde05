package bridge

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/Cyclone1070/coursevfs/internal/fsops"
	"github.com/Cyclone1070/coursevfs/internal/gitops"
	"github.com/Cyclone1070/coursevfs/internal/sandbox"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindSandboxViolation Kind = "sandbox_violation"
	KindNotFound         Kind = "not_found"
	KindGitState         Kind = "git_state"
	KindInvalidArgument  Kind = "invalid_argument"
	KindInternal         Kind = "internal"
)

// -- Sentinels --

var (
	ErrUnknownOp       = errors.New("unknown operation")
	ErrMissingArgument = errors.New("missing argument")
)

// ArgumentError is returned when the arguments of Op cannot be decoded or validated.
type ArgumentError struct {
	Op    string
	Cause error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Op, e.Cause)
}
func (e *ArgumentError) Unwrap() error { return e.Cause }

// ErrorBody is the error half of a Response.
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

var notFound = []error{
	fs.ErrNotExist,
	plumbing.ErrReferenceNotFound,
	plumbing.ErrObjectNotFound,
	object.ErrFileNotFound,
	git.ErrRemoteNotFound,
	git.ErrRepositoryNotExists,
}

var gitState = []error{
	gitops.ErrNonFastForward,
	gitops.ErrNoStash,
	gitops.ErrNothingToStash,
	gitops.ErrLocalChanges,
	gitops.ErrRefExists,
	git.ErrBranchExists,
	git.ErrRemoteExists,
	git.ErrUnstagedChanges,
	git.ErrNonFastForwardUpdate,
}

var invalidArgument = []error{
	ErrUnknownOp,
	ErrMissingArgument,
	sandbox.ErrInvalidPath,
	fsops.ErrInvalidMode,
	gitops.ErrInvalidConfigKey,
	gitops.ErrInvalidHash,
	gitops.ErrUnknownStashOp,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify maps an error onto the caller-facing taxonomy.
func classify(err error) *ErrorBody {
	body := &ErrorBody{Kind: KindInternal, Message: err.Error()}
	var argErr *ArgumentError
	switch {
	case errors.Is(err, sandbox.ErrOutsideSandbox):
		body.Kind = KindSandboxViolation
	case errors.As(err, &argErr), isAny(err, invalidArgument):
		body.Kind = KindInvalidArgument
	case isAny(err, notFound):
		body.Kind = KindNotFound
	case isAny(err, gitState):
		body.Kind = KindGitState
	}
	return body
}
