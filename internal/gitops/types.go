package gitops

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Identity is the author written into new commits. An empty Name falls back to the
// repository's user.name and user.email.
type Identity struct {
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
}

// Credentials authenticate a single network call. They are never stored.
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

func (c Credentials) auth() transport.AuthMethod {
	if c.Username == "" && c.Password == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: c.Username, Password: c.Password}
}

// String keeps passwords out of formatted output.
func (c Credentials) String() string {
	return fmt.Sprintf("{username:%s password:<redacted>}", c.Username)
}

// LogValue keeps passwords out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// Remote is a configured remote and its first URL.
type Remote struct {
	Remote string `json:"remote"`
	URL    string `json:"url"`
}

// Signature identifies who authored or committed a change, and when.
type Signature struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// CommitInfo is one entry of Log.
type CommitInfo struct {
	Hash      string    `json:"oid"`
	Message   string    `json:"message"`
	Author    Signature `json:"author"`
	Committer Signature `json:"committer"`
	Parents   []string  `json:"parent"`
}

// StatusRow is one row of StatusMatrix.
//
// Head is 0 when the file is absent from HEAD and 1 when present. Workdir is 0 when
// absent, 1 when identical to HEAD and 2 otherwise. Stage is 0 when absent, 1 when
// identical to HEAD, 2 when identical to the working copy and 3 otherwise.
type StatusRow struct {
	Path    string `json:"path"`
	Head    int    `json:"head"`
	Workdir int    `json:"workdir"`
	Stage   int    `json:"stage"`
}

// StashOp selects a stash operation.
type StashOp string

const (
	StashList StashOp = "list"
	StashPush StashOp = "push"
	StashPop  StashOp = "pop"
	StashDrop StashOp = "drop"
)

// StashEntry is one element of the stash stack. Index 0 is the most recent entry.
type StashEntry struct {
	Index   int    `json:"index"`
	Hash    string `json:"oid"`
	Message string `json:"message"`
}

// ChangeKind classifies a path in StashDiff.
type ChangeKind string

const (
	ChangeAdded         ChangeKind = "added"
	ChangeDeletedStaged ChangeKind = "deleted_staged"
	ChangeModified      ChangeKind = "modified"
)

// StashDiffEntry is a path that differs between HEAD and the latest stash.
type StashDiffEntry struct {
	Path   string     `json:"path"`
	Status ChangeKind `json:"status"`
}
