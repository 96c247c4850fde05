// Package gitops implements the git porcelain used by the editor on top of go-git.
// Every repository path is virtual and resolved through the sandbox; no git binary
// is required.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	defaultRemote = "origin"
	defaultBranch = "main"
)

// pathResolver maps virtual paths to real paths inside the sandbox.
type pathResolver interface {
	Resolve(ctx context.Context, virtual string) (string, error)
	ResolveTarget(ctx context.Context, virtual string) (string, error)
}

// Options configures a Service.
type Options struct {
	// RemoteName is used for clone, push, pull and remote-tracking lookups.
	RemoteName string
	// DefaultBranch is the initial branch of repositories created by Init.
	DefaultBranch string
	Logger        *slog.Logger
}

// Service runs git operations on repositories inside the sandbox.
type Service struct {
	sandbox       pathResolver
	remote        string
	defaultBranch string
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a Service.
func NewService(sandbox pathResolver, opts Options) *Service {
	if sandbox == nil {
		panic("sandbox is required")
	}
	if opts.RemoteName == "" {
		opts.RemoteName = defaultRemote
	}
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = defaultBranch
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		sandbox:       sandbox,
		remote:        opts.RemoteName,
		defaultBranch: opts.DefaultBranch,
		logger:        opts.Logger.With("component", "gitops.Service"),
		now:           time.Now,
	}
}

// repoHandle bundles an open repository with the filesystems backing it.
type repoHandle struct {
	repo    *git.Repository
	virtual string
	dir     string
	wt      billy.Filesystem
	dot     billy.Filesystem
}

// storage opens the worktree bound to dir, so go-git itself cannot read or write
// through a link that leaves the repository.
func storage(dir string) (billy.Filesystem, billy.Filesystem, *filesystem.Storage, error) {
	wt := osfs.New(dir, osfs.WithBoundOS())
	dot, err := wt.Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, nil, err
	}
	return wt, dot, filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), nil
}

func (s *Service) open(ctx context.Context, repoPath string) (*repoHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.sandbox.ResolveTarget(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	wt, dot, st, err := storage(dir)
	if err != nil {
		return nil, &OpenError{Path: repoPath, Cause: err}
	}
	repo, err := git.Open(st, wt)
	if err != nil {
		return nil, &OpenError{Path: repoPath, Cause: err}
	}
	return &repoHandle{repo: repo, virtual: repoPath, dir: dir, wt: wt, dot: dot}, nil
}

// file resolves a repository-relative POSIX path through the sandbox.
func (s *Service) file(ctx context.Context, h *repoHandle, rel string) (string, error) {
	return s.sandbox.Resolve(ctx, path.Join(h.virtual, rel))
}

// Init creates an empty repository. An empty branch uses the configured default.
func (s *Service) Init(ctx context.Context, repoPath, branch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.sandbox.ResolveTarget(ctx, repoPath)
	if err != nil {
		return err
	}
	if branch == "" {
		branch = s.defaultBranch
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", repoPath, err)
	}
	wt, _, st, err := storage(dir)
	if err != nil {
		return err
	}
	_, err = git.InitWithOptions(st, wt, git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(branch),
	})
	if err != nil {
		return fmt.Errorf("init %s: %w", repoPath, err)
	}
	s.logger.Info("initialized repository", "repo", repoPath, "branch", branch)
	return nil
}

// Clone clones url into repoPath. An empty branch clones the remote HEAD. A
// shallow clone fetches a single commit.
func (s *Service) Clone(ctx context.Context, repoPath, rawURL, branch string, shallow bool, creds Credentials) error {
	dir, err := s.sandbox.ResolveTarget(ctx, repoPath)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(dir)
	created := errors.Is(statErr, fs.ErrNotExist)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", repoPath, err)
	}
	wt, _, st, err := storage(dir)
	if err != nil {
		return err
	}

	opts := &git.CloneOptions{
		URL:          rawURL,
		RemoteName:   s.remote,
		SingleBranch: true,
		Auth:         creds.auth(),
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	if shallow {
		opts.Depth = 1
	}

	s.logger.Info("cloning repository", "repo", repoPath, "url", redact(rawURL), "branch", branch, "shallow", shallow)
	if _, err := git.CloneContext(ctx, st, wt, opts); err != nil {
		cleanupClone(dir, created)
		return &RemoteError{Op: "clone", Remote: redact(rawURL), Cause: err}
	}
	return nil
}

func cleanupClone(dir string, created bool) {
	if created {
		_ = os.RemoveAll(dir)
		return
	}
	_ = os.RemoveAll(filepath.Join(dir, git.GitDirName))
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
