package gitops

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// AddRemote registers a remote. An empty name uses the configured remote name.
func (s *Service) AddRemote(ctx context.Context, repoPath, name, rawURL string) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	if name == "" {
		name = s.remote
	}
	_, err = h.repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{rawURL}})
	if err != nil {
		return fmt.Errorf("add remote %s: %w", name, err)
	}
	s.logger.Info("added remote", "repo", repoPath, "remote", name, "url", redact(rawURL))
	return nil
}

// ListRemotes returns the configured remotes sorted by name.
func (s *Service) ListRemotes(ctx context.Context, repoPath string) ([]Remote, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	remotes, err := h.repo.Remotes()
	if err != nil {
		return nil, err
	}
	out := make([]Remote, 0, len(remotes))
	for _, r := range remotes {
		cfg := r.Config()
		var u string
		if len(cfg.URLs) > 0 {
			u = cfg.URLs[0]
		}
		out = append(out, Remote{Remote: cfg.Name, URL: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Remote < out[j].Remote })
	return out, nil
}

// Push pushes the current branch to the configured remote. A remote that is
// already up to date is not an error.
func (s *Service) Push(ctx context.Context, repoPath string, creds Credentials) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	head, err := h.repo.Head()
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	refspec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", head.Name(), head.Name()))
	err = h.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: s.remote,
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Auth:       creds.auth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return &RemoteError{Op: "push", Remote: s.remote, Cause: err}
	}
	s.logger.Info("pushed", "repo", repoPath, "ref", head.Name().Short())
	return nil
}

// Pull fetches branch from the configured remote and fast-forwards the current
// branch. Divergent history fails with ErrNonFastForward and leaves the working
// copy untouched.
func (s *Service) Pull(ctx context.Context, repoPath, branch string, creds Credentials) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	if branch == "" {
		if branch, err = currentBranch(h); err != nil {
			return err
		}
	}
	wt, err := h.repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    s.remote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Auth:          creds.auth(),
	})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("pull %s/%s: %w: %w", s.remote, branch, ErrNonFastForward, err)
	case err != nil:
		return &RemoteError{Op: "pull", Remote: s.remote, Cause: err}
	}
	s.logger.Info("pulled", "repo", repoPath, "branch", branch)
	return nil
}
