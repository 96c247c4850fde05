package gitops

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// currentBranch reads the symbolic HEAD without resolving it, so it works before
// the first commit. A detached HEAD yields "".
func currentBranch(h *repoHandle) (string, error) {
	ref, err := h.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", err
	}
	if ref.Type() != plumbing.SymbolicReference || !ref.Target().IsBranch() {
		return "", nil
	}
	return ref.Target().Short(), nil
}

// CurrentBranch returns the short name of the checked out branch.
func (s *Service) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return "", err
	}
	return currentBranch(h)
}

// ListBranches returns the local branch names, sorted.
func (s *Service) ListBranches(ctx context.Context, repoPath string) ([]string, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	iter, err := h.repo.Branches()
	if err != nil {
		return nil, err
	}
	branches := []string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(branches)
	return branches, nil
}

// Checkout switches to branch. When only the remote-tracking branch exists, a
// local branch tracking it is created first.
func (s *Service) Checkout(ctx context.Context, repoPath, branch string) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	wt, err := h.repo.Worktree()
	if err != nil {
		return err
	}
	local := plumbing.NewBranchReferenceName(branch)
	err = wt.Checkout(&git.CheckoutOptions{Branch: local})
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		if err != nil {
			return fmt.Errorf("checkout %s: %w", branch, err)
		}
		return nil
	}

	remote, rerr := h.repo.Reference(plumbing.NewRemoteReferenceName(s.remote, branch), true)
	if rerr != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	err = wt.Checkout(&git.CheckoutOptions{Branch: local, Hash: remote.Hash(), Create: true})
	if err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	err = h.repo.CreateBranch(&gitconfig.Branch{Name: branch, Remote: s.remote, Merge: local})
	if err != nil && !errors.Is(err, git.ErrBranchExists) {
		return fmt.Errorf("track %s/%s: %w", s.remote, branch, err)
	}
	s.logger.Info("created branch from remote", "repo", repoPath, "branch", branch, "remote", s.remote)
	return nil
}

func parseHash(value string) (plumbing.Hash, error) {
	if len(value) != 40 {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrInvalidHash, value)
	}
	if _, err := hex.DecodeString(value); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %q", ErrInvalidHash, value)
	}
	return plumbing.NewHash(value), nil
}

// WriteRef points the local branch at hash. An existing branch is only moved
// when force is set.
func (s *Service) WriteRef(ctx context.Context, repoPath, branch, hash string, force bool) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	oid, err := parseHash(hash)
	if err != nil {
		return err
	}
	if _, err := h.repo.CommitObject(oid); err != nil {
		return fmt.Errorf("write ref %s: %w", branch, err)
	}
	name := plumbing.NewBranchReferenceName(branch)
	if !force {
		_, err := h.repo.Storer.Reference(name)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrRefExists, name)
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return err
		}
	}
	return h.repo.Storer.SetReference(plumbing.NewHashReference(name, oid))
}

// ResolveRef returns the object id ref points to. With remote set, ref names a
// branch of the configured remote. Otherwise ref is a full name, HEAD, or a short
// branch or tag name.
func (s *Service) ResolveRef(ctx context.Context, repoPath, ref string, remote bool) (string, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return "", err
	}
	var candidates []plumbing.ReferenceName
	switch {
	case remote:
		candidates = []plumbing.ReferenceName{plumbing.NewRemoteReferenceName(s.remote, ref)}
	case ref == "HEAD" || strings.HasPrefix(ref, "refs/"):
		candidates = []plumbing.ReferenceName{plumbing.ReferenceName(ref)}
	default:
		candidates = []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(ref),
			plumbing.NewTagReferenceName(ref),
			plumbing.NewRemoteReferenceName(s.remote, ref),
		}
	}
	for _, name := range candidates {
		resolved, err := h.repo.Reference(name, true)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return resolved.Hash().String(), nil
	}
	return "", fmt.Errorf("resolve %s: %w", ref, plumbing.ErrReferenceNotFound)
}

func signature(sig object.Signature) Signature {
	return Signature{Name: sig.Name, Email: sig.Email, Timestamp: sig.When}
}

// Log walks the history reachable from HEAD, newest first. A depth of
// zero or less returns the whole history.
func (s *Service) Log(ctx context.Context, repoPath string, depth int) ([]CommitInfo, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	head, err := h.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	iter, err := h.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	commits := []CommitInfo{}
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth > 0 && len(commits) >= depth {
			return storer.ErrStop
		}
		parents := make([]string, 0, len(c.ParentHashes))
		for _, p := range c.ParentHashes {
			parents = append(parents, p.String())
		}
		commits = append(commits, CommitInfo{
			Hash:      c.Hash.String(),
			Message:   c.Message,
			Author:    signature(c.Author),
			Committer: signature(c.Committer),
			Parents:   parents,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}
