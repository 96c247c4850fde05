package gitops

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func cleanRel(file string) string {
	return path.Clean(filepath.ToSlash(file))
}

// Add stages file, or removes it from the index when it was deleted from the
// working copy.
func (s *Service) Add(ctx context.Context, repoPath, file string) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	if _, err := s.file(ctx, h, file); err != nil {
		return err
	}
	wt, err := h.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add(cleanRel(file)); err != nil {
		return fmt.Errorf("add %s: %w", file, err)
	}
	return nil
}

// Remove drops file from the index. The working copy is left untouched.
func (s *Service) Remove(ctx context.Context, repoPath, file string) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	idx, err := h.repo.Storer.Index()
	if err != nil {
		return err
	}
	if err := removeIndexEntry(idx, cleanRel(file)); err != nil {
		return fmt.Errorf("remove %s: %w", file, err)
	}
	return h.repo.Storer.SetIndex(idx)
}

// ResetIndex restores the index entry of file to its HEAD version, or drops it
// when HEAD does not contain file.
func (s *Service) ResetIndex(ctx context.Context, repoPath, file string) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	rel := cleanRel(file)
	tree, err := headTree(h)
	if err != nil {
		return err
	}
	idx, err := h.repo.Storer.Index()
	if err != nil {
		return err
	}

	var entry *object.File
	if tree != nil {
		entry, err = tree.File(rel)
		if err != nil && !errors.Is(err, object.ErrFileNotFound) {
			return err
		}
	}
	if entry == nil {
		if err := removeIndexEntry(idx, rel); err != nil {
			return err
		}
	} else {
		setIndexEntry(idx, rel, entry.Hash, entry.Mode, entry.Size)
	}
	return h.repo.Storer.SetIndex(idx)
}

// Commit records the index as a new commit on the current branch.
func (s *Service) Commit(ctx context.Context, repoPath, message string, author Identity) (string, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return "", err
	}
	wt, err := h.repo.Worktree()
	if err != nil {
		return "", err
	}
	opts := &git.CommitOptions{}
	if author.Name != "" {
		opts.Author = &object.Signature{Name: author.Name, Email: author.Email, When: s.now()}
	}
	hash, err := wt.Commit(message, opts)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("committed", "repo", repoPath, "oid", hash.String())
	return hash.String(), nil
}

// RevertFileToHEAD overwrites the working copy of file with its HEAD version and
// stages it.
func (s *Service) RevertFileToHEAD(ctx context.Context, repoPath, file string) error {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	rel := cleanRel(file)
	tree, err := headTree(h)
	if err != nil {
		return err
	}
	if tree == nil {
		return fmt.Errorf("revert %s: %w", file, object.ErrFileNotFound)
	}
	f, err := tree.File(rel)
	if err != nil {
		return fmt.Errorf("revert %s: %w", file, err)
	}
	if err := s.writeWorktreeFile(ctx, h, rel, f); err != nil {
		return fmt.Errorf("revert %s: %w", file, err)
	}
	wt, err := h.repo.Worktree()
	if err != nil {
		return err
	}
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("revert %s: %w", file, err)
	}
	return nil
}
