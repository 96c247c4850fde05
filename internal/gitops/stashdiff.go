package gitops

import (
	"context"
	"errors"
	"path"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// StashDiff lists the files that differ between HEAD and the latest stash entry.
// Without a stash the result is empty.
func (s *Service) StashDiff(ctx context.Context, repoPath string) ([]StashDiffEntry, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	ref, err := h.repo.Storer.Reference(stashRef)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []StashDiffEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	stash, err := h.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}
	stashTree, err := stash.Tree()
	if err != nil {
		return nil, err
	}
	head, err := headTree(h)
	if err != nil {
		return nil, err
	}
	return diffTrees(ctx, h.repo.Storer, head, stashTree)
}

// diffTrees walks from and to in step and classifies each blob path that differs.
// A nil tree is empty.
func diffTrees(ctx context.Context, st storer.EncodedObjectStorer, from, to *object.Tree) ([]StashDiffEntry, error) {
	w := &treeDiffer{ctx: ctx, st: st, out: []StashDiffEntry{}}
	if err := w.walk("", from, to); err != nil {
		return nil, err
	}
	return w.out, nil
}

type treeDiffer struct {
	ctx context.Context
	st  storer.EncodedObjectStorer
	out []StashDiffEntry
}

func entries(t *object.Tree) map[string]object.TreeEntry {
	out := map[string]object.TreeEntry{}
	if t == nil {
		return out
	}
	for _, e := range t.Entries {
		out[e.Name] = e
	}
	return out
}

func isBlob(e *object.TreeEntry) bool { return e != nil && e.Mode.IsFile() }
func isTree(e *object.TreeEntry) bool { return e != nil && e.Mode == filemode.Dir }

func (w *treeDiffer) subtree(e *object.TreeEntry) (*object.Tree, error) {
	if !isTree(e) {
		return nil, nil
	}
	return object.GetTree(w.st, e.Hash)
}

func (w *treeDiffer) walk(prefix string, from, to *object.Tree) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	left, right := entries(from), entries(to)
	names := make([]string, 0, len(left)+len(right))
	for name := range left {
		names = append(names, name)
	}
	for name := range right {
		if _, ok := left[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var a, b *object.TreeEntry
		if e, ok := left[name]; ok {
			a = &e
		}
		if e, ok := right[name]; ok {
			b = &e
		}
		p := path.Join(prefix, name)

		switch {
		case isBlob(a) && isBlob(b):
			if a.Hash != b.Hash {
				w.emit(p, ChangeModified)
			}
		case isBlob(a) && b != nil, a != nil && isBlob(b):
			w.emit(p, ChangeModified)
		case isBlob(a) && b == nil:
			w.emit(p, ChangeDeletedStaged)
		case a == nil && isBlob(b):
			w.emit(p, ChangeAdded)
		}

		if isTree(a) || isTree(b) {
			if isTree(a) && isTree(b) && a.Hash == b.Hash {
				continue
			}
			sa, err := w.subtree(a)
			if err != nil {
				return err
			}
			sb, err := w.subtree(b)
			if err != nil {
				return err
			}
			if err := w.walk(p, sa, sb); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *treeDiffer) emit(p string, kind ChangeKind) {
	w.out = append(w.out, StashDiffEntry{Path: p, Status: kind})
}
