package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	stashRef = plumbing.ReferenceName("refs/stash")
	stashLog = "logs/refs/stash"
)

// Stash runs a stash operation. Only list returns entries. message names the
// entry created by push and is ignored otherwise.
func (s *Service) Stash(ctx context.Context, repoPath string, op StashOp, message string) ([]StashEntry, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	switch op {
	case StashList, "":
		return s.stashList(h)
	case StashPush:
		return nil, s.stashPush(ctx, h, message)
	case StashPop:
		return nil, s.stashPop(ctx, h)
	case StashDrop:
		return nil, s.stashDrop(h)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStashOp, op)
	}
}

func (s *Service) stashList(h *repoHandle) ([]StashEntry, error) {
	ref, err := h.repo.Storer.Reference(stashRef)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []StashEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	log, err := readStashLog(h.dot)
	if err != nil {
		return nil, err
	}
	if len(log) == 0 {
		c, err := h.repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, err
		}
		return []StashEntry{{Index: 0, Hash: c.Hash.String(), Message: firstLine(c.Message)}}, nil
	}
	out := make([]StashEntry, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, StashEntry{Index: len(out), Hash: log[i].New.String(), Message: log[i].Message})
	}
	return out, nil
}

func (s *Service) stashPush(ctx context.Context, h *repoHandle, message string) error {
	head, err := h.repo.Head()
	if err != nil {
		return fmt.Errorf("stash: %w", err)
	}
	base, err := h.repo.CommitObject(head.Hash())
	if err != nil {
		return err
	}
	baseTree, err := base.Tree()
	if err != nil {
		return err
	}
	idx, err := h.repo.Storer.Index()
	if err != nil {
		return err
	}

	st := h.repo.Storer
	var staged, working []stagedEntry
	for _, e := range idx.Entries {
		if e.Stage != 0 {
			continue
		}
		staged = append(staged, stagedEntry{Path: e.Name, Hash: e.Hash, Mode: e.Mode})
		if e.Mode == filemode.Submodule {
			working = append(working, stagedEntry{Path: e.Name, Hash: e.Hash, Mode: e.Mode})
			continue
		}
		real, err := s.file(ctx, h, e.Name)
		if err != nil {
			return err
		}
		data, info, err := worktreeBlob(real)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		hash := blobHash(data)
		if hash != e.Hash {
			if hash, err = storeBlob(st, data); err != nil {
				return err
			}
		}
		mode := e.Mode
		if info.Mode()&os.ModeSymlink != 0 {
			mode = filemode.Symlink
		} else if mode == filemode.Symlink {
			mode = filemode.Regular
		}
		working = append(working, stagedEntry{Path: e.Name, Hash: hash, Mode: mode})
	}

	indexHash, err := writeTree(st, staged)
	if err != nil {
		return err
	}
	workHash, err := writeTree(st, working)
	if err != nil {
		return err
	}
	if indexHash == base.TreeHash && workHash == base.TreeHash {
		return ErrNothingToStash
	}

	branch, err := currentBranch(h)
	if err != nil {
		return err
	}
	if branch == "" {
		branch = "(no branch)"
	}
	summary := fmt.Sprintf("%s %s", head.Hash().String()[:7], firstLine(base.Message))
	sig := s.stashSignature(h)

	indexCommit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      fmt.Sprintf("index on %s: %s\n", branch, summary),
		TreeHash:     indexHash,
		ParentHashes: []plumbing.Hash{head.Hash()},
	}
	indexCommitHash, err := storeObject(st, indexCommit)
	if err != nil {
		return err
	}
	if message == "" {
		message = fmt.Sprintf("WIP on %s: %s", branch, summary)
	} else {
		message = fmt.Sprintf("On %s: %s", branch, message)
	}
	wip := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message + "\n",
		TreeHash:     workHash,
		ParentHashes: []plumbing.Hash{head.Hash(), indexCommitHash},
	}
	wipHash, err := storeObject(st, wip)
	if err != nil {
		return err
	}

	old := plumbing.ZeroHash
	if ref, err := st.Reference(stashRef); err == nil {
		old = ref.Hash()
	}
	if err := st.SetReference(plumbing.NewHashReference(stashRef, wipHash)); err != nil {
		return err
	}
	if err := appendStashLog(h.dot, stashLogEntry{Old: old, New: wipHash, Message: message}, sig); err != nil {
		return err
	}

	// Put every tracked path that the stash captured back to its HEAD version.
	workTree, err := object.GetTree(st, workHash)
	if err != nil {
		return err
	}
	indexTree, err := object.GetTree(st, indexHash)
	if err != nil {
		return err
	}
	paths, err := changedPaths(ctx, h, baseTree, workTree, indexTree)
	if err != nil {
		return err
	}
	if err := s.checkoutPaths(ctx, h, idx, baseTree, paths, true, true); err != nil {
		return err
	}
	if err := st.SetIndex(idx); err != nil {
		return err
	}
	s.logger.Info("stashed changes", "repo", h.virtual, "oid", wipHash.String(), "paths", len(paths))
	return nil
}

func (s *Service) stashPop(ctx context.Context, h *repoHandle) error {
	st := h.repo.Storer
	ref, err := st.Reference(stashRef)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return ErrNoStash
	}
	if err != nil {
		return err
	}
	wip, err := h.repo.CommitObject(ref.Hash())
	if err != nil {
		return err
	}
	if len(wip.ParentHashes) == 0 {
		return fmt.Errorf("stash %s has no base commit", wip.Hash)
	}
	base, err := h.repo.CommitObject(wip.ParentHashes[0])
	if err != nil {
		return err
	}
	baseTree, err := base.Tree()
	if err != nil {
		return err
	}
	workTree, err := wip.Tree()
	if err != nil {
		return err
	}
	indexTree := workTree
	if len(wip.ParentHashes) > 1 {
		ic, err := h.repo.CommitObject(wip.ParentHashes[1])
		if err != nil {
			return err
		}
		if indexTree, err = ic.Tree(); err != nil {
			return err
		}
	}

	idx, err := st.Index()
	if err != nil {
		return err
	}
	workPaths, err := changedPaths(ctx, h, baseTree, workTree)
	if err != nil {
		return err
	}
	indexPaths, err := changedPaths(ctx, h, baseTree, indexTree)
	if err != nil {
		return err
	}
	dirty, err := s.localChanges(ctx, h, idx, baseTree, append(workPaths, indexPaths...))
	if err != nil {
		return err
	}
	if len(dirty) > 0 {
		return fmt.Errorf("%w: %s", ErrLocalChanges, strings.Join(dirty, ", "))
	}

	if err := s.checkoutPaths(ctx, h, idx, workTree, workPaths, true, false); err != nil {
		return err
	}
	if err := s.checkoutPaths(ctx, h, idx, indexTree, indexPaths, false, true); err != nil {
		return err
	}
	if err := st.SetIndex(idx); err != nil {
		return err
	}
	s.logger.Info("applied stash", "repo", h.virtual, "oid", wip.Hash.String())
	return s.stashDrop(h)
}

func (s *Service) stashDrop(h *repoHandle) error {
	st := h.repo.Storer
	if _, err := st.Reference(stashRef); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return ErrNoStash
		}
		return err
	}
	log, err := readStashLog(h.dot)
	if err != nil {
		return err
	}
	if len(log) > 1 {
		log = log[:len(log)-1]
		if err := st.SetReference(plumbing.NewHashReference(stashRef, log[len(log)-1].New)); err != nil {
			return err
		}
		return writeStashLog(h.dot, log)
	}
	if err := st.RemoveReference(stashRef); err != nil {
		return err
	}
	return writeStashLog(h.dot, nil)
}

func (s *Service) stashSignature(h *repoHandle) object.Signature {
	sig := object.Signature{Name: "coursevfs", Email: "coursevfs@localhost", When: s.now()}
	if cfg, err := h.repo.Config(); err == nil && cfg.User.Name != "" {
		sig.Name, sig.Email = cfg.User.Name, cfg.User.Email
	}
	return sig
}

// changedPaths lists the blob paths where any of targets differs from base.
func changedPaths(ctx context.Context, h *repoHandle, base *object.Tree, targets ...*object.Tree) ([]string, error) {
	seen := map[string]struct{}{}
	for _, t := range targets {
		changes, err := diffTrees(ctx, h.repo.Storer, base, t)
		if err != nil {
			return nil, err
		}
		for _, c := range changes {
			seen[c.Path] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// localChanges returns the paths whose working copy or index entry no longer
// matches base. Applying a stash over them would lose those edits.
func (s *Service) localChanges(ctx context.Context, h *repoHandle, idx *index.Index, base *object.Tree, paths []string) ([]string, error) {
	seen := map[string]struct{}{}
	var dirty []string
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}

		want, inBase, err := blobAt(base, p)
		if err != nil {
			return nil, err
		}

		staged := false
		e, err := idx.Entry(p)
		switch {
		case errors.Is(err, index.ErrEntryNotFound):
			staged = inBase
		case err != nil:
			return nil, err
		default:
			staged = !inBase || e.Hash != want
		}

		real, err := s.file(ctx, h, p)
		if err != nil {
			return nil, err
		}
		data, _, err := worktreeBlob(real)
		var edited bool
		switch {
		case errors.Is(err, fs.ErrNotExist):
			edited = inBase
		case err != nil:
			edited = true
		default:
			edited = !inBase || blobHash(data) != want
		}

		if staged || edited {
			dirty = append(dirty, p)
		}
	}
	sort.Strings(dirty)
	return dirty, nil
}

// blobAt returns the hash of the file at p in t, if there is one.
func blobAt(t *object.Tree, p string) (plumbing.Hash, bool, error) {
	e, err := t.FindEntry(p)
	if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return plumbing.ZeroHash, false, nil
	}
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	if !e.Mode.IsFile() {
		return plumbing.ZeroHash, false, nil
	}
	return e.Hash, true, nil
}

// checkoutPaths makes paths match tree in the working copy, the index, or both.
// Paths that are not blobs in tree are removed. Removals run first, deepest path
// first, so directories are emptied before files replace them.
func (s *Service) checkoutPaths(ctx context.Context, h *repoHandle, idx *index.Index, tree *object.Tree, paths []string, worktree, stage bool) error {
	type pending struct {
		path string
		file *object.File
	}
	var writes []pending
	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		e, err := tree.FindEntry(p)
		if err != nil && !errors.Is(err, object.ErrEntryNotFound) && !errors.Is(err, object.ErrDirectoryNotFound) {
			return err
		}
		if err != nil || !e.Mode.IsFile() {
			if worktree {
				if err := s.removeWorktreeFile(ctx, h, p); err != nil {
					return err
				}
			}
			if stage {
				if err := removeIndexEntry(idx, p); err != nil {
					return err
				}
			}
			continue
		}
		f, err := tree.File(p)
		if err != nil {
			return err
		}
		writes = append(writes, pending{path: p, file: f})
	}
	for i := len(writes) - 1; i >= 0; i-- {
		w := writes[i]
		if worktree {
			if err := s.writeWorktreeFile(ctx, h, w.path, w.file); err != nil {
				return err
			}
		}
		if stage {
			setIndexEntry(idx, w.path, w.file.Hash, w.file.Mode, w.file.Size)
		}
	}
	return nil
}

type stashLogEntry struct {
	Old     plumbing.Hash
	New     plumbing.Hash
	Line    string
	Message string
}

func readStashLog(dot billy.Filesystem) ([]stashLogEntry, error) {
	f, err := dot.Open(stashLog)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var out []stashLogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		head, msg, _ := strings.Cut(line, "\t")
		fields := strings.Fields(head)
		if len(fields) < 2 {
			continue
		}
		out = append(out, stashLogEntry{
			Old:     plumbing.NewHash(fields[0]),
			New:     plumbing.NewHash(fields[1]),
			Line:    line,
			Message: msg,
		})
	}
	return out, nil
}

func writeStashLog(dot billy.Filesystem, entries []stashLogEntry) error {
	if len(entries) == 0 {
		if err := dot.Remove(stashLog); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.Line)
		buf.WriteByte('\n')
	}
	return util.WriteFile(dot, stashLog, buf.Bytes(), 0o644)
}

func appendStashLog(dot billy.Filesystem, e stashLogEntry, sig object.Signature) error {
	entries, err := readStashLog(dot)
	if err != nil {
		return err
	}
	e.Line = fmt.Sprintf("%s %s %s <%s> %d %s\t%s",
		e.Old, e.New, sig.Name, sig.Email, sig.When.Unix(), sig.When.Format("-0700"), e.Message)
	return writeStashLog(dot, append(entries, e))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
