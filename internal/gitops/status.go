package gitops

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// snapshot holds the blob hashes of HEAD, the index and the working copy.
type snapshot struct {
	head    map[string]plumbing.Hash
	index   map[string]plumbing.Hash
	workdir map[string]plumbing.Hash
	ignore  *ignoreMatcher
}

func (s *Service) snapshot(ctx context.Context, h *repoHandle) (*snapshot, error) {
	snap := &snapshot{
		head:    map[string]plumbing.Hash{},
		index:   map[string]plumbing.Hash{},
		workdir: map[string]plumbing.Hash{},
	}

	tree, err := headTree(h)
	if err != nil {
		return nil, err
	}
	files, err := treeFiles(tree)
	if err != nil {
		return nil, err
	}
	for p, e := range files {
		snap.head[p] = e.Hash
	}

	idx, err := h.repo.Storer.Index()
	if err != nil {
		return nil, err
	}
	for _, e := range idx.Entries {
		snap.index[e.Name] = e.Hash
	}

	snap.ignore, err = newIgnoreMatcher(h.wt)
	if err != nil {
		s.logger.Warn("ignoring .gitignore files", "repo", h.virtual, "error", err)
	}

	tracked := trackedDirs(snap.head, snap.index)
	err = filepath.WalkDir(h.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(h.dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if d.Name() == git.GitDirName {
				return filepath.SkipDir
			}
			if _, ok := tracked[rel]; !ok && snap.ignore.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		data, _, err := worktreeBlob(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		snap.workdir[rel] = blobHash(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// trackedDirs returns every directory that holds a file in HEAD or the index.
func trackedDirs(sets ...map[string]plumbing.Hash) map[string]struct{} {
	out := map[string]struct{}{}
	for _, set := range sets {
		for p := range set {
			for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
				out[dir] = struct{}{}
			}
		}
	}
	return out
}

func (snap *snapshot) tracked(p string) bool {
	_, inHead := snap.head[p]
	_, inIndex := snap.index[p]
	return inHead || inIndex
}

func (snap *snapshot) row(p string) StatusRow {
	row := StatusRow{Path: p}
	head, inHead := snap.head[p]
	work, inWork := snap.workdir[p]
	stage, inStage := snap.index[p]
	if inHead {
		row.Head = 1
	}
	switch {
	case !inWork:
		row.Workdir = 0
	case inHead && work == head:
		row.Workdir = 1
	default:
		row.Workdir = 2
	}
	switch {
	case !inStage:
		row.Stage = 0
	case inHead && stage == head:
		row.Stage = 1
	case inWork && stage == work:
		row.Stage = 2
	default:
		row.Stage = 3
	}
	return row
}

// StatusMatrix reports every tracked file and every untracked file that is not
// ignored, sorted by path.
func (s *Service) StatusMatrix(ctx context.Context, repoPath string) ([]StatusRow, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, h)
	if err != nil {
		return nil, err
	}
	paths := map[string]struct{}{}
	for p := range snap.head {
		paths[p] = struct{}{}
	}
	for p := range snap.index {
		paths[p] = struct{}{}
	}
	for p := range snap.workdir {
		if snap.tracked(p) || !snap.ignore.ShouldIgnore(p, false) {
			paths[p] = struct{}{}
		}
	}
	rows := make([]StatusRow, 0, len(paths))
	for p := range paths {
		rows = append(rows, snap.row(p))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

// ResolveFileStatus describes a single file with the short status vocabulary:
// a leading "*" marks working copy changes that are not staged.
func (s *Service) ResolveFileStatus(ctx context.Context, repoPath, file string) (string, error) {
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return "", err
	}
	snap, err := s.snapshot(ctx, h)
	if err != nil {
		return "", err
	}
	file = path.Clean(filepath.ToSlash(file))
	if !snap.tracked(file) && snap.ignore.ShouldIgnore(file, false) {
		return "ignored", nil
	}
	return describe(snap.row(file)), nil
}

func describe(r StatusRow) string {
	switch [3]int{r.Head, r.Workdir, r.Stage} {
	case [3]int{0, 0, 0}:
		return "absent"
	case [3]int{0, 2, 0}:
		return "*added"
	case [3]int{0, 2, 2}:
		return "added"
	case [3]int{1, 0, 0}:
		return "deleted"
	case [3]int{1, 1, 0}:
		return "*undeleted"
	case [3]int{1, 2, 0}:
		return "*undeletemodified"
	case [3]int{1, 1, 1}:
		return "unmodified"
	case [3]int{1, 2, 2}:
		return "modified"
	}
	switch {
	case r.Head == 0 && r.Workdir == 0:
		return "*absent"
	case r.Head == 0:
		return "*added"
	case r.Workdir == 0:
		return "*deleted"
	case r.Workdir == 1:
		return "*unmodified"
	default:
		return "*modified"
	}
}
