package gitops

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// stagedEntry is a file destined for a tree object.
type stagedEntry struct {
	Path string
	Hash plumbing.Hash
	Mode filemode.FileMode
}

type dirNode struct {
	files map[string]stagedEntry
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: map[string]stagedEntry{}, dirs: map[string]*dirNode{}}
}

func (d *dirNode) insert(parts []string, e stagedEntry) {
	if len(parts) == 1 {
		d.files[parts[0]] = e
		return
	}
	sub, ok := d.dirs[parts[0]]
	if !ok {
		sub = newDirNode()
		d.dirs[parts[0]] = sub
	}
	sub.insert(parts[1:], e)
}

func (d *dirNode) write(st storer.EncodedObjectStorer) (plumbing.Hash, error) {
	tree := &object.Tree{}
	for name, f := range d.files {
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: f.Mode, Hash: f.Hash})
	}
	for name, sub := range d.dirs {
		h, err := sub.write(st)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	// git orders directories as if their name ended with a slash
	sort.Slice(tree.Entries, func(i, j int) bool {
		return treeSortKey(tree.Entries[i]) < treeSortKey(tree.Entries[j])
	})
	return storeObject(st, tree)
}

func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// writeTree stores the tree objects for entries and returns the root tree hash.
func writeTree(st storer.EncodedObjectStorer, entries []stagedEntry) (plumbing.Hash, error) {
	root := newDirNode()
	for _, e := range entries {
		root.insert(strings.Split(e.Path, "/"), e)
	}
	return root.write(st)
}

type encodable interface {
	Encode(plumbing.EncodedObject) error
}

func storeObject(st storer.EncodedObjectStorer, o encodable) (plumbing.Hash, error) {
	obj := st.NewEncodedObject()
	if err := o.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return st.SetEncodedObject(obj)
}

func storeBlob(st storer.EncodedObjectStorer, data []byte) (plumbing.Hash, error) {
	obj := st.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return st.SetEncodedObject(obj)
}

// worktreeBlob reads the blob content of a working copy file: the link target for
// symlinks and the bytes otherwise.
func worktreeBlob(real string) ([]byte, os.FileInfo, error) {
	info, err := os.Lstat(real)
	if err != nil {
		return nil, nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(real)
		if err != nil {
			return nil, nil, err
		}
		return []byte(filepath.ToSlash(target)), info, nil
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

func blobHash(data []byte) plumbing.Hash {
	return plumbing.ComputeHash(plumbing.BlobObject, data)
}

// writeWorktreeFile materializes f over the working copy at rel.
func (s *Service) writeWorktreeFile(ctx context.Context, h *repoHandle, rel string, f *object.File) error {
	real, err := s.file(ctx, h, rel)
	if err != nil {
		return err
	}
	r, err := f.Reader()
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		return err
	}
	if info, err := os.Lstat(real); err == nil && (info.IsDir() || info.Mode()&os.ModeSymlink != 0 || f.Mode == filemode.Symlink) {
		if err := os.Remove(real); err != nil {
			return err
		}
	}
	if f.Mode == filemode.Symlink {
		return os.Symlink(filepath.FromSlash(string(data)), real)
	}
	perm, err := f.Mode.ToOSFileMode()
	if err != nil {
		perm = 0o644
	}
	if err := os.WriteFile(real, data, perm.Perm()); err != nil {
		return err
	}
	return os.Chmod(real, perm.Perm())
}

// removeWorktreeFile deletes rel from the working copy. Missing files are fine.
func (s *Service) removeWorktreeFile(ctx context.Context, h *repoHandle, rel string) error {
	real, err := s.file(ctx, h, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(real); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// setIndexEntry points the index entry for rel at hash, creating it when missing.
// Stat data is cleared so the next status rehashes the working copy.
func setIndexEntry(idx *index.Index, rel string, hash plumbing.Hash, mode filemode.FileMode, size int64) {
	e, err := idx.Entry(rel)
	if err != nil {
		e = idx.Add(rel)
	}
	*e = index.Entry{Name: rel, Hash: hash, Mode: mode, Size: uint32(size)}
}

func removeIndexEntry(idx *index.Index, rel string) error {
	if _, err := idx.Remove(rel); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
		return err
	}
	return nil
}

// headCommit returns the commit HEAD points to, or nil before the first commit.
func headCommit(h *repoHandle) (*object.Commit, error) {
	ref, err := h.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h.repo.CommitObject(ref.Hash())
}

// headTree returns the tree of HEAD, or nil before the first commit.
func headTree(h *repoHandle) (*object.Tree, error) {
	c, err := headCommit(h)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Tree()
}

// treeFiles maps every blob path in t to its entry. A nil tree is empty.
func treeFiles(t *object.Tree) (map[string]stagedEntry, error) {
	out := map[string]stagedEntry{}
	if t == nil {
		return out, nil
	}
	err := t.Files().ForEach(func(f *object.File) error {
		out[f.Name] = stagedEntry{Path: f.Name, Hash: f.Hash, Mode: f.Mode}
		return nil
	})
	return out, err
}
