package gitops

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, st *memory.Storage, files map[string]string) *object.Tree {
	t.Helper()
	var entries []stagedEntry
	for p, content := range files {
		h, err := storeBlob(st, []byte(content))
		require.NoError(t, err)
		entries = append(entries, stagedEntry{Path: p, Hash: h, Mode: filemode.Regular})
	}
	h, err := writeTree(st, entries)
	require.NoError(t, err)
	tree, err := object.GetTree(st, h)
	require.NoError(t, err)
	return tree
}

func TestDiffTrees(t *testing.T) {
	tests := []struct {
		name string
		from map[string]string
		to   map[string]string
		want []StashDiffEntry
	}{
		{
			name: "identical",
			from: map[string]string{"a": "1", "d/b": "2"},
			to:   map[string]string{"a": "1", "d/b": "2"},
			want: []StashDiffEntry{},
		},
		{
			name: "nested changes",
			from: map[string]string{"d/keep": "k", "d/old": "o", "d/edit": "1"},
			to:   map[string]string{"d/keep": "k", "d/new": "n", "d/edit": "2"},
			want: []StashDiffEntry{
				{Path: "d/edit", Status: ChangeModified},
				{Path: "d/new", Status: ChangeAdded},
				{Path: "d/old", Status: ChangeDeletedStaged},
			},
		},
		{
			name: "whole directory added",
			from: map[string]string{"a": "1"},
			to:   map[string]string{"a": "1", "x/y/z": "deep"},
			want: []StashDiffEntry{{Path: "x/y/z", Status: ChangeAdded}},
		},
		{
			name: "blob replaced by directory",
			from: map[string]string{"x": "file"},
			to:   map[string]string{"x/inner": "nested"},
			want: []StashDiffEntry{
				{Path: "x", Status: ChangeModified},
				{Path: "x/inner", Status: ChangeAdded},
			},
		},
		{
			name: "directory replaced by blob",
			from: map[string]string{"x/inner": "nested"},
			to:   map[string]string{"x": "file"},
			want: []StashDiffEntry{
				{Path: "x", Status: ChangeModified},
				{Path: "x/inner", Status: ChangeDeletedStaged},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.NewStorage()
			got, err := diffTrees(context.Background(), st, buildTree(t, st, tt.from), buildTree(t, st, tt.to))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiffTrees_NilSideIsEmpty(t *testing.T) {
	st := memory.NewStorage()
	to := buildTree(t, st, map[string]string{"a": "1"})

	got, err := diffTrees(context.Background(), st, nil, to)
	require.NoError(t, err)
	assert.Equal(t, []StashDiffEntry{{Path: "a", Status: ChangeAdded}}, got)
}

func TestDiffTrees_SkipsNonBlobs(t *testing.T) {
	st := memory.NewStorage()
	sub := plumbing.NewHash("1111111111111111111111111111111111111111")
	h, err := writeTree(st, []stagedEntry{{Path: "vendor/lib", Hash: sub, Mode: filemode.Submodule}})
	require.NoError(t, err)
	to, err := object.GetTree(st, h)
	require.NoError(t, err)

	got, err := diffTrees(context.Background(), st, nil, to)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteTree_OrdersDirectoriesLikeGit(t *testing.T) {
	st := memory.NewStorage()
	tree := buildTree(t, st, map[string]string{"a.b": "1", "a/c": "2", "a-b": "3"})

	var names []string
	for _, e := range tree.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a-b", "a.b", "a"}, names)
}
