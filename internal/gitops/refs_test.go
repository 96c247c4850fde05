package gitops

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRef(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	first := initRepo(t, svc, base, "repo", map[string]string{"a.txt": "a"})
	second := commitFiles(t, svc, base, "repo", map[string]string{"a.txt": "b"}, "second")

	require.NoError(t, svc.WriteRef(ctx, "repo", "feature", first, false))

	err := svc.WriteRef(ctx, "repo", "feature", second, false)
	assert.ErrorIs(t, err, ErrRefExists)

	require.NoError(t, svc.WriteRef(ctx, "repo", "feature", second, true))
	got, err := svc.ResolveRef(ctx, "repo", "feature", false)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	branches, err := svc.ListBranches(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"feature", "main"}, branches)
}

func TestWriteRef_InvalidHash(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	initRepo(t, svc, base, "repo", map[string]string{"a.txt": "a"})

	err := svc.WriteRef(ctx, "repo", "feature", "not-a-hash", false)
	assert.ErrorIs(t, err, ErrInvalidHash)

	err = svc.WriteRef(ctx, "repo", "feature", strings.Repeat("ab", 20), false)
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestResolveRef(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	head := initRepo(t, svc, base, "repo", map[string]string{"a.txt": "a"})

	h, err := svc.open(ctx, "repo")
	require.NoError(t, err)
	remoteRef := plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "main"), plumbing.NewHash(head))
	require.NoError(t, h.repo.Storer.SetReference(remoteRef))

	for _, ref := range []string{"HEAD", "main", "refs/heads/main"} {
		got, err := svc.ResolveRef(ctx, "repo", ref, false)
		require.NoError(t, err, ref)
		assert.Equal(t, head, got, ref)
	}

	got, err := svc.ResolveRef(ctx, "repo", "main", true)
	require.NoError(t, err)
	assert.Equal(t, head, got)

	_, err = svc.ResolveRef(ctx, "repo", "nope", false)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
	_, err = svc.ResolveRef(ctx, "repo", "nope", true)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestCheckout_LocalBranch(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	repo := filepath.Join(base, "repo")
	first := initRepo(t, svc, base, "repo", map[string]string{"a.txt": "v1"})
	commitFiles(t, svc, base, "repo", map[string]string{"a.txt": "v2"}, "second")
	require.NoError(t, svc.WriteRef(ctx, "repo", "old", first, false))

	require.NoError(t, svc.Checkout(ctx, "repo", "old"))

	branch, err := svc.CurrentBranch(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, "old", branch)
	assert.Equal(t, "v1", readFile(t, repo, "a.txt"))
}

func TestCheckout_CreatesBranchFromRemote(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	head := initRepo(t, svc, base, "repo", map[string]string{"a.txt": "a"})

	h, err := svc.open(ctx, "repo")
	require.NoError(t, err)
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "review"), plumbing.NewHash(head))
	require.NoError(t, h.repo.Storer.SetReference(ref))

	require.NoError(t, svc.Checkout(ctx, "repo", "review"))

	branch, err := svc.CurrentBranch(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, "review", branch)
	got, err := svc.ResolveRef(ctx, "repo", "review", false)
	require.NoError(t, err)
	assert.Equal(t, head, got)

	remote, found, err := svc.GetConfig(ctx, "repo", "branch.review.remote")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "origin", remote)
}

func TestCheckout_UnknownBranch(t *testing.T) {
	svc, base := newTestService(t)
	ctx := context.Background()
	initRepo(t, svc, base, "repo", map[string]string{"a.txt": "a"})

	err := svc.Checkout(ctx, "repo", "ghost")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}
