package gitops

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cyclone1070/coursevfs/internal/sandbox"
	"github.com/stretchr/testify/require"
)

var testAuthor = Identity{Name: "Ada Lovelace", Email: "ada@example.com"}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	sb := sandbox.New(sandbox.Context{BaseDir: t.TempDir(), Mode: sandbox.ModeTest})
	require.NoError(t, sb.Initialize())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(sb, Options{Logger: logger}), sb.Base()
}

func writeFile(t *testing.T, base, rel, content string) {
	t.Helper()
	p := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, base, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func fileExists(base, rel string) bool {
	_, err := os.Lstat(filepath.Join(base, filepath.FromSlash(rel)))
	return err == nil
}

// commitFiles writes, stages and commits files inside repo and returns the commit id.
func commitFiles(t *testing.T, svc *Service, base, repo string, files map[string]string, message string) string {
	t.Helper()
	ctx := context.Background()
	for rel, content := range files {
		writeFile(t, filepath.Join(base, repo), rel, content)
		require.NoError(t, svc.Add(ctx, repo, rel))
	}
	hash, err := svc.Commit(ctx, repo, message, testAuthor)
	require.NoError(t, err)
	return hash
}

// initRepo creates repo on branch main with an initial commit of files.
func initRepo(t *testing.T, svc *Service, base, repo string, files map[string]string) string {
	t.Helper()
	require.NoError(t, svc.Init(context.Background(), repo, "main"))
	return commitFiles(t, svc, base, repo, files, "initial")
}

func statusOf(t *testing.T, rows []StatusRow, path string) (StatusRow, bool) {
	t.Helper()
	for _, r := range rows {
		if r.Path == path {
			return r, true
		}
	}
	return StatusRow{}, false
}
