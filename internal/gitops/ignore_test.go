package gitops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreMatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n/dist\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lessons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lessons", ".gitignore"), []byte("draft-*\n"), 0o644))

	m, err := newIgnoreMatcher(osfs.New(root))
	require.NoError(t, err)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"debug.log", false, true},
		{"lessons/run.log", false, true},
		{"dist", true, true},
		{"lessons/dist", true, false},
		{"lessons/draft-1.md", false, true},
		{"draft-1.md", false, false},
		{"lessons/intro.md", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ShouldIgnore(tt.path, tt.isDir))
		})
	}
}

func TestIgnoreMatcher_NoGitignore(t *testing.T) {
	m, err := newIgnoreMatcher(osfs.New(t.TempDir()))
	require.NoError(t, err)
	assert.False(t, m.ShouldIgnore("anything.log", false))
}

func TestIgnoreMatcher_NilReceiver(t *testing.T) {
	var m *ignoreMatcher
	assert.False(t, m.ShouldIgnore("a.log", false))
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitPath("./a//b/c/"))
	assert.Equal(t, []string{}, splitPath(""))
}
