// Package tree builds deterministic folder-structure snapshots used for display and
// for course packaging.
package tree

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Node is one entry of a folder-structure snapshot. ID is the POSIX path relative
// to the base passed to Serialize. Content is a string in text mode, []byte in raw
// mode, and nil when it was not read.
type Node struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsBranch bool   `json:"isBranch"`
	Children []Node `json:"children,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// MarshalJSON always emits children on branches, as an empty array for an empty
// directory, and never on leaves.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	out := struct {
		plain
		Children *[]Node `json:"children,omitempty"`
	}{plain: plain(n)}
	if n.IsBranch {
		children := n.Children
		if children == nil {
			children = []Node{}
		}
		out.Children = &children
	}
	return json.Marshal(out)
}

// pathResolver maps virtual paths to real paths inside the sandbox.
type pathResolver interface {
	ResolveTarget(ctx context.Context, virtual string) (string, error)
}

// Serializer walks sandboxed directories.
type Serializer struct {
	sandbox        pathResolver
	textExtensions map[string]struct{}
	logger         *slog.Logger
}

// NewSerializer creates a Serializer. textExtensions lists the extensions (with the
// leading dot) whose content is read as text outside raw mode. Matching is exact,
// so ".MD" is not ".md".
func NewSerializer(sandbox pathResolver, textExtensions []string, logger *slog.Logger) *Serializer {
	if sandbox == nil {
		panic("sandbox is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]struct{}, len(textExtensions))
	for _, ext := range textExtensions {
		exts[ext] = struct{}{}
	}
	return &Serializer{
		sandbox:        sandbox,
		textExtensions: exts,
		logger:         logger.With("component", "tree.Serializer"),
	}
}

// Serialize returns the children of root. IDs are computed relative to base.
// With includeContent false nothing is read; with raw set every file is read as
// bytes; otherwise only text extensions are read, as UTF-8 strings.
// Unreadable directories yield empty branches rather than failing the walk.
func (s *Serializer) Serialize(ctx context.Context, root, base string, includeContent, raw bool) ([]Node, error) {
	fullRoot, err := s.sandbox.ResolveTarget(ctx, root)
	if err != nil {
		return nil, err
	}
	fullBase, err := s.sandbox.ResolveTarget(ctx, base)
	if err != nil {
		return nil, err
	}

	w := walker{s: s, base: fullBase, includeContent: includeContent, raw: raw}
	return w.walk(ctx, fullRoot)
}

type walker struct {
	s              *Serializer
	base           string
	includeContent bool
	raw            bool
}

func (w walker) walk(ctx context.Context, dir string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.s.logger.Warn("reading directory", "dir", dir, "error", err)
		}
		return []Node{}, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	nodes := make([]Node, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == ".git" {
			continue
		}

		itemPath := filepath.Join(dir, name)
		rel, err := filepath.Rel(w.base, itemPath)
		if err != nil {
			rel = itemPath
		}
		node := Node{ID: filepath.ToSlash(rel), Name: name}

		switch {
		case entry.IsDir():
			node.IsBranch = true
			children, err := w.walk(ctx, itemPath)
			if err != nil {
				return nil, err
			}
			node.Children = children
		case entry.Type().IsRegular():
			node.Content = w.content(itemPath, name)
		}

		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (w walker) content(path, name string) any {
	if !w.includeContent {
		return nil
	}
	if !w.raw {
		if _, ok := w.s.textExtensions[filepath.Ext(name)]; !ok {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.s.logger.Warn("reading file", "path", path, "error", err)
		return nil
	}
	if w.raw {
		return data
	}
	return string(data)
}
