// Package testutil builds throwaway docseal projects for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/clock"
	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/logging"
)

// Epoch is the start time of every fixture clock.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// DefaultFiles satisfies the default required set plus one tracked file.
var DefaultFiles = map[string]string{
	"README.md":        "# Handbook\n",
	"docs/API.md":      "# API\n",
	"docs/SECURITY.md": "# Security\n",
	"docs/guide.md":    "Read me first.\n",
}

// Fixture is an initialized project with a fake clock.
type Fixture struct {
	T       *testing.T
	Project *repo.Project
	Clock   *clock.FakeClock
}

// NewProject initializes a project in a temp dir, writes files and applies
// mutate to the config before opening it. files == nil means DefaultFiles.
func NewProject(t *testing.T, files map[string]string, mutate func(*config.Config)) *Fixture {
	t.Helper()
	root := t.TempDir()
	if files == nil {
		files = DefaultFiles
	}
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}

	clk := clock.Fake(Epoch)
	clk.AutoAdvance(time.Millisecond)
	opts := []repo.Option{repo.WithClock(clk), repo.WithLogger(logging.Discard())}

	p, err := repo.Init(root, opts...)
	require.NoError(t, err)
	if mutate != nil {
		cfg := config.Default()
		mutate(cfg)
		require.NoError(t, config.Save(root, cfg))
		p, err = repo.Open(root, opts...)
		require.NoError(t, err)
	}
	return &Fixture{T: t, Project: p, Clock: clk}
}

// Root returns the project root.
func (f *Fixture) Root() string { return f.Project.Root }

// Write creates or replaces a project file.
func (f *Fixture) Write(rel, content string) {
	f.T.Helper()
	WriteFile(f.T, f.Project.Root, rel, content)
}

// Read returns a project file's content.
func (f *Fixture) Read(rel string) string {
	f.T.Helper()
	data, err := os.ReadFile(f.Project.Abs(rel))
	require.NoError(f.T, err)
	return string(data)
}

// Remove deletes a project file.
func (f *Fixture) Remove(rel string) {
	f.T.Helper()
	require.NoError(f.T, os.Remove(f.Project.Abs(rel)))
}

// Reopen reloads the project from disk with the same clock.
func (f *Fixture) Reopen() *repo.Project {
	f.T.Helper()
	p, err := repo.Open(f.Project.Root, repo.WithClock(f.Clock), repo.WithLogger(logging.Discard()))
	require.NoError(f.T, err)
	f.Project = p
	return p
}

// WriteFile writes content at root/rel, creating parents.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
