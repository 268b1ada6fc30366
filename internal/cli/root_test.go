package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docseal/docseal/pkg/errclass"
)

func executeCommand(root *cobra.Command, args ...string) (stdout string, err error) {
	resetFlags()

	// Capture os.Stdout since the CLI prints with fmt.Printf directly.
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()

	root.SetArgs(args)
	err = root.Execute()

	w.Close()
	os.Stdout = oldStdout
	return <-done, err
}

// resetFlags restores every flag variable; cobra keeps parsed values on
// the package-level commands between executions.
func resetFlags() {
	jsonOutput, noColor, logLevel, projectDir = false, true, "error", ""
	validateFast, lockUpdate, statusFast, doctorStrict, diffStatOnly = false, false, false, false, false
	snapshotTags = []string{}
	historyLimit, historyNoteFilter, historyTagFilter = 0, "", ""
	verifyDeep, pruneDryRun, restoreTarget, reportFiles = false, false, "", false
	auditLimit, auditReportDays = 20, 30
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupProject initializes a project with the default required files.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# Handbook\n")
	writeFile(t, dir, "docs/API.md", "# API\n")
	writeFile(t, dir, "docs/SECURITY.md", "# Security\n")
	writeFile(t, dir, "docs/guide.md", "Read me first.\n")

	stdout, err := executeCommand(rootCmd, "-C", dir, "init")
	require.NoError(t, err)
	require.Contains(t, stdout, "Initialized docseal project")
	return dir
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	stdout, err := executeCommand(rootCmd, append([]string{"-C", dir, "--no-color"}, args...)...)
	require.NoError(t, err, "docseal %v", args)
	return stdout
}

func TestRootCommand_Help(t *testing.T) {
	stdout, err := executeCommand(rootCmd, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Merkle-rooted lock")
}

func TestInit_Twice(t *testing.T) {
	dir := setupProject(t)
	_, err := executeCommand(rootCmd, "-C", dir, "init")
	assert.ErrorIs(t, err, errclass.ErrStateInvalid)
}

func TestNotInProject(t *testing.T) {
	_, err := executeCommand(rootCmd, "-C", t.TempDir(), "status")
	require.ErrorIs(t, err, errclass.ErrNotFound)
	assert.Equal(t, errclass.ExitFailure, errclass.ExitCode(err))
}

func TestLifecycle(t *testing.T) {
	dir := setupProject(t)

	assert.Contains(t, run(t, dir, "status"), "UNLOCKED")
	assert.Contains(t, run(t, dir, "lock"), "Locked 4 files")
	assert.Contains(t, run(t, dir, "validate"), "Tree matches")
	assert.Contains(t, run(t, dir, "status"), "LOCKED")
	assert.Contains(t, run(t, dir, "report"), "match")
	assert.Contains(t, run(t, dir, "report", "--files"), "docs/guide.md")

	writeFile(t, dir, "docs/guide.md", "Edited.\n")
	stdout, err := executeCommand(rootCmd, "-C", dir, "validate")
	require.Error(t, err)
	assert.Equal(t, errclass.ExitMismatch, errclass.ExitCode(err))
	assert.Contains(t, stdout, "content_mismatch docs/guide.md")

	stdout, err = executeCommand(rootCmd, "-C", dir, "heal")
	require.Error(t, err)
	assert.Equal(t, errclass.ExitMismatch, errclass.ExitCode(err))
	assert.Contains(t, stdout, "Unresolved")

	assert.Contains(t, run(t, dir, "diff"), "~ docs/guide.md")

	_, err = executeCommand(rootCmd, "-C", dir, "lock")
	assert.ErrorIs(t, err, errclass.ErrStateInvalid)
	run(t, dir, "lock", "--update")
	assert.Contains(t, run(t, dir, "status"), "LOCKED")

	assert.Contains(t, run(t, dir, "audit", "verify"), "3 entries")
	assert.Contains(t, run(t, dir, "audit", "log", "-n", "1"), "lock")
	assert.Contains(t, run(t, dir, "audit", "report"), "heal")
}

func TestValidate_JSON(t *testing.T) {
	dir := setupProject(t)
	run(t, dir, "lock")
	require.NoError(t, os.Remove(filepath.Join(dir, "docs", "API.md")))

	stdout, err := executeCommand(rootCmd, "-C", dir, "--json", "validate")
	require.ErrorIs(t, err, errclass.ErrValidationMismatch)

	var out struct {
		Valid         bool `json:"valid"`
		Discrepancies []struct {
			Kind string `json:"kind"`
			Path string `json:"path"`
		} `json:"discrepancies"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.False(t, out.Valid)
	require.Len(t, out.Discrepancies, 1)
	assert.Equal(t, "required_missing", out.Discrepancies[0].Kind)
	assert.Equal(t, "docs/API.md", out.Discrepancies[0].Path)

	// The regenerated file differs from the approved one, so heal still
	// exits with a mismatch after recreating it.
	stdout, err = executeCommand(rootCmd, "-C", dir, "heal")
	assert.Equal(t, errclass.ExitMismatch, errclass.ExitCode(err))
	assert.Contains(t, stdout, "regenerated docs/API.md")
	assert.Contains(t, stdout, "content_mismatch docs/API.md")
	data, err := os.ReadFile(filepath.Join(dir, "docs", "API.md"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestSnapshotRestore(t *testing.T) {
	dir := setupProject(t)
	run(t, dir, "lock")

	assert.Contains(t, run(t, dir, "snapshot", "approved handbook", "--tag", "v1"), "Created snapshot")
	list := run(t, dir, "snapshot", "list")
	assert.Contains(t, list, "approved handbook")
	assert.Contains(t, list, "v1")
	assert.Contains(t, run(t, dir, "snapshot", "verify", "--deep"), "OK")

	writeFile(t, dir, "docs/guide.md", "Broken.\n")
	assert.Contains(t, run(t, dir, "restore", "v1"), "Restored snapshot")
	assert.Contains(t, run(t, dir, "validate"), "Tree matches")

	_, err := executeCommand(rootCmd, "-C", dir, "restore", "no-such-snapshot")
	assert.ErrorIs(t, err, errclass.ErrNotFound)

	assert.Contains(t, run(t, dir, "snapshot", "prune", "--dry-run"), "keep")
}

func TestRestore_CompletesSnapshots(t *testing.T) {
	dir := setupProject(t)
	run(t, dir, "lock")
	run(t, dir, "snapshot", "approved handbook", "--tag", "v1")

	all, err := executeCommand(rootCmd, "__complete", "restore", "-C", dir, "")
	require.NoError(t, err)
	assert.Contains(t, all, "\tapproved handbook")
	assert.Contains(t, all, "v1\ttag")

	tagged, err := executeCommand(rootCmd, "__complete", "snapshot", "verify", "-C", dir, "v")
	require.NoError(t, err)
	assert.Contains(t, tagged, "v1\ttag")
	assert.NotContains(t, tagged, "approved handbook")
}

func TestCompletion_Help(t *testing.T) {
	stdout, err := executeCommand(rootCmd, "completion", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "docseal restore")
}

func TestSign_WithoutSigner(t *testing.T) {
	dir := setupProject(t)
	run(t, dir, "lock")
	_, err := executeCommand(rootCmd, "-C", dir, "sign")
	assert.ErrorIs(t, err, errclass.ErrConfigMalformed)
}

func TestConfigGetSet(t *testing.T) {
	dir := setupProject(t)
	assert.Equal(t, "sha256\n", run(t, dir, "config", "get", "algorithm"))
	run(t, dir, "config", "set", "compression.codec", "lz4")
	assert.Equal(t, "lz4\n", run(t, dir, "config", "get", "compression.codec"))
	assert.Contains(t, run(t, dir, "config", "show"), "codec: lz4")

	_, err := executeCommand(rootCmd, "-C", dir, "config", "set", "compression.codec", "rar")
	assert.ErrorIs(t, err, errclass.ErrConfigMalformed)
}

func TestDoctor(t *testing.T) {
	dir := setupProject(t)
	run(t, dir, "lock")
	assert.Contains(t, run(t, dir, "doctor", "--strict"), "healthy")
}

func TestTemplateList(t *testing.T) {
	dir := setupProject(t)
	stdout := run(t, dir, "template", "list")
	assert.Contains(t, stdout, "docs/SECURITY.md <- security")
	assert.Contains(t, run(t, dir, "template", "show", "readme"), "{project}")
}

func TestCompletion(t *testing.T) {
	stdout, err := executeCommand(rootCmd, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "docseal")
}
