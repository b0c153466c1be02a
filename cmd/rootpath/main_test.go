package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/rootpath/internal/config"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	got := findRepoRoot(root)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	got := findRepoRoot(deep)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findRepoRoot(dir)
	assert.Equal(t, dir, got)
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
}

func TestParseIntArg(t *testing.T) {
	t.Parallel()
	n, err := parseIntArg("12", "line")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseIntArg("x", "line")
	assert.ErrorContains(t, err, `invalid line "x"`)

	_, err = parseIntArg("-1", "col")
	assert.ErrorContains(t, err, "must be non-negative")
}

func TestSplitLanguages(t *testing.T) {
	t.Parallel()
	assert.Nil(t, splitLanguages(""))
	assert.Equal(t, []string{"go", "python"}, splitLanguages(" go, ,python "))
}

func TestResolveDBPath(t *testing.T) {
	resetFlags(t)
	root := t.TempDir()

	assert.Equal(t, filepath.Join(root, ".rootpath", "index.db"), resolveDBPath(root, nil))
	assert.Equal(t, filepath.Join(root, ".rootpath", "index.db"), resolveDBPath(root, config.DefaultConfig()))

	cfg := config.DefaultConfig()
	cfg.Index.DBPath = "custom/idx.db"
	assert.Equal(t, filepath.Join(root, "custom", "idx.db"), resolveDBPath(root, cfg))

	flagDB = "flag.db"
	assert.Equal(t, filepath.Join(root, "flag.db"), resolveDBPath(root, cfg), "--db wins over config")

	flagDB = "/abs/flag.db"
	assert.Equal(t, "/abs/flag.db", resolveDBPath(root, cfg))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggingConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestFormatSnippetsText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatSnippetsText(&buf, []CLISnippet{
		{File: "/a.go", Type: "code", Content: "type A struct{}"},
		{File: "/b.go", Type: "code", Content: "type B int\n"},
	})
	assert.Equal(t, "--- /a.go\ntype A struct{}\n--- /b.go\ntype B int\n", buf.String())

	buf.Reset()
	formatSnippetsText(&buf, nil)
	assert.Equal(t, "No context.\n", buf.String())
}

func TestFormatIndexSummaryText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatIndexSummaryText(&buf, CLIIndexSummary{Root: "/r", Database: "/r/db", FileCount: 3, DurationMS: 7})
	out := buf.String()
	assert.Contains(t, out, "Files:")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "7ms")
}

func TestFormatReferencesText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatReferencesText(&buf, []CLIReference{
		{Name: "Config", Line: 2, Col: 13, Context: "type", Bindings: []CLIBinding{
			{File: "/r/utils.go", Line: 2, Symbol: "Config", Kind: "global", Confidence: 0.5},
		}},
		{Name: "Missing", Line: 4, Col: 1, Context: "type"},
	})
	out := buf.String()
	assert.Contains(t, out, "/r/utils.go:2")
	assert.Contains(t, out, "global")
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "Missing")

	buf.Reset()
	formatReferencesText(&buf, nil)
	assert.Equal(t, "No references.\n", buf.String())
}
