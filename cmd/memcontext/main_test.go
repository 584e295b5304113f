package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func cliWorkspace(t *testing.T) []string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "MEMORY.md"), []byte("Standup moved to ten thirty.\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "memory"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "memory", "a.md"), []byte("Buy more coffee filters.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "memory", "b.md"), []byte("Renew the passport in spring.\n"), 0o644))

	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[log]\nlevel = \"error\"\n"), 0o600))

	return []string{
		"--config", configPath,
		"--workspace", root,
		"--db", filepath.Join(t.TempDir(), "memory.db"),
		"--provider", "none",
	}
}

func TestCLI_SyncSearchStatus(t *testing.T) {
	flags := cliWorkspace(t)

	out, err := runCLI(t, append([]string{"sync"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "outcome: completed")
	assert.Contains(t, out, "indexed: 3")

	out, err = runCLI(t, append([]string{"search", "standup", "--min", "0"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "MEMORY.md:1-2")
	assert.Contains(t, out, "Standup moved")

	out, err = runCLI(t, append([]string{"status"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "documents:   3")
	assert.Contains(t, out, "lexical:     fts5")
}

func TestCLI_SearchJSON(t *testing.T) {
	flags := cliWorkspace(t)

	out, err := runCLI(t, append([]string{"search", "passport", "--min", "0", "--json"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"Path": "memory/b.md"`)
	assert.Contains(t, out, `"LexicalLegUsed": true`)
}

func TestCLI_InvalidProvider(t *testing.T) {
	flags := cliWorkspace(t)
	flags[len(flags)-1] = "cohere"

	_, err := runCLI(t, append([]string{"status"}, flags...)...)
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "SQLite Driver:")
}
