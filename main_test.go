package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "elmah.yaml")
	cfg := `
log:
  level: error
store:
  type: xmlfile
  applicationName: Shop
  logPath: ` + filepath.Join(dir, "errors") + `
applications:
  - applicationName: Wiki
    type: sqlite
    connectionString: ` + filepath.Join(dir, "errors.db") + `
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands_LogListShowExport(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "log", "--type", "Timeout", "--message", "upstream timed out", "--status", "504")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 36)

	out, err = run(t, "--config", cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 error(s)")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "upstream timed out")

	out, err = run(t, "--config", cfg, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, `application="Shop"`)
	assert.Contains(t, out, `statusCode="504"`)

	out, err = run(t, "--config", cfg, "show", "--details", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Timeout")

	out, err = run(t, "--config", cfg, "export", "--base-url", "http://errors.local")
	require.NoError(t, err)
	assert.Contains(t, out, "http://errors.local/api/errors/"+id+"/xml")

	out, err = run(t, "--config", cfg, "list", "--app", "Wiki")
	require.NoError(t, err)
	assert.Contains(t, out, "0 error(s)")
}

func TestCommands_LogFromXML(t *testing.T) {
	cfg := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "error.xml")
	require.NoError(t, os.WriteFile(doc, []byte(`<error type="IOError" message="disk full" time="2024-01-02T03:04:05.0000000Z"></error>`), 0o644))

	out, err := run(t, "--config", cfg, "log", "--app", "Wiki", "--file", doc)
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = run(t, "--config", cfg, "show", "--app", "Wiki", id)
	require.NoError(t, err)
	assert.Contains(t, out, `message="disk full"`)

	_, err = run(t, "--config", cfg, "log")
	assert.Error(t, err)
}

func TestCommands_Purge(t *testing.T) {
	cfg := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "old.xml")
	require.NoError(t, os.WriteFile(doc, []byte(`<error type="Old" message="stale" time="2001-01-01T00:00:00.0000000Z"></error>`), 0o644))

	for _, app := range []string{"Shop", "Wiki"} {
		_, err := run(t, "--config", cfg, "log", "--app", app, "--file", doc)
		require.NoError(t, err)
	}

	_, err := run(t, "--config", cfg, "purge")
	assert.Error(t, err, "--older-than is required")

	out, err := run(t, "--config", cfg, "purge", "--older-than", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Shop: 1 removed")
	assert.Contains(t, out, "Wiki: 1 removed")
}

func TestServe_PrintConfig(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "--config", cfg, "serve", "--print-config", "--addr", "0.0.0.0:9999")
	require.NoError(t, err)
	assert.Contains(t, out, "0.0.0.0:9999")
	assert.Contains(t, out, "xmlfile")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
}
