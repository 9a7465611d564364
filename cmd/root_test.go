package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, logPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hourswatch.yaml")
	contents := fmt.Sprintf(`
renderer:
  mode: noop
  timeout: 1s
store:
  backend: local
  local_path: %q
logging:
  development: false
`, logPath)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSnapshotsCommand_PrintsLogVerbatim(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "hours_log.jsonl")
	raw := `{"timestamp":"2024-05-01T12:00:00Z","hours_pending":7,"hours_approved":42}` + "\n"
	require.NoError(t, os.WriteFile(logPath, []byte(raw), 0o600))

	out, err := execute(t, "snapshots", "--config", writeConfig(t, logPath))
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestSnapshotsCommand_EmptyLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "hours_log.jsonl")

	out, err := execute(t, "snapshots", "--config", writeConfig(t, logPath))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoFileExists(t, logPath)
}

func TestPollOnce_DisabledRendererFails(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "hours_log.jsonl")

	_, err := execute(t, "poll", "--once", "--config", writeConfig(t, logPath))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer disabled")
	assert.NoFileExists(t, logPath)
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "snapshots", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestResolveRuntime_NotInitialized(t *testing.T) {
	_, err := resolveRuntime(context.Background())
	require.Error(t, err)
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "poll", "snapshots"})
}
