package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/vitesse-sync/internal/config"
)

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("3-10")
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	assert.Equal(t, 10, end)

	start, end, err = parseRange(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, 7, start)
	assert.Equal(t, 7, end)

	_, _, err = parseRange("a-b")
	assert.Error(t, err)
}

func TestRunConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_path: /archive\ncourse_name: From File\n"), 0o644))
	configPath = path
	t.Cleanup(func() { configPath = "" })

	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	addDaemonFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--course", "Override",
		"--indices", "2,4",
		"--host", "10.0.0.9",
		"--port", "104",
		"--called-ae", "ARCHIVE",
		"--timeout", "5s",
	}))

	cfg, err := runConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/archive", cfg.StoragePath)
	assert.Equal(t, "Override", cfg.CourseName)
	assert.Equal(t, config.Selection{Mode: config.ModeIndices, Indices: "2,4"}, cfg.Selection)
	assert.Equal(t, "10.0.0.9:104", cfg.Daemon.Addr())
	assert.Equal(t, "ARCHIVE", cfg.Daemon.AETitle)
	assert.Equal(t, 5*time.Second, cfg.Daemon.Timeout)
}

func TestRunConfig_MissingExplicitFile(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "absent.yaml")
	t.Cleanup(func() { configPath = "" })

	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	_, err := runConfig(cmd)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolvePath(t *testing.T) {
	t.Setenv("VITESSE_TEST_PATH", "/from/env")
	assert.Equal(t, "/from/flag", resolvePath("/from/flag", "VITESSE_TEST_PATH", "x.db"))
	assert.Equal(t, "/from/env", resolvePath("", "VITESSE_TEST_PATH", "x.db"))
	assert.Equal(t, "x.db", filepath.Base(resolvePath("", "VITESSE_UNSET_PATH", "x.db")))
}
