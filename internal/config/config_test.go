package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "Vitesse Backup", c.CourseName)
	assert.Equal(t, "MyDaemon", c.Daemon.AETitle)
	assert.Equal(t, "10.2.98.5:51402", c.Daemon.Addr())
	assert.Equal(t, 30*time.Second, c.Daemon.Timeout)
	assert.NotEmpty(t, c.Daemon.CallingAE)
	assert.LessOrEqual(t, len(c.Daemon.CallingAE), 16)
	assert.True(t, c.Consolidate.Rename)
	assert.False(t, c.Consolidate.Prune)
	assert.True(t, c.FractionLogs)
	assert.ErrorIs(t, c.Validate(), ErrNoStoragePath)
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
storage_path: /data/archive
staging_dir: /data/staging
fraction_logs: false
selection:
  mode: indices
  indices: "3, 1,3"
daemon:
  host: 127.0.0.1
  port: 11112
  timeout: 5s
  rate_per_second: 2.5
consolidate:
  prune: true
`)
	c, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "/data/archive", c.StoragePath)
	assert.Equal(t, "/data/staging", c.StagingDir)
	assert.Equal(t, "Vitesse Backup", c.CourseName, "default kept")
	assert.False(t, c.FractionLogs)
	assert.Equal(t, "127.0.0.1:11112", c.Daemon.Addr())
	assert.Equal(t, "MyDaemon", c.Daemon.AETitle, "default kept")
	assert.Equal(t, 5*time.Second, c.Daemon.Timeout)
	assert.Equal(t, 2.5, c.Daemon.RatePerSecond)
	assert.True(t, c.Consolidate.Rename)
	assert.True(t, c.Consolidate.Prune)

	idx, err := c.Selection.Resolve(5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, idx)
	assert.Equal(t, "/data/archive", c.LogDirectory())
}

func TestLoadLegacyXML(t *testing.T) {
	p := writeFile(t, "Config.xml", `<?xml version="1.0" encoding="utf-8"?>
<Configuration>
  <StoragePath>D:\Vitesse</StoragePath>
  <VitesseBackupFolderName>Backup 2</VitesseBackupFolderName>
  <SelectionMode>Range</SelectionMode>
  <StartIndex>2</StartIndex>
  <EndIndex>4</EndIndex>
  <Indices></Indices>
</Configuration>`)
	c, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, `D:\Vitesse`, c.StoragePath)
	assert.Equal(t, "Backup 2", c.CourseName)
	idx, err := c.Selection.Resolve(10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, idx)
}

func TestLoadLegacyXML_BadIndex(t *testing.T) {
	p := writeFile(t, "config.xml", `<Configuration><StoragePath>x</StoragePath><StartIndex>two</StartIndex></Configuration>`)
	_, err := Load(p)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name  string
		sel   Selection
		count int
		want  []int
	}{
		{"single in range", Selection{Mode: ModeRange, Start: 8, End: 8}, 10, []int{7}},
		{"clamped both ends", Selection{Mode: ModeRange, Start: -3, End: 99}, 3, []int{0, 1, 2}},
		{"inverted range", Selection{Mode: ModeRange, Start: 5, End: 2}, 10, []int{}},
		{"past the end", Selection{Mode: ModeRange, Start: 6, End: 9}, 5, []int{}},
		{"indices out of range", Selection{Mode: ModeIndices, Indices: "155"}, 5, []int{}},
		{"indices order kept", Selection{Mode: ModeIndices, Indices: "4,2,0,6"}, 5, []int{3, 1}},
		{"indices deduped", Selection{Mode: ModeIndices, Indices: "2, 2,1,2"}, 5, []int{1, 0}},
		{"empty list", Selection{Mode: ModeIndices, Indices: ""}, 5, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.sel.Resolve(tc.count)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := Selection{Mode: "random"}.Resolve(3)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = Selection{Mode: ModeIndices, Indices: "1,x"}.Resolve(3)
	assert.ErrorIs(t, err, ErrBadSelection)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.StoragePath = "/data"
	require.NoError(t, c.Validate())

	bad := c
	bad.Selection.Mode = "both"
	assert.ErrorIs(t, bad.Validate(), ErrUnknownMode)

	bad = c
	bad.CourseName = " "
	assert.ErrorIs(t, bad.Validate(), ErrNoCourseName)

	bad = c
	bad.Daemon.AETitle = "AN_AE_TITLE_THAT_IS_TOO_LONG"
	assert.Error(t, bad.Validate())
}
