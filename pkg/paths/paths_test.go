package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLocations_EnvOverride(t *testing.T) {
	configDir := t.TempDir()
	stateDir := t.TempDir()
	t.Setenv(EnvConfigDir, configDir)
	t.Setenv(EnvStateDir, stateDir)

	assert.Equal(t, configDir, ConfigDir())
	assert.Equal(t, filepath.Join(configDir, "config.yaml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join(configDir, "db.json"), DefaultStorePath())
	assert.Equal(t, filepath.Join(stateDir, "process-torrents.log"), LogFilePath())
}

func TestDefaultLocations_XDG(t *testing.T) {
	t.Setenv(EnvConfigDir, "")
	t.Setenv(EnvStateDir, "")

	assert.Equal(t, AppDirName, filepath.Base(ConfigDir()))
	assert.Equal(t, StateDirName, filepath.Base(StateDir()))
	assert.True(t, filepath.IsAbs(DefaultConfigPath()))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Downloads"), ExpandHome("~/Downloads"))
	assert.Equal(t, "/srv/data", ExpandHome("/srv/data"))
	assert.Equal(t, "relative/path", ExpandHome("relative/path"))
	assert.Equal(t, "~other/x", ExpandHome("~other/x"), "other users' homes are left alone")
}

func TestHasPathPrefix(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   bool
	}{
		{"/data/movies", "/data", true},
		{"/data", "/data", true},
		{"/data/", "/data", true},
		{"/data", "/data/", true},
		{"/database", "/data", false},
		{"/dat", "/data", false},
		{"/anything", "/", true},
		{"/data/movies/a", "/data/movies", true},
		{"/data/../other", "/data", false},
	}

	for _, tt := range tests {
		t.Run(tt.path+"|"+tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPathPrefix(tt.path, tt.prefix))
		})
	}
}
