package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
)

func TestSampleConfig_LoadsInEveryFormat(t *testing.T) {
	var loaded []*Config
	for _, format := range SampleFormats {
		t.Run(format, func(t *testing.T) {
			data, err := SampleConfig(format)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "config."+format)
			require.NoError(t, os.WriteFile(path, data, 0644))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Len(t, cfg.TorrentDirs, 2)
			assert.Equal(t, "localhost", cfg.TransmissionHost)
			loaded = append(loaded, cfg)
		})
	}

	require.Len(t, loaded, 2)
	assert.Equal(t, loaded[0].TorrentDirs, loaded[1].TorrentDirs)
	assert.Equal(t, loaded[0].MappedRemotePaths, loaded[1].MappedRemotePaths)
}

func TestSampleConfig_TOMLHasHeader(t *testing.T) {
	data, err := SampleConfig("toml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Sample configuration for process-torrents.")
	assert.Contains(t, string(data), "torrent_dirs")
}

func TestSampleConfig_UnknownFormat(t *testing.T) {
	_, err := SampleConfig("ini")
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrInvalidInput))
}
