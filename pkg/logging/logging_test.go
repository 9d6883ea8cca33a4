package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		quiet     bool
		wantLevel zerolog.Level
	}{
		{"default shows actions", 0, false, zerolog.InfoLevel},
		{"verbose shows item detail", 1, false, zerolog.DebugLevel},
		{"very verbose traces", 2, false, zerolog.TraceLevel},
		{"high verbosity defaults to trace", 5, false, zerolog.TraceLevel},
		{"quiet keeps warnings", 0, true, zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLevel, LevelFor(tt.verbosity, tt.quiet))
		})
	}
}

func TestSetupLogger_WritesConsoleAndFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logFile := filepath.Join(t.TempDir(), "state", "process-torrents.log")
	var console bytes.Buffer

	SetupLogger(Options{Verbosity: 0, LogFile: logFile, Console: &console, RunID: "run-1"})
	log.Info().Str("path", "/downloads/a").Msg("Processing torrent")
	log.Debug().Msg("hidden at default verbosity")

	assert.Contains(t, console.String(), "Processing torrent")
	assert.NotContains(t, console.String(), "hidden at default verbosity")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-1"`)
	assert.Contains(t, string(data), `"path":"/downloads/a"`)
}

func TestSetupLogger_QuietDropsActions(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var console bytes.Buffer
	SetupLogger(Options{Quiet: true, Console: &console})

	log.Info().Msg("Processing torrent")
	log.Warn().Msg("hardlink: already exists")

	assert.NotContains(t, console.String(), "Processing torrent")
	assert.Contains(t, console.String(), "already exists")
}

func TestSetupLogger_UnwritableLogFileFallsBack(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	var console bytes.Buffer
	SetupLogger(Options{LogFile: filepath.Join(blocker, "x.log"), Console: &console})

	assert.Contains(t, console.String(), "Failed to create log file")
}

func TestGetLogger(t *testing.T) {
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := GetLogger("hardlink")
	logger.Info().Msg("test message")

	assert.Contains(t, buf.String(), `"component":"hardlink"`)
}

func TestLogOperationStart(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	done := LogOperationStart(logger, "orphan-sweep")
	done()

	assert.Contains(t, buf.String(), "Operation started")
	assert.Contains(t, buf.String(), "Operation completed")
	assert.Contains(t, buf.String(), "orphan-sweep")
}
