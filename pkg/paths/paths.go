package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
)

// Environment variable names
const (
	// EnvConfigDir overrides the XDG config directory for process-torrents
	EnvConfigDir = "PROCESS_TORRENTS_CONFIG_DIR"

	// EnvStateDir overrides the XDG state directory for process-torrents
	EnvStateDir = "PROCESS_TORRENTS_STATE_DIR"
)

// Default directories and files
const (
	// AppDirName is the directory name used under the XDG config home.
	// It matches the location the tool has always read its config from.
	AppDirName = "transmission-process-torrents"

	// StateDirName is the directory name used under the XDG state home
	StateDirName = "process-torrents"

	// ConfigFileName is the default configuration file name
	ConfigFileName = "config.yaml"

	// StoreFileName is the default processed record store file name
	StoreFileName = "db.json"

	// LogFileName is the name of the log file
	LogFileName = "process-torrents.log"
)

// ConfigDir returns the directory holding the config file and the store.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.ConfigHome, AppDirName)
}

// StateDir returns the directory holding the log file.
func StateDir() string {
	if dir := os.Getenv(EnvStateDir); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(xdg.StateHome, StateDirName)
}

// DefaultConfigPath returns the config file location used when none is given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// DefaultStorePath returns the processed record store location used when the
// config does not set one.
func DefaultStorePath() string {
	return filepath.Join(ConfigDir(), StoreFileName)
}

// LogFilePath returns the path of the log file.
func LogFilePath() string {
	return filepath.Join(StateDir(), LogFileName)
}

// ExpandHome expands a leading ~ to the user's home directory. Paths that
// cannot be expanded are returned unchanged.
func ExpandHome(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// HasPathPrefix reports whether path equals prefix or lies beneath it.
// Matching is done on whole path components, so "/data" is a prefix of
// "/data/movies" but not of "/database".
func HasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	if prefix == string(filepath.Separator) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
