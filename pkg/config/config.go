package config

import (
	"path/filepath"
	"time"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/paths"
)

// Config is the complete runtime configuration.
type Config struct {
	TransmissionHost     string `koanf:"transmission_host"`
	TransmissionPort     int    `koanf:"transmission_port"`
	TransmissionUsername string `koanf:"transmission_username"`
	TransmissionPassword string `koanf:"transmission_password"`
	TransmissionRPCPath  string `koanf:"transmission_rpc_path"`

	// TransmissionTimeout bounds each RPC request, e.g. "30s".
	TransmissionTimeout time.Duration `koanf:"transmission_timeout"`

	// DB is the processed record store file.
	DB string `koanf:"db"`

	// MappedRemotePaths maps remote path prefixes to local ones.
	MappedRemotePaths map[string]string `koanf:"mapped_remote_paths"`

	// TorrentDirs are checked in order; the first match wins.
	TorrentDirs []DirectoryRule `koanf:"torrent_dirs"`

	MetricsFile string `koanf:"metrics_file"`
}

// DirectoryRule describes one watched download directory. Nil thresholds
// are unset and never hold an item back from removal.
type DirectoryRule struct {
	DownloadDir       string   `koanf:"download_dir"`
	PostProcessingDir string   `koanf:"post_processing_dir"`
	Ratio             *float64 `koanf:"ratio"`
	SeedDays          *float64 `koanf:"seed_days"`
}

// Mapper builds the path mapper for MappedRemotePaths.
func (c *Config) Mapper() *paths.Mapper {
	return paths.NewMapper(paths.PairsFromMap(c.MappedRemotePaths))
}

// DownloadDirs returns every rule's download directory in rule order.
func (c *Config) DownloadDirs() []string {
	dirs := make([]string, 0, len(c.TorrentDirs))
	for _, rule := range c.TorrentDirs {
		dirs = append(dirs, rule.DownloadDir)
	}
	return dirs
}

// Validate checks the configuration for values the run cannot work with.
func (c *Config) Validate() error {
	if c.TransmissionHost == "" {
		return perrors.New(perrors.ErrConfigValid, "transmission_host must not be empty")
	}
	if c.TransmissionPort < 1 || c.TransmissionPort > 65535 {
		return perrors.Newf(perrors.ErrConfigValid, "transmission_port %d is out of range", c.TransmissionPort)
	}
	if c.TransmissionTimeout < 0 {
		return perrors.Newf(perrors.ErrConfigValid, "transmission_timeout %s must not be negative", c.TransmissionTimeout)
	}
	if c.DB == "" {
		return perrors.New(perrors.ErrConfigValid, "db must not be empty")
	}
	if len(c.TorrentDirs) == 0 {
		return perrors.New(perrors.ErrConfigValid, "at least one torrent_dirs entry is required")
	}

	for remote, local := range c.MappedRemotePaths {
		if remote == "" || local == "" {
			return perrors.Newf(perrors.ErrConfigValid, "mapped_remote_paths entry %q: %q must map a path to a path", remote, local)
		}
	}

	for i, rule := range c.TorrentDirs {
		if rule.DownloadDir == "" {
			return perrors.Newf(perrors.ErrConfigValid, "torrent_dirs[%d]: download_dir is required", i)
		}
		if rule.PostProcessingDir == "" {
			return perrors.Newf(perrors.ErrConfigValid, "torrent_dirs[%d]: post_processing_dir is required", i)
		}
		if !filepath.IsAbs(rule.DownloadDir) {
			return perrors.Newf(perrors.ErrConfigValid, "torrent_dirs[%d]: download_dir %q must be absolute", i, rule.DownloadDir)
		}
		if !filepath.IsAbs(rule.PostProcessingDir) {
			return perrors.Newf(perrors.ErrConfigValid, "torrent_dirs[%d]: post_processing_dir %q must be absolute", i, rule.PostProcessingDir)
		}
		if rule.Ratio != nil && *rule.Ratio < 0 {
			return perrors.Newf(perrors.ErrConfigValid, "torrent_dirs[%d]: ratio must not be negative", i)
		}
		if rule.SeedDays != nil && *rule.SeedDays < 0 {
			return perrors.Newf(perrors.ErrConfigValid, "torrent_dirs[%d]: seed_days must not be negative", i)
		}
	}
	return nil
}
