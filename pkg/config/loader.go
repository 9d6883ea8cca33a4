package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/paths"
)

const (
	// EnvPrefix is the prefix of environment variables overriding settings,
	// e.g. PROCESS_TORRENTS_TRANSMISSION_HOST.
	EnvPrefix = "PROCESS_TORRENTS_"

	// keyDelim separates nested koanf keys. Mapping keys are paths, so the
	// usual "." and "/" cannot be used.
	keyDelim = "::"
)

// envKeys are the settings that may be overridden from the environment.
var envKeys = map[string]bool{
	"transmission_host":     true,
	"transmission_port":     true,
	"transmission_username": true,
	"transmission_password": true,
	"transmission_rpc_path": true,
	"transmission_timeout":  true,
	"db":                    true,
	"metrics_file":          true,
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Defaults returns the built-in settings every config file is layered on.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"transmission_host":     "localhost",
		"transmission_port":     9091,
		"transmission_rpc_path": "/transmission/rpc",
		"transmission_timeout":  "30s",
		"db":                    paths.DefaultStorePath(),
	}
}

// Load reads the config file at path, or the default location when path is
// empty, and returns the validated configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = paths.DefaultConfigPath()
	}
	path = paths.ExpandHome(path)

	k := koanf.New(keyDelim)

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), keyDelim), nil); err != nil {
		return nil, perrors.Wrap(err, perrors.ErrInternal, "failed to load default config")
	}

	// 2. Config file
	data, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrConfigLoad, "Unable to load config: %s", path).
			WithDetail("path", path)
	}
	if err := k.Load(&rawBytesProvider{bytes: data}, parserFor(path)); err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrConfigParse, "Unable to parse config: %s", path).
			WithDetail("path", path)
	}

	// 3. Environment
	err = k.Load(env.Provider(EnvPrefix, keyDelim, func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if !envKeys[key] {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrConfigLoad, "failed to load environment overrides")
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrConfigParse, "Unable to decode config: %s", path).
			WithDetail("path", path)
	}

	// 5. Post-process
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("path", path).
		Int("torrent_dirs", len(cfg.TorrentDirs)).
		Int("mapped_remote_paths", len(cfg.MappedRemotePaths)).
		Msg("Configuration loaded")
	return &cfg, nil
}

// parserFor picks the parser from the file extension. Anything that is not
// TOML is read as YAML, the format the tool has always used.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser()
	default:
		return yaml.Parser()
	}
}

// normalize expands ~ in local paths and drops zero thresholds, which are
// treated as unset.
func (c *Config) normalize() {
	c.DB = cleanLocal(c.DB)
	c.MetricsFile = cleanLocal(c.MetricsFile)

	if len(c.MappedRemotePaths) > 0 {
		mapped := make(map[string]string, len(c.MappedRemotePaths))
		for remote, local := range c.MappedRemotePaths {
			mapped[remote] = cleanLocal(local)
		}
		c.MappedRemotePaths = mapped
	}

	for i := range c.TorrentDirs {
		rule := &c.TorrentDirs[i]
		rule.DownloadDir = cleanLocal(rule.DownloadDir)
		rule.PostProcessingDir = cleanLocal(rule.PostProcessingDir)
		if rule.Ratio != nil && *rule.Ratio == 0 {
			rule.Ratio = nil
		}
		if rule.SeedDays != nil && *rule.SeedDays == 0 {
			rule.SeedDays = nil
		}
	}
}

func cleanLocal(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(paths.ExpandHome(p))
}
