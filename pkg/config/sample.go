package config

import (
	_ "embed"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
)

//go:embed embedded/config-sample.yaml
var sampleConfig []byte

const tomlSampleHeader = `# Sample configuration for process-torrents.
#
# Save as config.toml and pass it with --config.

`

// SampleFormats lists the formats SampleConfig can produce.
var SampleFormats = []string{"yaml", "toml"}

// SampleConfig returns the sample configuration in the given format.
func SampleConfig(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		return append([]byte(nil), sampleConfig...), nil

	case "toml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(sampleConfig, &doc); err != nil {
			return nil, perrors.Wrap(err, perrors.ErrInternal, "embedded sample config is not valid YAML")
		}
		out, err := toml.Marshal(doc)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.ErrInternal, "cannot encode sample config as TOML")
		}
		return append([]byte(tomlSampleHeader), out...), nil

	default:
		return nil, perrors.Newf(perrors.ErrInvalidInput, "unknown sample format %q (want one of %s)",
			format, strings.Join(SampleFormats, ", "))
	}
}
