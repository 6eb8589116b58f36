package storefront

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// GenerateSampleConfig renders a Config populated with its tag defaults.
// The format parameter can be "yaml", "json", or "toml".
func GenerateSampleConfig(format string) ([]byte, error) {
	sample := &Config{}
	if err := ProcessConfigDefaults(sample); err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "yaml", "yml":
		data, err := yaml.Marshal(sample)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(sample, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		return data, nil
	case "toml":
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(sample); err != nil {
			return nil, fmt.Errorf("failed to marshal to TOML: %w", err)
		}
		return []byte(buf.String()), nil
	default:
		return nil, fmt.Errorf("%w: unsupported sample format %s", ErrConfigFeederError, format)
	}
}

// SaveSampleConfig generates and saves a sample configuration file
func SaveSampleConfig(format, filePath string) error {
	data, err := GenerateSampleConfig(format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file to %s: %w", filePath, err)
	}
	return nil
}
