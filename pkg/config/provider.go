package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Defaults applied by LoadConfig when the file leaves a field unset.
const (
	DefaultEndpoint = "https://repo-prod.prod.sagebase.org/repo/v1"
	DefaultTokenEnv = "SYNAPSE_AUTH_TOKEN"
	DefaultAxis     = "y"
	DefaultFilename = "gait_features.csv"
	DefaultChunks   = 250
)

// YAMLProvider loads configuration from a YAML file
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig reads the complete configuration from the YAML file, fills
// in defaults, and validates it.
func (y *YAMLProvider) LoadConfig() (*Config, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	if err := yaml.Unmarshal(cfgFile, c); err != nil {
		return nil, fmt.Errorf("could not parse %v: %w", y.filename, err)
	}

	applyDefaults(c)

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("invalid configuration in %v: %w", y.filename, err)
	}

	return c, nil
}

func applyDefaults(c *Config) {
	if c.Synapse.Endpoint == "" {
		c.Synapse.Endpoint = DefaultEndpoint
	}
	if c.Synapse.TokenEnv == "" {
		c.Synapse.TokenEnv = DefaultTokenEnv
	}
	if c.Synapse.CacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Synapse.CacheDir = filepath.Join(home, ".synapseCache")
		} else {
			c.Synapse.CacheDir = ".synapseCache"
		}
	}
	if c.Extract.Axis == "" {
		c.Extract.Axis = DefaultAxis
	}
	if c.Extract.Filename == "" {
		c.Extract.Filename = DefaultFilename
	}
	if c.Extract.Chunks == 0 {
		c.Extract.Chunks = DefaultChunks
	}
}

func validate(c *Config) error {
	switch c.Extract.Axis {
	case "x", "y", "z", "AA":
	default:
		return fmt.Errorf("extract axis must be one of x, y, z, AA; got %q", c.Extract.Axis)
	}
	if c.Extract.Workers < 0 {
		return fmt.Errorf("extract workers must not be negative; got %d", c.Extract.Workers)
	}
	if c.Extract.Chunks < 1 {
		return fmt.Errorf("extract chunks must be at least 1; got %d", c.Extract.Chunks)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	return nil
}
