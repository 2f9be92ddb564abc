// Package config loads and validates the pipeline configuration file.
package config

import "os"

// Config is the base configuration object
type Config struct {
	Synapse SynapseConfig `yaml:"synapse"`
	Extract ExtractConfig `yaml:"extract,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
}

// SynapseConfig holds everything needed to reach the Synapse REST API and
// the study tables this pipeline reads from.
type SynapseConfig struct {
	Endpoint   string       `yaml:"endpoint,omitempty"`
	TokenEnv   string       `yaml:"token-env,omitempty"`
	CacheDir   string       `yaml:"cache-dir,omitempty"`
	Tables     TablesConfig `yaml:"tables"`
	CohortFile string       `yaml:"cohort-file,omitempty"`
}

// TablesConfig maps each supported study generation to its Synapse table ID.
type TablesConfig struct {
	MPowerV1  string `yaml:"mpower-v1,omitempty"`
	MPowerV2  string `yaml:"mpower-v2,omitempty"`
	Passive   string `yaml:"passive,omitempty"`
	ElevateMS string `yaml:"elevate-ms,omitempty"`
}

// ExtractConfig holds defaults for batch feature-extraction runs. Flags on
// the extract CLI override these per run.
type ExtractConfig struct {
	Workers   int    `yaml:"workers,omitempty"`
	Chunks    int    `yaml:"chunks,omitempty"`
	Axis      string `yaml:"axis,omitempty"`
	Filename  string `yaml:"filename,omitempty"`
	ParentID  string `yaml:"parent-id,omitempty"`
	ScriptURL string `yaml:"script-url,omitempty"`
}

// StorageConfig holds the configuration for various storage backends.
// More than one storage backend can be used simultaneously
type StorageConfig struct {
	CSV      CSVConfig      `yaml:"csv,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type CSVConfig struct {
	Path string `yaml:"path,omitempty"`
}

type PostgresConfig struct {
	ConnectionString string `yaml:"connection-string,omitempty"`
}

// ServerConfig holds the configuration for the results API server
type ServerConfig struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// Token resolves the Synapse access token from the configured
// environment variable. Empty when the variable is unset.
func (c *Config) Token() string {
	return os.Getenv(c.Synapse.TokenEnv)
}

// TableID returns the Synapse table ID configured for a study generation
// name (MPOWER_V1, MPOWER_V2, PASSIVE, ELEVATE_MS).
func (c *Config) TableID(generation string) (string, bool) {
	var id string
	switch generation {
	case "MPOWER_V1":
		id = c.Synapse.Tables.MPowerV1
	case "MPOWER_V2":
		id = c.Synapse.Tables.MPowerV2
	case "PASSIVE":
		id = c.Synapse.Tables.Passive
	case "ELEVATE_MS":
		id = c.Synapse.Tables.ElevateMS
	}
	return id, id != ""
}
