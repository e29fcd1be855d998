// Package config loads the warehouse runtime configuration from a YAML
// file with environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides. Nested keys use a double
// underscore: DWH_STORAGE__DSN overrides storage.dsn.
const EnvPrefix = "DWH_"

// Config is the full runtime configuration.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	Raw     RawConfig     `koanf:"raw"`
	Runtime RuntimeConfig `koanf:"runtime"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// StorageConfig selects the backend holding the validated tables and the
// issue sink.
type StorageConfig struct {
	// Kind is a registered backend name: sqlite, postgres or mssql.
	Kind string `koanf:"kind"`
	DSN  string `koanf:"dsn"`
}

// RawConfig selects where raw extracts come from.
type RawConfig struct {
	// Mode is "csv" (a directory of <entity>.csv files) or "table"
	// (staged bronze tables in the storage backend).
	Mode string `koanf:"mode"`
	// Dir is the extract directory for csv mode.
	Dir string `koanf:"dir"`
}

type RuntimeConfig struct {
	// Workers bounds concurrent entity stages within a dependency layer.
	Workers int `koanf:"workers"`
}

type MetricsConfig struct {
	Enabled    bool          `koanf:"enabled"`
	JobName    string        `koanf:"job_name"`
	Tags       string        `koanf:"tags"`
	FlushEvery time.Duration `koanf:"flush_every"`
}

// ApplyDefaults fills unset fields with working local defaults: an on-disk
// sqlite store fed from ./extracts.
func (c *Config) ApplyDefaults() {
	if c.Storage.Kind == "" {
		c.Storage.Kind = "sqlite"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "warehouse.db"
	}
	if c.Raw.Mode == "" {
		c.Raw.Mode = "csv"
	}
	if c.Raw.Dir == "" {
		c.Raw.Dir = "extracts"
	}
	if c.Runtime.Workers <= 0 {
		c.Runtime.Workers = 4
	}
	if c.Metrics.JobName == "" {
		c.Metrics.JobName = "dwh"
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Raw.Mode {
	case "csv", "table":
	default:
		return fmt.Errorf("config: unknown raw mode %q (want csv or table)", c.Raw.Mode)
	}
	if c.Raw.Mode == "csv" && c.Raw.Dir == "" {
		return fmt.Errorf("config: raw.dir is required in csv mode")
	}
	if c.Storage.Kind == "" {
		return fmt.Errorf("config: storage.kind is required")
	}
	return nil
}

// Load reads the config file (optional; path may be empty), applies
// environment overrides, defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// DWH_STORAGE__KIND -> storage.kind
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
