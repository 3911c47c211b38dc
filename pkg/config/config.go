// Package config loads and validates the scorer's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// StoreConfig selects and configures the identity store.
type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `yaml:"driver" validate:"required,oneof=postgres memory"`
	// DSN is the database URL; required for the postgres driver.
	DSN string `yaml:"dsn" validate:"required_if=Driver postgres"`
}

// OracleConfig configures the ranking passes.
type OracleConfig struct {
	Iterations    int     `yaml:"iterations" validate:"min=0"`
	MaxIterations int     `yaml:"max_iterations" validate:"min=0"`
	Tolerance     float64 `yaml:"tolerance" validate:"min=0"`
}

// RenderConfig configures the HTML visualization output.
type RenderConfig struct {
	Enabled bool   `yaml:"enabled"`
	OutDir  string `yaml:"out_dir"`
}

// S3Config configures the optional S3 snapshot sink.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

// ExportConfig configures snapshot export. When Enabled and S3.Bucket is
// empty, artifacts go to the local Dir.
type ExportConfig struct {
	Enabled bool     `yaml:"enabled"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// Config is the full scorer configuration.
type Config struct {
	Store    StoreConfig  `yaml:"store"`
	Oracle   OracleConfig `yaml:"oracle"`
	Render   RenderConfig `yaml:"render"`
	Export   ExportConfig `yaml:"export"`
	LogLevel string       `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "memory"},
		Oracle: OracleConfig{MaxIterations: 100, Tolerance: 1e-9},
		Render: RenderConfig{OutDir: "./out"},
		Export: ExportConfig{Dir: "./out"},
	}
}

// Load reads and validates a YAML config file. Missing fields keep their
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
