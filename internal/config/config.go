// Package config provides YAML configuration loading and validation for the
// cellar storage adapter.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for the adapter.
type Config struct {
	// Address is the database's host:port. Required.
	Address string `yaml:"address"`

	// User is the database role to authenticate as. Required.
	User string `yaml:"user"`

	// Password authenticates User. May be empty only when the server
	// accepts trust authentication; Validate does not require it.
	Password string `yaml:"password"`

	// Database is the database name to connect to. Required.
	Database string `yaml:"database"`

	// TLS holds optional TLS settings. They are decoded and validated only:
	// protocol.Connect always dials plain TCP and no TLS wrap is applied.
	TLS TLSConfig `yaml:"tls"`

	// PoolSize is the number of connections the caller should keep open
	// against this adapter. Defaults to 4 when omitted.
	PoolSize int `yaml:"pool_size"`

	// QueueBatchSize is a queue batch size setting. Defaults to 16 when
	// omitted; it is decoded, defaulted and validated, and no queue code
	// reads it (Queue.GetItem pops one item per call).
	QueueBatchSize int `yaml:"queue_batch_size"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// LogFormat is one of "text" or "json". Defaults to "text" when
	// omitted.
	LogFormat string `yaml:"log_format"`

	// AdminAddr is the listen address for the read-only diagnostics HTTP
	// surface (e.g. "127.0.0.1:9000"). Defaults to "127.0.0.1:9000" when
	// omitted.
	AdminAddr string `yaml:"admin_addr"`

	// AdminJWTPublicKeyPath, if set, requires bearer-token authentication
	// on the diagnostics surface, verified against this PEM-encoded RSA
	// public key. Optional; the surface is unauthenticated when omitted.
	AdminJWTPublicKeyPath string `yaml:"admin_jwt_public_key_path"`
}

// TLSConfig describes TLS settings for the connection to the database.
type TLSConfig struct {
	// Enabled turns on TLS for the connection.
	Enabled bool `yaml:"enabled"`

	// CAPath is the path to a PEM-encoded CA certificate used to verify the
	// server's certificate. Optional; the platform trust store is used
	// when omitted.
	CAPath string `yaml:"ca_path"`

	// InsecureSkipVerify disables server certificate verification. Only
	// meant for local development against a self-signed server.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats is the set of accepted log format strings.
var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. It returns a joined error
// describing every validation failure encountered, per Validate.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, errors.Join(errs...))
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 4
	}
	if cfg.QueueBatchSize == 0 {
		cfg.QueueBatchSize = 16
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = "127.0.0.1:9000"
	}
}

// Validate checks that all required fields are populated and that
// enumerated fields contain only valid values. It collects every violation
// instead of stopping at the first.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if cfg.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if cfg.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if cfg.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool_size must be at least 1, got %d", cfg.PoolSize))
	}
	if cfg.QueueBatchSize < 1 {
		errs = append(errs, fmt.Errorf("queue_batch_size must be at least 1, got %d", cfg.QueueBatchSize))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if !validLogFormats[cfg.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format %q must be one of: text, json", cfg.LogFormat))
	}
	if cfg.TLS.Enabled && cfg.TLS.InsecureSkipVerify && cfg.TLS.CAPath != "" {
		errs = append(errs, errors.New("tls.ca_path is ignored when tls.insecure_skip_verify is set"))
	}

	return errs
}
