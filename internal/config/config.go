package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TLSConfig configures the optional TLS listener, mirroring spec §6's
// tls?{cert, key, client_ca?} option group.
type TLSConfig struct {
	Cert     string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	ClientCA string `json:"client_ca,omitempty" yaml:"client_ca,omitempty"`
}

// Enabled reports whether a TLS listener was requested.
func (t TLSConfig) Enabled() bool { return t.Cert != "" && t.Key != "" }

// Config is the single options record the core is constructed with (spec
// §6, "Configuration"). Every field here is a recognized option; unknown
// keys in a loaded file are rejected by Load rather than silently ignored.
type Config struct {
	BindHost           string    `json:"bind_host" yaml:"bind_host"`
	BindPort           int       `json:"bind_port" yaml:"bind_port"`
	DataDir            string    `json:"data_dir" yaml:"data_dir"`
	MaxBatchSize       int       `json:"max_batch_size" yaml:"max_batch_size"`
	MaxBatchLingerMs   int       `json:"max_batch_linger_ms" yaml:"max_batch_linger_ms"`
	WriteQueueCapacity int       `json:"write_queue_capacity" yaml:"write_queue_capacity"`
	ReadPoolSize       int       `json:"read_pool_size" yaml:"read_pool_size"`
	ShutdownGraceMs    int       `json:"shutdown_grace_ms" yaml:"shutdown_grace_ms"`
	TLS                TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`

	// Ambient, not part of spec §6's core option set but carried the way the
	// teacher carries process-wide logging knobs alongside its runtime options.
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
}

// Default returns built-in defaults, matching the recommended values in
// spec §6 (max batch size 512, linger 2ms).
func Default() Config {
	return Config{
		BindHost:           "0.0.0.0",
		BindPort:           7420,
		DataDir:            DefaultDataDir(),
		MaxBatchSize:       512,
		MaxBatchLingerMs:   2,
		WriteQueueCapacity: 4096,
		ReadPoolSize:       8,
		ShutdownGraceMs:    5000,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Validate rejects out-of-range values rather than silently clamping them,
// following the original implementation's config validation
// (crates/sluice-server/src/config.rs).
func (c Config) Validate() error {
	if c.BindPort < 0 || c.BindPort > 65535 {
		return fmt.Errorf("config: bind_port %d out of range", c.BindPort)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("config: max_batch_size must be > 0")
	}
	if c.MaxBatchLingerMs < 0 {
		return fmt.Errorf("config: max_batch_linger_ms must be >= 0")
	}
	if c.WriteQueueCapacity <= 0 {
		return fmt.Errorf("config: write_queue_capacity must be > 0")
	}
	if c.ReadPoolSize <= 0 {
		return fmt.Errorf("config: read_pool_size must be > 0")
	}
	if c.ShutdownGraceMs < 0 {
		return fmt.Errorf("config: shutdown_grace_ms must be >= 0")
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return fmt.Errorf("config: tls.cert and tls.key must be set together")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// Load reads configuration from a JSON or YAML file (chosen by extension)
// layered on top of Default(). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse json: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
