package config

import (
	"os"
	"strconv"
)

// FromEnv overlays SLUICE_* environment variables onto cfg, matching the
// recognized option set documented in spec §6.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SLUICE_BIND_HOST"); v != "" {
		cfg.BindHost = v
	}
	if v := os.Getenv("SLUICE_BIND_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BindPort = n
		}
	}
	if v := os.Getenv("SLUICE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SLUICE_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBatchSize = n
		}
	}
	if v := os.Getenv("SLUICE_MAX_BATCH_LINGER_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBatchLingerMs = n
		}
	}
	if v := os.Getenv("SLUICE_WRITE_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WriteQueueCapacity = n
		}
	}
	if v := os.Getenv("SLUICE_READ_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReadPoolSize = n
		}
	}
	if v := os.Getenv("SLUICE_SHUTDOWN_GRACE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ShutdownGraceMs = n
		}
	}
	if v := os.Getenv("SLUICE_TLS_CERT"); v != "" {
		cfg.TLS.Cert = v
	}
	if v := os.Getenv("SLUICE_TLS_KEY"); v != "" {
		cfg.TLS.Key = v
	}
	if v := os.Getenv("SLUICE_TLS_CLIENT_CA"); v != "" {
		cfg.TLS.ClientCA = v
	}
	if v := os.Getenv("SLUICE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SLUICE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
