// Package config provides loading and environment overlay for Sluice's
// runtime configuration. It exposes a Default() baseline and helpers that
// load a JSON or YAML file, overlay SLUICE_* environment variables, and
// validate the recognized option set from spec §6.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/sluice.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
package config
