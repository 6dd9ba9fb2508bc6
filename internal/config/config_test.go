package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BindPort != 7420 {
		t.Fatalf("default bind port")
	}
	if cfg.MaxBatchSize != 512 {
		t.Fatalf("default max batch size")
	}
	if cfg.MaxBatchLingerMs != 2 {
		t.Fatalf("default linger")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sluice.json")
	data := []byte(`{"bind_host":"127.0.0.1","bind_port":9000,"data_dir":"` + dir + `","max_batch_size":128,"max_batch_linger_ms":5,"write_queue_capacity":1024,"read_pool_size":4,"shutdown_grace_ms":1000}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BindHost != "127.0.0.1" {
		t.Fatalf("expected 127.0.0.1, got %q", cfg.BindHost)
	}
	if cfg.BindPort != 9000 {
		t.Fatalf("expected 9000, got %d", cfg.BindPort)
	}
	if cfg.MaxBatchSize != 128 {
		t.Fatalf("expected 128, got %d", cfg.MaxBatchSize)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sluice.yaml")
	data := []byte("bind_host: 127.0.0.1\nbind_port: 9100\ndata_dir: " + dir + "\nmax_batch_size: 64\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BindPort != 9100 {
		t.Fatalf("expected 9100, got %d", cfg.BindPort)
	}
	if cfg.MaxBatchSize != 64 {
		t.Fatalf("expected 64, got %d", cfg.MaxBatchSize)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sluice.json")
	data := []byte(`{"bind_host":"127.0.0.1","totally_unknown_option":true}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.BindPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestValidateRequiresTLSPair(t *testing.T) {
	cfg := Default()
	cfg.TLS.Cert = "/etc/sluice/tls.crt"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for cert without key")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("SLUICE_BIND_HOST", "10.0.0.5")
	os.Setenv("SLUICE_BIND_PORT", "9200")
	os.Setenv("SLUICE_MAX_BATCH_SIZE", "256")
	t.Cleanup(func() {
		os.Unsetenv("SLUICE_BIND_HOST")
		os.Unsetenv("SLUICE_BIND_PORT")
		os.Unsetenv("SLUICE_MAX_BATCH_SIZE")
	})
	FromEnv(&cfg)
	if cfg.BindHost != "10.0.0.5" {
		t.Fatalf("env override host")
	}
	if cfg.BindPort != 9200 {
		t.Fatalf("env override port")
	}
	if cfg.MaxBatchSize != 256 {
		t.Fatalf("env override batch size")
	}
}
