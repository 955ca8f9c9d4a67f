package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Expected default backend %q, got %q", BackendMemory, cfg.Storage.Backend)
	}
	if cfg.Server.Message != "GTM Blueprint Research Data API" {
		t.Errorf("Unexpected default message %q", cfg.Server.Message)
	}
	if !cfg.Server.Compress {
		t.Error("Expected compression to be enabled by default")
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("Expected metrics to be disabled by default, got %q", cfg.Metrics.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvBackend, "")
	t.Setenv(EnvDataDir, "")

	path := filepath.Join(t.TempDir(), "docstore.yaml")
	content := `
server:
  port: 8080
  compress: false
  read_header_timeout: 5s
storage:
  backend: file
  data_dir: /var/lib/docstore
metrics:
  addr: 127.0.0.1:9091
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Compress {
		t.Error("Expected compress to be disabled by the file")
	}
	if cfg.Server.ReadHeaderTimeout != 5*time.Second {
		t.Errorf("Expected read_header_timeout 5s, got %s", cfg.Server.ReadHeaderTimeout)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Expected backend %q, got %q", BackendFile, cfg.Storage.Backend)
	}
	if cfg.Storage.DataDir != "/var/lib/docstore" {
		t.Errorf("Expected data_dir '/var/lib/docstore', got %q", cfg.Storage.DataDir)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9091" {
		t.Errorf("Expected metrics addr, got %q", cfg.Metrics.Addr)
	}

	// Fields absent from the file keep their defaults.
	if cfg.Server.MaxBodyBytes != Default().Server.MaxBodyBytes {
		t.Errorf("Expected default max_body_bytes, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Errorf("Expected default max_backups 3, got %d", cfg.Logging.MaxBackups)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestLoadWithoutFileUsesEnv(t *testing.T) {
	t.Setenv(EnvPort, "4100")
	t.Setenv(EnvBackend, "file")
	t.Setenv(EnvDataDir, "/tmp/docs")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Expected PORT override 4100, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Expected backend override, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.DataDir != "/tmp/docs" {
		t.Errorf("Expected data dir override, got %q", cfg.Storage.DataDir)
	}
}

func TestApplyEnvInvalidPort(t *testing.T) {
	cfg := Default()
	lookup := func(key string) (string, bool) {
		if key == EnvPort {
			return "not-a-port", true
		}
		return "", false
	}

	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Error("Expected error for non-numeric PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"file backend", func(c *Config) { c.Storage.Backend = BackendFile }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero body cap", func(c *Config) { c.Server.MaxBodyBytes = 0 }, true},
		{"log file without path", func(c *Config) {
			c.Logging.LogToFile = true
			c.Logging.LogFilePath = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.Addr(); got != ":3000" {
		t.Errorf("Expected ':3000', got %q", got)
	}

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Expected '127.0.0.1:8080', got %q", got)
	}
}

func TestResolveDataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/srv/docs"
	if got := cfg.ResolveDataDir(); got != "/srv/docs" {
		t.Errorf("Expected configured dir, got %q", got)
	}

	cfg.Storage.DataDir = ""
	if got := cfg.ResolveDataDir(); filepath.Base(got) != "data" {
		t.Errorf("Expected a data directory, got %q", got)
	}
}
