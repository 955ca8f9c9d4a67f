package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Environment variables that override file configuration.
const (
	EnvPort    = "PORT"
	EnvBackend = "DOCSTORE_BACKEND"
	EnvDataDir = "DOCSTORE_DATA_DIR"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LogConfig     `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Message           string        `yaml:"message"`        // reported by GET /
	MaxBodyBytes      int64         `yaml:"max_body_bytes"` // request bodies above this are rejected
	Compress          bool          `yaml:"compress"`       // gzip responses when the client accepts it
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the document backend
type StorageConfig struct {
	Backend string `yaml:"backend"`  // "memory" or "file"
	DataDir string `yaml:"data_dir"` // file backend only; empty means data/ beside the executable
}

// LogConfig contains settings for logging
type LogConfig struct {
	Debug       bool   `yaml:"debug"`
	LogToFile   bool   `yaml:"log_to_file"`
	LogFilePath string `yaml:"log_file_path"`
	MaxSize     int    `yaml:"max_size"`    // megabytes
	MaxBackups  int    `yaml:"max_backups"` // rotated files to retain
	MaxAge      int    `yaml:"max_age"`     // days
	Compress    bool   `yaml:"compress"`    // gzip rotated files
}

// MetricsConfig controls the Prometheus listener
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables metrics
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			Message:           "GTM Blueprint Research Data API",
			MaxBodyBytes:      16 << 20,
			Compress:          true,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       2 * time.Minute,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Logging: LogConfig{
			LogFilePath: "docstore.log",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      28,
			Compress:    true,
		},
	}
}

// Load reads a YAML file over the defaults and then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Decoding into the populated defaults keeps every field the file
		// does not mention.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv applies PORT, DOCSTORE_BACKEND and DOCSTORE_DATA_DIR.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Storage.DataDir = v
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile:
	default:
		return fmt.Errorf("unknown storage backend %q (want %q or %q)",
			c.Storage.Backend, BackendMemory, BackendFile)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	if c.Logging.LogToFile && c.Logging.LogFilePath == "" {
		return fmt.Errorf("log_to_file requires log_file_path")
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ResolveDataDir returns the configured data directory, or data/ beside
// the running executable when none is set.
func (c *Config) ResolveDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	exe, err := os.Executable()
	if err != nil {
		return "data"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "data")
}
