package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/probe"
	"github.com/anstrom/ragescanner/internal/scanning"
	"github.com/anstrom/ragescanner/internal/workers"
)

// Config represents the complete ragescanner configuration
type Config struct {
	// Scan engine and bridge configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Probe backends configuration
	Probes probe.Config `yaml:"probes" json:"probes"`

	// Blocking worker pool configuration
	Workers workers.Config `yaml:"workers" json:"workers"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Scheduled scans, run by the serve command
	Schedules []ScheduleConfig `yaml:"schedules" json:"schedules"`
}

// ScanningConfig holds scan engine and bridge settings
type ScanningConfig struct {
	scanning.Config `yaml:",inline"`

	// Capacity of the command intake
	CommandBuffer int `yaml:"command_buffer" json:"command_buffer"`

	// Capacity of the engine event channel
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`

	// How long shutdown waits for an active scan
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Enable API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// Enable TLS
	TLS TLSConfig `yaml:"tls" json:"tls"`

	// Bcrypt hashes of accepted API keys. Empty disables authentication.
	APIKeys []string `yaml:"api_keys" json:"-"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Per-client request rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Request timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Maximum request size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`
}

// TLSConfig holds TLS settings
type TLSConfig struct {
	// Enable TLS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Certificate file path
	CertFile string `yaml:"cert_file" json:"cert_file"`

	// Private key file path
	KeyFile string `yaml:"key_file" json:"key_file"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// RateLimitConfig holds per-client API rate limiting settings
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	// Expose /metrics on the API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Metrics endpoint path
	Path string `yaml:"path" json:"path"`

	// How often system gauges are refreshed
	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval"`
}

// ScheduleConfig describes a recurring scan
type ScheduleConfig struct {
	// Name used in logs
	Name string `yaml:"name" json:"name"`

	// Standard five-field cron expression
	Cron string `yaml:"cron" json:"cron"`

	// Target range, in any form the scan command accepts
	Range string `yaml:"range" json:"range"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			Config:          scanning.DefaultConfig(),
			CommandBuffer:   bridge.DefaultCommandBuffer,
			EventBuffer:     bridge.DefaultEventBuffer,
			ShutdownTimeout: bridge.DefaultShutdownTimeout,
		},
		Probes:  probe.DefaultConfig(),
		Workers: workers.DefaultConfig(),
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 10,
				Burst:             20,
			},
			RequestTimeout: 30 * time.Second,
			MaxRequestSize: 1024 * 1024, // 1MB
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:        true,
			Path:           "/metrics",
			UpdateInterval: 15 * time.Second,
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil // Return defaults if no config file
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder serves both
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Scanning.Validate(); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	if c.Scanning.CommandBuffer <= 0 {
		return fmt.Errorf("scanning: command buffer must be positive")
	}
	if c.Scanning.EventBuffer <= 0 {
		return fmt.Errorf("scanning: event buffer must be positive")
	}

	if err := c.Probes.Validate(); err != nil {
		return fmt.Errorf("probes: %w", err)
	}

	if c.Workers.Size <= 0 {
		return fmt.Errorf("workers: size must be positive")
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("workers: queue size cannot be negative")
	}

	// Validate API configuration
	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("API port must be between 1 and 65535")
		}
		if c.API.ListenAddr == "" {
			return fmt.Errorf("API listen address is required when API is enabled")
		}
		if c.API.RequestTimeout <= 0 {
			return fmt.Errorf("API request timeout must be positive")
		}
		if c.API.RateLimit.Enabled && c.API.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("API rate limit must be positive when enabled")
		}
	}

	// Validate TLS configuration
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			return fmt.Errorf("TLS certificate file is required when TLS is enabled")
		}
		if c.API.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}
	}

	// Validate logging configuration
	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[logging.LogFormat]bool{
		logging.FormatText: true,
		logging.FormatJSON: true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path is required when metrics are enabled")
	}

	return c.validateSchedules()
}

func (c *Config) validateSchedules() error {
	names := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule %d: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("schedule %q: duplicate name", s.Name)
		}
		names[s.Name] = true

		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return fmt.Errorf("schedule %q: invalid cron expression: %w", s.Name, err)
		}
		if _, err := scanning.ParseRange(s.Range); err != nil {
			return fmt.Errorf("schedule %q: %w", s.Name, err)
		}
	}
	return nil
}

// Bridge returns the bridge configuration derived from the scanning and
// workers sections.
func (c *Config) Bridge() bridge.Config {
	return bridge.Config{
		Scanning:        c.Scanning.Config,
		Workers:         c.Workers,
		CommandBuffer:   c.Scanning.CommandBuffer,
		EventBuffer:     c.Scanning.EventBuffer,
		ShutdownTimeout: c.Scanning.ShutdownTimeout,
	}
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if API server is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}
