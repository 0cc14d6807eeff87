// Package config loads the fleetd YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level fleetd configuration.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
	// TickInterval is how often the schedule engine scans for due
	// schedules.
	TickInterval Duration `yaml:"tick_interval"`
	// ConnectTimeout bounds SSH connection establishment per host.
	ConnectTimeout Duration `yaml:"connect_timeout"`
	// KeepaliveInterval is the liveness probe period on established
	// SSH connections.
	KeepaliveInterval Duration `yaml:"keepalive_interval"`
	// Concurrency caps parallel host connections per fleet run.
	Concurrency int `yaml:"concurrency"`
}

// Duration wraps time.Duration to support YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		DBPath:            defaultDBPath(),
		TickInterval:      Duration{60 * time.Second},
		ConnectTimeout:    Duration{30 * time.Second},
		KeepaliveInterval: Duration{10 * time.Second},
		Concurrency:       20,
	}
}

// DefaultConfigPath returns the default config file path.
// Respects $XDG_CONFIG_HOME if set, otherwise falls back to ~/.config.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "fleetd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fleetd", "config.yaml")
}

func defaultDBPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "fleetd", "fleetd.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "fleetd.db"
	}
	return filepath.Join(home, ".config", "fleetd", "fleetd.db")
}

// Load reads and parses a config YAML file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the config at path if it exists, otherwise
// returns defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.TickInterval.Duration <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}
	if c.KeepaliveInterval.Duration <= 0 {
		return fmt.Errorf("keepalive_interval must be positive")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}
