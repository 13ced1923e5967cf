// Package main provides the feedwatch CLI.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the feedwatch configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Seed          SeedConfig          `yaml:"seed"`
	Email         EmailConfig         `yaml:"email"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Verbose       bool                `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address        string `yaml:"address"`         // API listen address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus listen address (default: :9091)
	RateLimitPerIP int    `yaml:"rate_limit_per_ip"`
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database path
}

// SeedConfig points at the optional YAML file of alert definitions.
type SeedConfig struct {
	File string `yaml:"file"`
	// Watch reloads the file on change and creates new alerts.
	Watch bool `yaml:"watch"`
}

// EmailConfig contains SMTP settings. Email delivery is enabled when
// Host is set.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	// Fallback receives summary notifications, which belong to no
	// single alert.
	Fallback string `yaml:"fallback"`
}

// WebhookConfig contains webhook delivery settings.
type WebhookConfig struct {
	// AllowInsecure permits plain http:// destinations.
	AllowInsecure bool `yaml:"allow_insecure"`
	// PerDestinationPerMinute limits POSTs per destination URL; zero
	// disables the limit.
	PerDestinationPerMinute int `yaml:"per_destination_per_minute"`
}

// NotificationsConfig contains global dispatch settings.
type NotificationsConfig struct {
	// MaxPerMinute is the global notification rate limit.
	MaxPerMinute int `yaml:"max_per_minute"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9091"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/feedwatch.db"
	}
	if c.Notifications.MaxPerMinute == 0 {
		c.Notifications.MaxPerMinute = 10
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Email.Host != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.host is set")
	}
	return nil
}
