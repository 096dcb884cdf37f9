package web

import (
	"fmt"
	"time"
)

// Config holds dashboard server configuration.
type Config struct {
	// Enabled turns the HTTP server on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Addr is the listen address, e.g. ":8080" or "127.0.0.1:8080".
	Addr string `yaml:"addr" json:"addr"`

	// StatusInterval is how often status is pushed to /ws/status clients.
	StatusInterval time.Duration `yaml:"status_interval" json:"status_interval"`
}

// DefaultConfig returns the server defaults. The server is off unless asked for.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Addr:           ":8080",
		StatusInterval: time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("status_interval must be positive")
	}
	return nil
}
