// Package config assembles x500cam configuration from defaults, an optional
// YAML file and environment variables. Command-line flags are applied on top
// by the caller.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/teslashibe/go-x500cam/internal/log"
	"github.com/teslashibe/go-x500cam/pkg/rosbridge"
	"github.com/teslashibe/go-x500cam/pkg/viewer"
	"github.com/teslashibe/go-x500cam/pkg/web"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvBridgeURL = "ROSBRIDGE_URL"
	EnvTopic     = "CAMERA_TOPIC"
	EnvLogLevel  = "LOG_LEVEL"
	EnvWebAddr   = "WEB_ADDR"
)

// Config is the complete x500cam configuration.
type Config struct {
	Bridge rosbridge.Config `yaml:"bridge" json:"bridge"`
	Viewer viewer.Config    `yaml:"viewer" json:"viewer"`
	Web    web.Config       `yaml:"web" json:"web"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// DefaultConfig returns the configuration for the simulated x500 camera on a
// local rosbridge_server.
func DefaultConfig() Config {
	return Config{
		Bridge:   rosbridge.DefaultConfig(),
		Viewer:   viewer.DefaultConfig(),
		Web:      web.DefaultConfig(),
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Setting WEB_ADDR also
// enables the web server.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBridgeURL); v != "" {
		c.Bridge.URL = v
	}
	if v := os.Getenv(EnvTopic); v != "" {
		c.Viewer.Topic = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvWebAddr); v != "" {
		c.Web.Addr = v
		c.Web.Enabled = true
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Bridge.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bridge: %w", err))
	}
	if err := c.Viewer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("viewer: %w", err))
	}
	if err := c.Web.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("web: %w", err))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ResolveFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
