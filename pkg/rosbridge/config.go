// Package rosbridge is a small client for the rosbridge v2 protocol, which
// exposes ROS 2 topics as JSON over a WebSocket.
//
// This package handles:
//   - Connecting to rosbridge_server with retry
//   - Topic subscription and unsubscription
//   - Sequential dispatch of published messages to handlers
//   - Status reporting from the server
package rosbridge

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds rosbridge client configuration.
type Config struct {
	// URL is the rosbridge_server WebSocket address.
	// Examples: "ws://localhost:9090", "ws://192.168.1.20:9090"
	URL string `yaml:"url" json:"url"`

	// ClientName identifies this client in subscription ids and logs.
	ClientName string `yaml:"client_name" json:"client_name"`

	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// ReconnectInterval is how long to wait between connection attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`

	// MaxReconnectAttempts is the maximum number of connection attempts.
	// 0 means unlimited.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`

	// QueueLength is the server-side queue depth for each subscription.
	QueueLength int `yaml:"queue_length" json:"queue_length"`

	// ThrottleRate is the minimum time between messages the server sends,
	// in milliseconds. 0 disables throttling.
	ThrottleRate int `yaml:"throttle_rate" json:"throttle_rate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:9090",
		ClientName:           "x500_mono_cam_node",
		HandshakeTimeout:     10 * time.Second,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 0, // Unlimited
		QueueLength:          10,
		ThrottleRate:         0,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, fmt.Errorf("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("invalid url: %w", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("url scheme must be 'ws' or 'wss', got '%s'", u.Scheme))
	}

	if c.ClientName == "" {
		errs = append(errs, fmt.Errorf("client_name is required"))
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, fmt.Errorf("reconnect_interval must be positive"))
	}
	if c.MaxReconnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_reconnect_attempts must be >= 0"))
	}
	if c.QueueLength < 1 {
		errs = append(errs, fmt.Errorf("queue_length must be >= 1"))
	}
	if c.ThrottleRate < 0 {
		errs = append(errs, fmt.Errorf("throttle_rate must be >= 0"))
	}

	return errors.Join(errs...)
}
