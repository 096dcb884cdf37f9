// Package viewer shows a live ROS image topic in an OpenCV window and keeps
// the first frame on disk for debugging.
package viewer

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-x500cam/pkg/sensormsg"
)

// Default values for the x500 mono camera in the Gazebo default world.
const (
	DefaultTopic        = "/world/default/model/x500_mono_cam_0/link/camera_link/sensor/camera/image"
	DefaultWindowName   = "x500 mono cam"
	DefaultSnapshotPath = "x500_first_frame.png"
)

// Config holds viewer configuration.
type Config struct {
	// === Source ===
	Topic       string `yaml:"topic" json:"topic"`
	MessageType string `yaml:"message_type" json:"message_type"`

	// QueueSize is how many decoded messages may wait for the display.
	// When full, the oldest is dropped.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// === Window ===
	WindowName   string `yaml:"window_name" json:"window_name"`
	WindowWidth  int    `yaml:"window_width" json:"window_width"`
	WindowHeight int    `yaml:"window_height" json:"window_height"`

	// Headless skips the window entirely (web stream and snapshot still work).
	Headless bool `yaml:"headless" json:"headless"`

	// Scale resizes frames before display. 1.0 shows them as received.
	Scale float64 `yaml:"scale" json:"scale"`

	// === Output ===
	// SnapshotPath is where the first frame is written. Empty disables it.
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path"`

	// StreamQuality is the JPEG quality (1-100) for frames sent to the web stream.
	StreamQuality int `yaml:"stream_quality" json:"stream_quality"`
}

// DefaultConfig returns the settings used for the simulated x500 camera.
func DefaultConfig() Config {
	return Config{
		Topic:         DefaultTopic,
		MessageType:   sensormsg.MessageType,
		QueueSize:     10,
		WindowName:    DefaultWindowName,
		WindowWidth:   800,
		WindowHeight:  600,
		Scale:         1.0,
		SnapshotPath:  DefaultSnapshotPath,
		StreamQuality: 80,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Topic == "" {
		errs = append(errs, fmt.Errorf("topic is required"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size must be >= 1, got %d", c.QueueSize))
	}
	if !c.Headless {
		if c.WindowName == "" {
			errs = append(errs, fmt.Errorf("window_name is required"))
		}
		if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
			errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.WindowWidth, c.WindowHeight))
		}
	}
	if c.Scale <= 0 || c.Scale > 4 {
		errs = append(errs, fmt.Errorf("scale must be in (0, 4], got %.2f", c.Scale))
	}
	if c.StreamQuality < 1 || c.StreamQuality > 100 {
		errs = append(errs, fmt.Errorf("stream_quality must be 1-100, got %d", c.StreamQuality))
	}

	return errors.Join(errs...)
}
