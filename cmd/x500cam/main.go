// x500cam - live viewer for the x500 drone's mono camera
//
// Subscribes to the simulated camera's sensor_msgs/Image topic through a
// rosbridge_server, shows the frames in an OpenCV window and keeps the first
// frame on disk. With -web the stream is also served over HTTP/WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/teslashibe/go-x500cam/internal/config"
	"github.com/teslashibe/go-x500cam/internal/log"
	"github.com/teslashibe/go-x500cam/pkg/rosbridge"
	"github.com/teslashibe/go-x500cam/pkg/viewer"
	"github.com/teslashibe/go-x500cam/pkg/web"
)

// OpenCV's HighGUI must stay on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "x500cam: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// A missing .env is fine
	_ = godotenv.Load()

	fs := flag.NewFlagSet("x500cam", flag.ContinueOnError)
	opts := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	opts.apply(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := log.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := rosbridge.New(cfg.Bridge, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var srv *web.Server
	var sink viewer.FrameSink
	var v *viewer.Viewer

	if cfg.Web.Enabled {
		srv, err = web.NewServer(cfg.Web, func() any {
			return status{Viewer: v.Stats(), Bridge: client.Stats()}
		}, logger)
		if err != nil {
			return err
		}
		sink = srv
	}

	// the window is opened only once connected: nothing services it while
	// ConnectWithRetry waits
	if err := client.ConnectWithRetry(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect to rosbridge: %w", err)
	}

	var display viewer.Display
	if !cfg.Viewer.Headless {
		win, err := viewer.NewWindow(cfg.Viewer.WindowName, cfg.Viewer.WindowWidth, cfg.Viewer.WindowHeight)
		if err != nil {
			return err
		}
		display = win
	}

	v, err = viewer.New(cfg.Viewer, display, sink, logger)
	if err != nil {
		if display != nil {
			display.Close()
		}
		return err
	}
	defer v.Close()

	sub, err := client.Subscribe(cfg.Viewer.Topic, cfg.Viewer.MessageType, v.HandleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.Viewer.Topic, err)
	}
	defer sub.Unsubscribe()

	logger.Info("subscribed", "topic", cfg.Viewer.Topic, "type", cfg.Viewer.MessageType)

	bridgeErr := make(chan error, 1)
	go func() {
		if err := client.Run(ctx); err != nil {
			bridgeErr <- err
			cancel()
		}
	}()

	if srv != nil {
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("web server stopped", "error", err)
				cancel()
			}
		}()
	}

	// blocks on the main thread until Ctrl+C, q/Esc or the window is closed
	if err := v.Run(ctx); err != nil {
		return err
	}

	logStats(logger, v.Stats(), client.Stats())

	select {
	case err := <-bridgeErr:
		return fmt.Errorf("rosbridge: %w", err)
	default:
		return nil
	}
}

type status struct {
	Viewer viewer.Stats          `json:"viewer"`
	Bridge rosbridge.ClientStats `json:"bridge"`
}

func logStats(logger *slog.Logger, vs viewer.Stats, bs rosbridge.ClientStats) {
	logger.Info("shutting down",
		"received", vs.Received,
		"displayed", vs.Displayed,
		"skipped", vs.Skipped,
		"dropped", vs.Dropped,
		"bridge_messages", bs.MessagesReceived,
	)
}

// options mirrors the command-line flags. Only flags given explicitly
// override the file and environment.
type options struct {
	configPath string
	url        string
	topic      string
	headless   bool
	web        bool
	webAddr    string
	scale      float64
	snapshot   string
	logLevel   string
	logFormat  string
}

func registerFlags(fs *flag.FlagSet) *options {
	def := config.DefaultConfig()
	o := &options{}

	fs.StringVar(&o.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&o.url, "url", def.Bridge.URL, "rosbridge WebSocket URL (or set ROSBRIDGE_URL)")
	fs.StringVar(&o.topic, "topic", def.Viewer.Topic, "Image topic to view (or set CAMERA_TOPIC)")
	fs.BoolVar(&o.headless, "headless", false, "Run without a window")
	fs.BoolVar(&o.web, "web", false, "Serve the stream over HTTP")
	fs.StringVar(&o.webAddr, "web-addr", def.Web.Addr, "Web server listen address (or set WEB_ADDR)")
	fs.Float64Var(&o.scale, "scale", def.Viewer.Scale, "Resize factor applied before display, e.g. 0.5")
	fs.StringVar(&o.snapshot, "snapshot", def.Viewer.SnapshotPath, "Where to save the first frame (empty disables)")
	fs.StringVar(&o.logLevel, "log-level", def.LogLevel, "Log level: debug, info, warn, error (or set LOG_LEVEL)")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format: text or json (default json when GO_ENV=production)")

	return o
}

func (o *options) apply(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Bridge.URL = o.url
		case "topic":
			cfg.Viewer.Topic = o.topic
		case "headless":
			cfg.Viewer.Headless = o.headless
		case "web":
			cfg.Web.Enabled = o.web
		case "web-addr":
			cfg.Web.Addr = o.webAddr
			cfg.Web.Enabled = true
		case "scale":
			cfg.Viewer.Scale = o.scale
		case "snapshot":
			cfg.Viewer.SnapshotPath = o.snapshot
		case "log-level":
			cfg.LogLevel = o.logLevel
		case "log-format":
			cfg.LogFormat = o.logFormat
		}
	})
}
