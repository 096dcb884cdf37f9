// Package web serves the live camera stream and viewer status over HTTP
// and WebSocket, for machines without a display.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-x500cam/pkg/hub"
)

// frameIdle is how long after the last /api/frame request frames keep being
// stored for pollers.
const frameIdle = 5 * time.Second

// StatusFunc returns a JSON-serialisable snapshot of the system state.
type StatusFunc func() any

// Server is the camera stream server.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger

	status StatusFunc

	// latest JPEG for /api/frame
	frameMu   sync.RWMutex
	frame     []byte
	frameTime time.Time
	lastPoll  atomic.Int64 // unix nanos of the last /api/frame request

	cameraHub *hub.Hub
	statusHub *hub.Hub
}

// NewServer creates a server. status may be nil.
func NewServer(cfg Config, status StatusFunc, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		status:    status,
		cameraHub: hub.New("camera", logger),
		statusHub: hub.New("status", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "x500cam",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/frame", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s, nil
}

// Start runs the hubs and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.cameraHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.pushStatus(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("serving camera stream", "addr", s.cfg.Addr)

	if err := s.app.Listen(s.cfg.Addr); err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return nil
}

func (s *Server) pushStatus(ctx context.Context) {
	if s.status == nil {
		return
	}

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
				s.logger.Warn("status encode failed", "error", err)
			}
		}
	}
}

// PublishFrame stores jpeg as the latest frame and streams it to camera clients.
func (s *Server) PublishFrame(jpeg []byte) {
	s.frameMu.Lock()
	s.frame = jpeg
	s.frameTime = time.Now()
	s.frameMu.Unlock()

	if s.cameraHub.ClientCount() > 0 {
		s.cameraHub.BroadcastBinary(jpeg)
	}
}

// HasListeners reports whether a new frame would be seen: a camera client is
// connected, /api/frame was polled recently, or no frame is stored yet.
func (s *Server) HasListeners() bool {
	if s.cameraHub.ClientCount() > 0 {
		return true
	}
	if last := s.lastPoll.Load(); last != 0 && time.Since(time.Unix(0, last)) < frameIdle {
		return true
	}

	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frame == nil
}

// LatestFrame returns the most recent frame and when it arrived.
func (s *Server) LatestFrame() ([]byte, time.Time) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frame, s.frameTime
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
