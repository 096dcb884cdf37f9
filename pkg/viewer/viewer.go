package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-x500cam/pkg/frame"
	"github.com/teslashibe/go-x500cam/pkg/sensormsg"
	"gocv.io/x/gocv"
)

// pollInterval is how often the window is serviced while no frames arrive.
const pollInterval = 10 * time.Millisecond

// Viewer turns image messages into window updates.
//
// Messages come in on the transport's goroutine through HandleMessage or
// Enqueue; Run drains them on the caller's goroutine, which must be the main
// OS thread when a Window is used.
type Viewer struct {
	cfg     Config
	display Display
	sink    FrameSink
	logger  *slog.Logger

	queue chan *sensormsg.Image

	logLayout  sync.Once
	writeImage func(name string, img gocv.Mat) bool

	mu     sync.RWMutex
	layout Layout

	// Stats
	received      atomic.Int64
	processed     atomic.Int64
	displayed     atomic.Int64
	skipped       atomic.Int64
	dropped       atomic.Int64
	malformed     atomic.Int64
	snapshotSaved atomic.Bool
}

// Layout describes the most recent message's pixel layout.
type Layout struct {
	Encoding string `json:"encoding"`
	Width    uint32 `json:"width"`
	Height   uint32 `json:"height"`
	Step     uint32 `json:"step"`
}

// New creates a viewer. display may be nil for headless use and sink may be
// nil when frames are not streamed anywhere.
func New(cfg Config, display Display, sink FrameSink, logger *slog.Logger) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Viewer{
		cfg:        cfg,
		display:    display,
		sink:       sink,
		logger:     logger.With("component", "viewer"),
		queue:      make(chan *sensormsg.Image, cfg.QueueSize),
		writeImage: gocv.IMWrite,
	}, nil
}

// HandleMessage decodes a raw sensor_msgs/msg/Image and queues it.
// It has the signature of a rosbridge handler.
func (v *Viewer) HandleMessage(raw json.RawMessage) {
	var img sensormsg.Image
	if err := json.Unmarshal(raw, &img); err != nil {
		v.malformed.Add(1)
		v.logger.Warn("malformed image message", "error", err, "bytes", len(raw))
		return
	}
	v.Enqueue(&img)
}

// Enqueue queues img for display without blocking. When the queue is full
// the oldest waiting image is dropped.
func (v *Viewer) Enqueue(img *sensormsg.Image) {
	v.received.Add(1)

	for {
		select {
		case v.queue <- img:
			return
		default:
		}

		select {
		case <-v.queue:
			v.dropped.Add(1)
		default:
		}
	}
}

// Process converts and shows one image. Unsupported encodings and malformed
// payloads are logged and the frame is skipped; the returned error says why.
func (v *Viewer) Process(img *sensormsg.Image) error {
	v.logLayout.Do(func() {
		v.logger.Info("image layout",
			"encoding", img.Encoding,
			"size", fmt.Sprintf("%dx%d", img.Width, img.Height),
			"step", img.Step,
		)
	})

	v.mu.Lock()
	v.layout = Layout{Encoding: img.Encoding, Width: img.Width, Height: img.Height, Step: img.Step}
	v.mu.Unlock()

	if !sensormsg.IsSupported(img.Encoding) {
		v.skipped.Add(1)
		v.logger.Warn("unsupported encoding", "encoding", img.Encoding)
		return fmt.Errorf("%w: %q", sensormsg.ErrUnsupportedEncoding, img.Encoding)
	}

	mat, err := frame.ToMat(img)
	if err != nil {
		mat.Close()
		v.skipped.Add(1)
		v.logger.Warn("skipping frame", "frame", img.String(), "error", err)
		return err
	}
	// mat is replaced when scaling; close whichever is current
	defer func() { mat.Close() }()

	if v.cfg.Scale != 1 {
		scaled, err := frame.Scale(mat, v.cfg.Scale)
		if err != nil {
			scaled.Close()
			v.skipped.Add(1)
			v.logger.Warn("skipping frame", "frame", img.String(), "error", err)
			return err
		}
		mat.Close()
		mat = scaled
	}

	if v.display != nil {
		if err := v.display.Show(mat); err != nil {
			v.logger.Warn("display failed", "error", err)
		} else {
			v.displayed.Add(1)
		}
	}

	if v.processed.Load() == 0 {
		v.saveSnapshot(mat)
	}

	if v.sink != nil && v.sink.HasListeners() {
		data, err := frame.EncodeJPEG(mat, v.cfg.StreamQuality)
		if err != nil {
			v.logger.Debug("stream encode failed", "error", err)
		} else {
			v.sink.PublishFrame(data)
		}
	}

	v.processed.Add(1)
	return nil
}

func (v *Viewer) saveSnapshot(mat gocv.Mat) {
	path := v.cfg.SnapshotPath
	if path == "" {
		return
	}

	if !v.writeImage(path, mat) {
		v.logger.Warn("failed to save first frame", "path", path)
		return
	}

	v.snapshotSaved.Store(true)
	v.logger.Info("saved first frame", "path", path)
}

// Run processes queued images until ctx is done or the user closes the
// window. It returns nil in both cases.
func (v *Viewer) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case img := <-v.queue:
			// errors are logged by Process
			_ = v.Process(img)
			if v.quitRequested() {
				return nil
			}

		case <-ticker.C:
			if v.quitRequested() {
				return nil
			}
		}
	}
}

func (v *Viewer) quitRequested() bool {
	if v.display == nil {
		return false
	}
	if v.display.Poll() {
		v.logger.Info("window closed by user")
		return true
	}
	return false
}

// Close releases the display.
func (v *Viewer) Close() error {
	if v.display == nil {
		return nil
	}
	return v.display.Close()
}

// Stats returns viewer statistics.
func (v *Viewer) Stats() Stats {
	v.mu.RLock()
	layout := v.layout
	v.mu.RUnlock()

	return Stats{
		Topic:         v.cfg.Topic,
		Received:      v.received.Load(),
		Processed:     v.processed.Load(),
		Displayed:     v.displayed.Load(),
		Skipped:       v.skipped.Load(),
		Dropped:       v.dropped.Load(),
		Malformed:     v.malformed.Load(),
		Queued:        len(v.queue),
		Layout:        layout,
		SnapshotPath:  v.cfg.SnapshotPath,
		SnapshotSaved: v.snapshotSaved.Load(),
	}
}

// Stats contains viewer statistics.
type Stats struct {
	Topic         string `json:"topic"`
	Received      int64  `json:"received"`
	Processed     int64  `json:"processed"`
	Displayed     int64  `json:"displayed"`
	Skipped       int64  `json:"skipped"`
	Dropped       int64  `json:"dropped"`
	Malformed     int64  `json:"malformed"`
	Queued        int    `json:"queued"`
	Layout        Layout `json:"layout"`
	SnapshotPath  string `json:"snapshot_path"`
	SnapshotSaved bool   `json:"snapshot_saved"`
}
