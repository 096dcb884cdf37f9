package viewer

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Display renders frames. Implementations that drive a GUI must be used from
// the main OS thread.
type Display interface {
	// Show draws img. img is only valid for the duration of the call.
	Show(img gocv.Mat) error

	// Poll services GUI events and reports whether the user asked to quit.
	Poll() (quit bool)

	Close() error
}

// FrameSink receives JPEG-encoded frames, e.g. for a browser stream.
type FrameSink interface {
	PublishFrame(jpeg []byte)

	// HasListeners reports whether anyone would see a published frame.
	// Frames are not encoded while it is false.
	HasListeners() bool
}

// Keys that close the window.
const (
	keyEsc = 27
	keyQ   = 'q'
)

// Window is an OpenCV HighGUI window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a resizable window of the given initial size.
func NewWindow(name string, width, height int) (*Window, error) {
	if name == "" {
		return nil, fmt.Errorf("window name is required")
	}

	win := gocv.NewWindow(name)
	win.ResizeWindow(width, height)

	return &Window{win: win}, nil
}

// Show draws img.
func (w *Window) Show(img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("empty frame")
	}
	w.win.IMShow(img)
	return nil
}

// Poll pumps the event loop for 1ms. It reports quit when q or Esc is
// pressed or the window has been closed.
func (w *Window) Poll() bool {
	key := w.win.WaitKey(1)
	if key == keyEsc || key == keyQ {
		return true
	}
	return !w.win.IsOpen()
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
