package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

type written struct {
	kind int
	data []byte
}

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	writes    chan written
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		writes: make(chan written, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.writes <- written{kind: kind, data: data}
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func nextWrite(t *testing.T, conn *fakeConn) written {
	t.Helper()
	select {
	case w := <-conn.writes:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("no write before deadline")
		return written{}
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("camera", nil)
	go h.Run(ctx)

	conn := newFakeConn()
	client, err := NewClient(h, conn)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	go client.Run()

	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.BroadcastBinary([]byte{0xFF, 0xD8})
	w := nextWrite(t, conn)
	if w.kind != websocket.BinaryMessage || len(w.data) != 2 {
		t.Errorf("unexpected write: %+v", w)
	}

	if err := h.BroadcastJSON(map[string]int{"frames": 3}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}
	w = nextWrite(t, conn)
	if w.kind != websocket.TextMessage || string(w.data) != `{"frames":3}` {
		t.Errorf("unexpected write: kind=%d data=%s", w.kind, w.data)
	}

	if got := h.Stats().MessagesSent; got != 2 {
		t.Errorf("MessagesSent: got %d, want 2", got)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("status", nil)
	go h.Run(ctx)

	conn := newFakeConn()
	client, err := NewClient(h, conn)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	go client.Run()

	waitFor(t, func() bool { return h.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	h := New("camera", nil)
	go h.Run(ctx)

	conn := newFakeConn()
	client, err := NewClient(h, conn)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	go client.Run()

	waitFor(t, func() bool { return h.ClientCount() == 1 })
	cancel()

	w := nextWrite(t, conn)
	if w.kind != websocket.CloseMessage {
		t.Errorf("expected close frame, got kind %d", w.kind)
	}
	waitFor(t, func() bool { return !h.IsRunning() })

	if _, err := NewClient(h, newFakeConn()); !errors.Is(err, ErrHubStopped) {
		t.Errorf("expected ErrHubStopped, got %v", err)
	}
}

func TestHub_BroadcastWithoutRunDoesNotBlock(t *testing.T) {
	h := New("idle", nil)

	delivered := 0
	for i := 0; i < 100; i++ {
		if h.Broadcast(Message{Kind: websocket.BinaryMessage, Data: []byte{1}}) {
			delivered++
		}
	}

	if delivered == 100 {
		t.Error("expected some broadcasts to be discarded once the queue filled")
	}
	if h.ClientCount() != 0 {
		t.Error("expected no clients")
	}
}
