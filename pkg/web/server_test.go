package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, status StatusFunc) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	s, err := NewServer(cfg, status, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

func TestServer_Status(t *testing.T) {
	s := newTestServer(t, func() any {
		return map[string]any{"received": 7, "topic": "/cam"}
	})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["received"] != float64(7) || body["topic"] != "/cam" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestServer_StatusNotConfigured(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestServer_Frame(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("before first frame: got %d, want 404", resp.StatusCode)
	}

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	s.PublishFrame(jpeg)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("after frame: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type: got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(jpeg) {
		t.Errorf("body: got % x", body)
	}
}

func TestServer_HasListeners(t *testing.T) {
	s := newTestServer(t, nil)

	if !s.HasListeners() {
		t.Error("expected listeners before the first frame is stored")
	}

	s.PublishFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	if s.HasListeners() {
		t.Error("expected no listeners once a frame is stored and nobody polls")
	}

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if !s.HasListeners() {
		t.Error("expected listeners right after /api/frame was polled")
	}

	s.lastPoll.Store(time.Now().Add(-2 * frameIdle).UnixNano())
	if s.HasListeners() {
		t.Error("expected poll interest to expire")
	}
}

func TestServer_Index(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/ws/camera") {
		t.Error("index page does not reference the camera stream")
	}
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ws/camera", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status: got %d, want 426", resp.StatusCode)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		shouldErr bool
	}{
		{"disabled ignores fields", Config{}, false},
		{"valid", Config{Enabled: true, Addr: ":8080", StatusInterval: 1}, false},
		{"no addr", Config{Enabled: true, StatusInterval: 1}, true},
		{"no interval", Config{Enabled: true, Addr: ":8080"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.shouldErr {
				t.Errorf("Validate() error = %v, shouldErr %v", err, tt.shouldErr)
			}
		})
	}
}
