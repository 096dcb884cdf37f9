package sensormsg

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestChannels(t *testing.T) {
	tests := []struct {
		encoding string
		want     int
		wantErr  bool
	}{
		{"rgb8", 3, false},
		{"bgr8", 3, false},
		{"mono8", 1, false},
		{"8UC1", 1, false},
		{"rgba8", 4, false},
		{"bgra8", 4, false},
		{"mono16", 0, true},
		{"yuv422", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			got, err := Channels(tt.encoding)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedEncoding) {
					t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
				}
				if IsSupported(tt.encoding) {
					t.Errorf("IsSupported(%q) = true", tt.encoding)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Channels(%q) = %d, want %d", tt.encoding, got, tt.want)
			}
		})
	}
}

func TestImage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		img     Image
		wantErr error
	}{
		{
			name: "tight mono",
			img:  Image{Width: 2, Height: 2, Encoding: "mono8", Step: 2, Data: make([]byte, 4)},
		},
		{
			name: "zero step means packed",
			img:  Image{Width: 2, Height: 2, Encoding: "rgb8", Data: make([]byte, 12)},
		},
		{
			name: "padded last row may be short",
			img:  Image{Width: 2, Height: 2, Encoding: "mono8", Step: 4, Data: make([]byte, 6)},
		},
		{
			name:    "zero width",
			img:     Image{Width: 0, Height: 2, Encoding: "mono8"},
			wantErr: ErrEmptyImage,
		},
		{
			name:    "unsupported",
			img:     Image{Width: 1, Height: 1, Encoding: "32FC1", Data: make([]byte, 4)},
			wantErr: ErrUnsupportedEncoding,
		},
		{
			name:    "step shorter than row",
			img:     Image{Width: 4, Height: 1, Encoding: "rgb8", Step: 6, Data: make([]byte, 12)},
			wantErr: ErrBadStep,
		},
		{
			name:    "short payload",
			img:     Image{Width: 2, Height: 2, Encoding: "bgr8", Step: 6, Data: make([]byte, 11)},
			wantErr: ErrShortPayload,
		},
		{
			name:    "header size wraps int",
			img:     Image{Width: 1<<31 - 1, Height: 1 << 30, Encoding: "rgba8", Data: []byte{1, 2, 3, 4}},
			wantErr: ErrShortPayload,
		},
		{
			name:    "huge step on tiny payload",
			img:     Image{Width: 1, Height: 1 << 30, Encoding: "mono8", Step: 1<<32 - 1, Data: []byte{1, 2, 3, 4}},
			wantErr: ErrShortPayload,
		},
		{
			name:    "width beyond int32",
			img:     Image{Width: 1<<32 - 1, Height: 1 << 30, Encoding: "rgba8", Data: []byte{1, 2, 3, 4}},
			wantErr: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestImage_PackTight(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	img := Image{Width: 3, Height: 2, Encoding: "mono8", Step: 3, Data: data}

	got, err := img.Pack()
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %v, want %v", got, data)
	}
	if &got[0] != &data[0] {
		t.Error("expected packed payload to be returned without copying")
	}
}

func TestImage_PackStripsPadding(t *testing.T) {
	// 2x2 rgb8 with two bytes of padding per row
	img := Image{
		Width:    2,
		Height:   2,
		Encoding: "rgb8",
		Step:     8,
		Data: []byte{
			1, 2, 3, 4, 5, 6, 0xEE, 0xEE,
			7, 8, 9, 10, 11, 12, 0xEE, 0xEE,
		},
	}

	got, err := img.Pack()
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestImage_PackRejectsOversizedHeader(t *testing.T) {
	img := Image{Width: 1<<31 - 1, Height: 1 << 30, Encoding: "rgba8", Data: []byte{1, 2, 3, 4}}

	got, err := img.Pack()
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no pixels, got %d bytes", len(got))
	}
}

func TestImage_PackTrimsTrailingBytes(t *testing.T) {
	img := Image{Width: 2, Height: 1, Encoding: "mono8", Data: []byte{9, 8, 7, 6}}

	got, err := img.Pack()
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 bytes, got %d", len(got))
	}
}

func TestImage_UnmarshalRosbridge(t *testing.T) {
	pixels := []byte{10, 20, 30, 40, 50, 60}
	raw := `{
		"header": {"stamp": {"sec": 12, "nanosec": 500}, "frame_id": "camera_link"},
		"height": 1,
		"width": 2,
		"encoding": "rgb8",
		"is_bigendian": 0,
		"step": 6,
		"data": "` + base64.StdEncoding.EncodeToString(pixels) + `"
	}`

	var img Image
	if err := json.Unmarshal([]byte(raw), &img); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if img.Header.FrameID != "camera_link" || img.Header.Stamp.Sec != 12 {
		t.Errorf("unexpected header: %+v", img.Header)
	}
	if img.Width != 2 || img.Height != 1 || img.Step != 6 {
		t.Errorf("unexpected size: %s", img.String())
	}
	if !bytes.Equal(img.Data, pixels) {
		t.Errorf("Data: got %v, want %v", img.Data, pixels)
	}
	if err := img.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestImage_String(t *testing.T) {
	img := Image{Encoding: "rgb8", Width: 640, Height: 480, Step: 1920}
	if got := img.String(); got != "rgb8 640x480 step=1920" {
		t.Errorf("String() = %q", got)
	}
}
