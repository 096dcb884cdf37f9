// Package sensormsg models the ROS 2 sensor_msgs/msg/Image message as it
// arrives over rosbridge, and the pixel-layout rules needed to turn its flat
// byte buffer into a raster.
package sensormsg

import (
	"fmt"
	"math"
)

// MessageType is the ROS 2 type name for Image.
const MessageType = "sensor_msgs/msg/Image"

// MaxDimension bounds Width and Height; OpenCV takes rows and cols as int32.
const MaxDimension = math.MaxInt32

// Time mirrors builtin_interfaces/msg/Time.
type Time struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// Header mirrors std_msgs/msg/Header.
type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Image is an uncompressed image.
// Data is row-major; each row occupies Step bytes, of which the first
// Width*channels are pixels. rosbridge sends Data base64-encoded, which
// encoding/json decodes into []byte without help.
type Image struct {
	Header      Header `json:"header"`
	Height      uint32 `json:"height"`
	Width       uint32 `json:"width"`
	Encoding    string `json:"encoding"`
	IsBigEndian uint8  `json:"is_bigendian"`
	Step        uint32 `json:"step"`
	Data        []byte `json:"data"`
}

// Channels returns the channel count for the image's encoding.
func (m *Image) Channels() (int, error) {
	return Channels(m.Encoding)
}

// RowBytes is the number of pixel bytes in one row, excluding padding.
func (m *Image) RowBytes() (int, error) {
	ch, err := m.Channels()
	if err != nil {
		return 0, err
	}
	return int(m.Width) * ch, nil
}

// Stride is the distance in bytes between the starts of two rows.
// A zero Step means the rows are tightly packed.
func (m *Image) Stride() (int, error) {
	row, err := m.RowBytes()
	if err != nil {
		return 0, err
	}
	if m.Step == 0 {
		return row, nil
	}
	return int(m.Step), nil
}

// Validate checks that the payload can be read as Height rows of Width pixels.
func (m *Image) Validate() error {
	if m.Width == 0 || m.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyImage, m.Width, m.Height)
	}
	if m.Width > MaxDimension || m.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, m.Width, m.Height)
	}

	row, err := m.RowBytes()
	if err != nil {
		return err
	}

	if m.Step != 0 && int(m.Step) < row {
		return fmt.Errorf("%w: step %d < row %d", ErrBadStep, m.Step, row)
	}

	// stride < 2^35 and Height < 2^31, so the product fits in uint64
	stride, _ := m.Stride()
	need := uint64(stride)*uint64(m.Height-1) + uint64(row)
	if uint64(len(m.Data)) < need {
		return fmt.Errorf("%w: got %d bytes, need %d", ErrShortPayload, len(m.Data), need)
	}

	return nil
}

// Pack returns the pixels as a tightly packed Height*Width*channels buffer.
// When the rows carry no padding the payload is returned without copying.
func (m *Image) Pack() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	row, _ := m.RowBytes()
	stride, _ := m.Stride()
	size := row * int(m.Height)

	if stride == row {
		return m.Data[:size], nil
	}

	out := make([]byte, size)
	for y := 0; y < int(m.Height); y++ {
		copy(out[y*row:(y+1)*row], m.Data[y*stride:y*stride+row])
	}
	return out, nil
}

// String describes the layout, e.g. "rgb8 640x480 step=1920".
func (m *Image) String() string {
	return fmt.Sprintf("%s %dx%d step=%d", m.Encoding, m.Width, m.Height, m.Step)
}
