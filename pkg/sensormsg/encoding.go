package sensormsg

import "fmt"

// Encodings understood by the viewer. Names follow sensor_msgs/image_encodings.
const (
	EncodingRGB8  = "rgb8"
	EncodingBGR8  = "bgr8"
	EncodingRGBA8 = "rgba8"
	EncodingBGRA8 = "bgra8"
	EncodingMono8 = "mono8"
	Encoding8UC1  = "8UC1"
)

var channelsByEncoding = map[string]int{
	EncodingRGB8:  3,
	EncodingBGR8:  3,
	EncodingRGBA8: 4,
	EncodingBGRA8: 4,
	EncodingMono8: 1,
	Encoding8UC1:  1,
}

// Channels returns the number of 8-bit channels per pixel for encoding.
func Channels(encoding string) (int, error) {
	ch, ok := channelsByEncoding[encoding]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
	return ch, nil
}

// IsSupported reports whether encoding can be decoded.
func IsSupported(encoding string) bool {
	_, ok := channelsByEncoding[encoding]
	return ok
}
