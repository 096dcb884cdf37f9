// Package frame converts sensor_msgs images into OpenCV matrices in BGR
// order, the layout gocv's window and file writers expect.
package frame

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-x500cam/pkg/sensormsg"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used by EncodeJPEG when quality is out of range.
const DefaultJPEGQuality = 80

var matTypeByChannels = map[int]gocv.MatType{
	1: gocv.MatTypeCV8UC1,
	3: gocv.MatTypeCV8UC3,
	4: gocv.MatTypeCV8UC4,
}

// conversions maps encodings that are not already BGR or single-channel.
var conversions = map[string]gocv.ColorConversionCode{
	sensormsg.EncodingRGB8:  gocv.ColorRGBToBGR,
	sensormsg.EncodingRGBA8: gocv.ColorRGBAToBGR,
	sensormsg.EncodingBGRA8: gocv.ColorBGRAToBGR,
}

// ToMat reshapes img's payload into a height x width Mat and converts it to
// BGR where needed. The caller owns the returned Mat and must Close it.
func ToMat(img *sensormsg.Image) (gocv.Mat, error) {
	channels, err := img.Channels()
	if err != nil {
		return gocv.NewMat(), err
	}

	pixels, err := img.Pack()
	if err != nil {
		return gocv.NewMat(), err
	}

	mt, ok := matTypeByChannels[channels]
	if !ok {
		return gocv.NewMat(), fmt.Errorf("no mat type for %d channels", channels)
	}

	// NewMatFromBytes does not copy; the Mat must not outlive pixels.
	src, err := gocv.NewMatFromBytes(int(img.Height), int(img.Width), mt, pixels)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("reshape %s: %w", img, err)
	}
	defer src.Close()

	code, convert := conversions[img.Encoding]
	if !convert {
		return src.Clone(), nil
	}

	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, code)
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("convert %s to bgr failed", img.Encoding)
	}
	return dst, nil
}

// Scale resizes m by factor using area interpolation. A factor of 0 or 1
// returns a copy of m.
func Scale(m gocv.Mat, factor float64) (gocv.Mat, error) {
	if factor < 0 {
		return gocv.NewMat(), fmt.Errorf("invalid scale factor %.2f", factor)
	}
	if factor == 0 || factor == 1 {
		return m.Clone(), nil
	}

	dst := gocv.NewMat()
	gocv.Resize(m, &dst, image.Point{}, factor, factor, gocv.InterpolationArea)
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("resize by %.2f failed", factor)
	}
	return dst, nil
}

// EncodeJPEG compresses m for streaming to browsers.
func EncodeJPEG(m gocv.Mat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory released by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
