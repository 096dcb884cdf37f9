package sensormsg

import "errors"

var (
	// ErrUnsupportedEncoding is returned for encodings without a channel mapping.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrEmptyImage is returned when width or height is zero.
	ErrEmptyImage = errors.New("empty image")

	// ErrTooLarge is returned when width or height exceeds MaxDimension.
	ErrTooLarge = errors.New("image too large")

	// ErrBadStep is returned when step is shorter than one row of pixels.
	ErrBadStep = errors.New("step shorter than row")

	// ErrShortPayload is returned when data holds fewer bytes than the layout needs.
	ErrShortPayload = errors.New("payload too short")
)
