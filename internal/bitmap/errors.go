package bitmap

import "errors"

// Domain errors for the bitmap package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, bitmap.ErrMalformedBitmap) {
//	    // reject the payload, fall back to a blank zone
//	}
var (
	// ErrMalformedBitmap is returned when a buffer cannot be parsed as a
	// monochrome BMP: bad magic bytes, truncated data, or an unsupported
	// header (anything other than uncompressed 1-bit).
	ErrMalformedBitmap = errors.New("bitmap: malformed")

	// ErrInvalidDimensions is returned when a raster is requested with a
	// non-positive width or height.
	ErrInvalidDimensions = errors.New("bitmap: invalid dimensions")
)
