package bitmap

import (
	"encoding/binary"
	"fmt"
)

// BMP container layout constants.
const (
	fileHeaderSize = 14
	infoHeaderSize = 40
	paletteSize    = 8 // two BGRA entries

	// pixelDataOffset is where packed rows begin. The display firmware's
	// loader hard-codes this value, so it must never move.
	pixelDataOffset = fileHeaderSize + infoHeaderSize + paletteSize

	// bmpPPM is the pixel density recorded in the info header
	// (2835 px/m ≈ 72 DPI). Purely informational.
	bmpPPM = 2835
)

// rowSize returns the on-wire byte width of a row padded to 4 bytes.
func rowSize(width int) int {
	return ((width + 31) / 32) * 4
}

// EncodedSize returns the total number of bytes Encode will produce for a
// raster of the given dimensions.
func EncodedSize(width, height int) int {
	return pixelDataOffset + rowSize(width)*height
}

// Encode serialises a raster into the monochrome BMP wire format.
//
// The output is deterministic: identical rasters always yield identical
// bytes, so the encoded form is safe to fingerprint for change detection.
func Encode(r *Raster) []byte {
	row := rowSize(r.Width)
	total := pixelDataOffset + row*r.Height
	buf := make([]byte, total)

	// File header
	buf[0] = 'B'
	buf[1] = 'M'
	binary.LittleEndian.PutUint32(buf[2:], uint32(total))
	binary.LittleEndian.PutUint32(buf[10:], pixelDataOffset)

	// Info header
	binary.LittleEndian.PutUint32(buf[14:], infoHeaderSize)
	binary.LittleEndian.PutUint32(buf[18:], uint32(r.Width))
	height := int32(r.Height)
	if r.TopDown {
		height = -height
	}
	binary.LittleEndian.PutUint32(buf[22:], uint32(height))
	binary.LittleEndian.PutUint16(buf[26:], 1) // colour planes
	binary.LittleEndian.PutUint16(buf[28:], 1) // bits per pixel
	binary.LittleEndian.PutUint32(buf[30:], 0) // BI_RGB, uncompressed
	binary.LittleEndian.PutUint32(buf[34:], uint32(row*r.Height))
	binary.LittleEndian.PutUint32(buf[38:], bmpPPM)
	binary.LittleEndian.PutUint32(buf[42:], bmpPPM)
	binary.LittleEndian.PutUint32(buf[46:], 2) // colours used
	binary.LittleEndian.PutUint32(buf[50:], 0) // all colours important

	// Colour table: index 0 black, index 1 white (BGRA)
	buf[58] = 0xFF
	buf[59] = 0xFF
	buf[60] = 0xFF

	// Pixel rows. Pix is stored top-to-bottom; a positive height means the
	// wire carries rows bottom-up, so reverse on the way out.
	for y := 0; y < r.Height; y++ {
		src := r.Pix[y*r.Stride : y*r.Stride+r.Stride]
		wireRow := y
		if !r.TopDown {
			wireRow = r.Height - 1 - y
		}
		copy(buf[pixelDataOffset+wireRow*row:], src)
	}

	return buf
}

// Decode parses a monochrome BMP buffer into a raster.
//
// Only the exact container Encode produces is accepted: uncompressed 1-bit
// with a two-entry palette. Anything else — wrong magic, truncated pixel
// data, unexpected bit depth — returns ErrMalformedBitmap rather than
// reading past the buffer.
func Decode(data []byte) (*Raster, error) {
	if len(data) < pixelDataOffset {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the smallest valid file", ErrMalformedBitmap, len(data))
	}
	if data[0] != 'B' || data[1] != 'M' {
		return nil, fmt.Errorf("%w: bad magic bytes", ErrMalformedBitmap)
	}

	offset := binary.LittleEndian.Uint32(data[10:])
	if offset < pixelDataOffset || int64(offset) > int64(len(data)) {
		return nil, fmt.Errorf("%w: pixel data offset out of range", ErrMalformedBitmap)
	}
	if binary.LittleEndian.Uint32(data[14:]) != infoHeaderSize {
		return nil, fmt.Errorf("%w: unsupported info header", ErrMalformedBitmap)
	}

	width := int(int32(binary.LittleEndian.Uint32(data[18:])))
	rawHeight := int(int32(binary.LittleEndian.Uint32(data[22:])))
	topDown := rawHeight < 0
	height := rawHeight
	if topDown {
		height = -height
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrMalformedBitmap, width, rawHeight)
	}

	if planes := binary.LittleEndian.Uint16(data[26:]); planes != 1 {
		return nil, fmt.Errorf("%w: %d colour planes", ErrMalformedBitmap, planes)
	}
	if bpp := binary.LittleEndian.Uint16(data[28:]); bpp != 1 {
		return nil, fmt.Errorf("%w: %d bits per pixel (want 1)", ErrMalformedBitmap, bpp)
	}
	if comp := binary.LittleEndian.Uint32(data[30:]); comp != 0 {
		return nil, fmt.Errorf("%w: compressed pixel data", ErrMalformedBitmap)
	}

	row := rowSize(width)
	need := int64(offset) + int64(row)*int64(height)
	if need > int64(len(data)) {
		return nil, fmt.Errorf("%w: truncated pixel data (need %d bytes, have %d)", ErrMalformedBitmap, need, len(data))
	}

	r, err := NewRaster(width, height)
	if err != nil {
		return nil, err
	}
	r.TopDown = topDown

	// The final data byte of each row may carry junk in its pad bits from
	// foreign encoders; mask them so decoded rasters compare cleanly.
	var tailMask byte = 0xFF
	if rem := width % 8; rem != 0 {
		tailMask = 0xFF << (8 - rem)
	}

	for y := 0; y < height; y++ {
		wireRow := y
		if !topDown {
			wireRow = height - 1 - y
		}
		src := data[int(offset)+wireRow*row:]
		copy(r.Pix[y*r.Stride:y*r.Stride+r.Stride], src[:r.Stride])
		r.Pix[y*r.Stride+r.Stride-1] &= tailMask
	}

	return r, nil
}
