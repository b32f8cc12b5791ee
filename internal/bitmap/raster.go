package bitmap

import (
	"image"
	"image/color"
)

// Raster is a 1-bit-per-pixel monochrome grid, row-major, MSB first.
//
// A set bit is white (palette index 1), a clear bit is black (index 0).
// Rows are packed to Stride bytes with any unused bits in the final byte
// of a row held at zero — Set maintains this, Decode normalises it, and
// Equal relies on it.
type Raster struct {
	// Width and Height are the pixel dimensions. Both are positive.
	Width  int
	Height int

	// Stride is the number of bytes per row: (Width+7)/8.
	Stride int

	// TopDown records the row orientation carried on the wire. The Pix
	// slice is always stored top-to-bottom regardless; TopDown only
	// controls the sign of the height field when encoding.
	TopDown bool

	// Pix holds Stride*Height bytes of packed pixel data.
	Pix []byte
}

// NewRaster allocates an all-black raster of the given dimensions.
func NewRaster(width, height int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	stride := (width + 7) / 8
	return &Raster{
		Width:  width,
		Height: height,
		Stride: stride,
		Pix:    make([]byte, stride*height),
	}, nil
}

// ColorModel implements image.Image.
func (r *Raster) ColorModel() color.Model {
	return color.GrayModel
}

// Bounds implements image.Image.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// At implements image.Image. Set bits read as white, clear bits as black.
func (r *Raster) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.Gray{}
	}
	if r.bit(x, y) {
		return color.Gray{Y: 0xFF}
	}
	return color.Gray{}
}

// Set implements draw.Image. Colours at or above mid-grey become white.
// Writes outside the raster bounds are ignored.
func (r *Raster) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	const midGrey = 0x80
	if color.GrayModel.Convert(c).(color.Gray).Y >= midGrey {
		r.setBit(x, y)
	} else {
		r.clearBit(x, y)
	}
}

// SetPixel sets a single pixel: true for white, false for black.
func (r *Raster) SetPixel(x, y int, white bool) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	if white {
		r.setBit(x, y)
	} else {
		r.clearBit(x, y)
	}
}

// Pixel reports whether the pixel at (x, y) is white.
// Out-of-bounds reads are black.
func (r *Raster) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return false
	}
	return r.bit(x, y)
}

// Equal reports whether two rasters have identical dimensions, orientation
// and pixel content, including pad bits.
func (r *Raster) Equal(other *Raster) bool {
	if other == nil {
		return false
	}
	if r.Width != other.Width || r.Height != other.Height || r.TopDown != other.TopDown {
		return false
	}
	if len(r.Pix) != len(other.Pix) {
		return false
	}
	for i := range r.Pix {
		if r.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	pix := make([]byte, len(r.Pix))
	copy(pix, r.Pix)
	return &Raster{
		Width:   r.Width,
		Height:  r.Height,
		Stride:  r.Stride,
		TopDown: r.TopDown,
		Pix:     pix,
	}
}

func (r *Raster) bit(x, y int) bool {
	return r.Pix[y*r.Stride+x/8]&(0x80>>(x%8)) != 0
}

func (r *Raster) setBit(x, y int) {
	r.Pix[y*r.Stride+x/8] |= 0x80 >> (x % 8)
}

func (r *Raster) clearBit(x, y int) {
	r.Pix[y*r.Stride+x/8] &^= 0x80 >> (x % 8)
}
