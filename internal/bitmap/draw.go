package bitmap

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// face is the fixed 7x13 font used for all zone text. Typography is part of
// the device's visual contract; it is deliberately not configurable.
var face = basicfont.Face7x13

// Fill paints the entire raster white or black, keeping pad bits zero.
func (r *Raster) Fill(white bool) {
	var b byte
	if white {
		b = 0xFF
	}
	for i := range r.Pix {
		r.Pix[i] = b
	}
	if !white {
		return
	}
	if rem := r.Width % 8; rem != 0 {
		mask := byte(0xFF << (8 - rem))
		for y := 0; y < r.Height; y++ {
			r.Pix[y*r.Stride+r.Stride-1] &= mask
		}
	}
}

// FillRect paints a rectangle. Coordinates outside the raster are clipped.
func (r *Raster) FillRect(x, y, w, h int, white bool) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			r.SetPixel(xx, yy, white)
		}
	}
}

// DrawHLine draws a 1-pixel horizontal line.
func (r *Raster) DrawHLine(x, y, w int, white bool) {
	r.FillRect(x, y, w, 1, white)
}

// DrawText renders a single line of text with its baseline at y.
// White text on black regions, black text on white, per the white flag.
func (r *Raster) DrawText(x, y int, text string, white bool) {
	src := image.NewUniform(color.Gray{})
	if white {
		src = image.NewUniform(color.Gray{Y: 0xFF})
	}
	d := font.Drawer{
		Dst:  r,
		Src:  src,
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// DrawTextScaled renders text at an integer multiple of the base face size
// by rasterizing at 1x and expanding each pixel into a scale×scale block.
// The anchor (x, y) is the baseline of the scaled text. Scale values below 2
// fall through to DrawText.
func (r *Raster) DrawTextScaled(x, y int, text string, scale int, white bool) {
	if scale < 2 {
		r.DrawText(x, y, text, white)
		return
	}

	w := TextWidth(text)
	h := TextHeight()
	if w <= 0 {
		return
	}

	tmp, err := NewRaster(w, h+face.Descent)
	if err != nil {
		return
	}
	if !white {
		tmp.Fill(true)
	}
	tmp.DrawText(0, h-face.Descent, text, white)

	top := y - (h-face.Descent)*scale
	for ty := 0; ty < tmp.Height; ty++ {
		for tx := 0; tx < tmp.Width; tx++ {
			if tmp.Pixel(tx, ty) != white {
				continue
			}
			r.FillRect(x+tx*scale, top+ty*scale, scale, scale, white)
		}
	}
}

// TextWidth returns the rendered width of text in pixels.
func TextWidth(text string) int {
	return font.MeasureString(face, text).Ceil()
}

// TextHeight returns the line height of the zone font in pixels.
func TextHeight() int {
	return face.Height
}
