// Package bitmap implements the 1-bit raster type and the BMP wire codec used
// to ship zone content to e-ink displays.
//
// The wire format is a minimal monochrome BMP: a 14-byte file header, a
// 40-byte info header, a two-entry colour table (black, white) and packed
// pixel rows padded to a 4-byte boundary. The sign of the height field
// carries the row orientation (positive = bottom-up, negative = top-down),
// matching what the display firmware's BMP loader expects.
//
// Raster implements image.Image and draw.Image so zone renderers can draw
// text onto it with golang.org/x/image/font.
//
// Encoding is deterministic: unused pad bits are always zero, so identical
// rasters always produce identical bytes. This property is what makes the
// content fingerprinting in the sync cache meaningful.
package bitmap
