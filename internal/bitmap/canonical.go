package bitmap

// Canonical rasters used as resolver fallbacks.
//
// Both are plain constant content: a blank zone is all white, the divider is
// a solid black band. They round-trip through Encode/Decode exactly like any
// hand-built raster of the same dimensions, which the sync cache depends on —
// a zone that degrades to blank must fingerprint identically every time.

// Blank returns an all-white raster of the given dimensions.
func Blank(width, height int) *Raster {
	r, err := NewRaster(width, height)
	if err != nil {
		// Callers pass dimensions from the fixed zone table; a bad size
		// here is a programming error, not a runtime condition.
		panic(err)
	}
	r.Fill(true)
	return r
}

// Divider returns the solid black separator band drawn between the header
// and the rest of the dashboard.
func Divider(width, height int) *Raster {
	r, err := NewRaster(width, height)
	if err != nil {
		panic(err)
	}
	return r
}
