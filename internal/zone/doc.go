// Package zone maps zone identifiers to display rectangles and renders
// dashboard snapshots into 1-bit rasters for those rectangles.
//
// The layout is fixed for an 800x480 panel. Primitive zones tile the canvas
// (header, divider, summary, legs, footer); composite zones are the coarse
// identifiers older firmware requests (time, weather, trains, trams, coffee)
// and resolve to the first of their subzones that has renderable content, or
// to a blank raster at the composite's own dimensions.
//
// Resolution never fails for a known id. A snapshot missing the data a zone
// needs degrades that zone to blank rather than erroring, so a device always
// receives a raster that preserves the display layout.
package zone
