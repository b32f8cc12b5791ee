package zone

import (
	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/dashboard"
)

// Resolve renders the zone identified by id from the snapshot.
//
// The reserved divider id always yields the canonical divider raster. Other
// primitive zones render directly, degrading to blank when the snapshot has
// no content for them. A composite id tries its subzones in declared order
// at the composite's own dimensions and takes the first that renders; if
// none do, it yields the canonical blank raster sized to the composite's
// rectangle. Resolution is deterministic for a given snapshot.
//
// Only an unknown id returns an error.
func Resolve(id string, snap *dashboard.Snapshot) (*bitmap.Raster, error) {
	if id == DividerID {
		z := primitiveByID[DividerID]
		return bitmap.Divider(z.Rect.W, z.Rect.H), nil
	}

	if z, ok := primitiveByID[id]; ok {
		if r, drawn := renderers[id](z.Rect.W, z.Rect.H, snap); drawn {
			return r, nil
		}
		return bitmap.Blank(z.Rect.W, z.Rect.H), nil
	}

	c, ok := compositeByID[id]
	if !ok {
		return nil, ErrUnknownZone
	}
	for _, sub := range c.subzones {
		render, exists := renderers[sub]
		if !exists {
			continue
		}
		if r, drawn := render(c.Rect.W, c.Rect.H, snap); drawn {
			return r, nil
		}
	}
	return bitmap.Blank(c.Rect.W, c.Rect.H), nil
}
