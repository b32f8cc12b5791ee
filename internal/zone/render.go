package zone

import (
	"fmt"

	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/dashboard"
)

// renderFunc draws one primitive zone's content at the given dimensions.
// The dimensions come from the requesting zone, so a composite can re-render
// a subzone at its own rectangle. The bool reports whether the snapshot held
// anything worth drawing; false means the caller should fall back.
type renderFunc func(w, h int, snap *dashboard.Snapshot) (*bitmap.Raster, bool)

var renderers = map[string]renderFunc{
	"header":  renderHeader,
	"summary": renderSummary,
	"legs":    renderLegs,
	"footer":  renderFooter,
}

const (
	marginX    = 20
	lineGap    = 4
	clockScale = 4
)

// renderHeader draws the clock and date on the left and current weather on
// the right.
func renderHeader(w, h int, snap *dashboard.Snapshot) (*bitmap.Raster, bool) {
	if snap == nil || (snap.Clock == "" && snap.Weather.Condition == "") {
		return nil, false
	}

	r := bitmap.Blank(w, h)
	textH := bitmap.TextHeight()

	if snap.Clock != "" {
		baseline := textH*clockScale + 8
		if baseline > h-2 {
			baseline = h - 2
		}
		r.DrawTextScaled(marginX, baseline, snap.Clock, clockScale, false)
		if snap.Date != "" && baseline+textH+lineGap <= h {
			r.DrawText(marginX, baseline+textH+lineGap, snap.Date, false)
		}
	}

	if snap.Weather.Condition != "" {
		temp := fmt.Sprintf("%.0fC", snap.Weather.TempC)
		tx := w - marginX - bitmap.TextWidth(temp)*2
		if tx < 0 {
			tx = 0
		}
		r.DrawTextScaled(tx, textH*2+8, temp, 2, false)
		cx := w - marginX - bitmap.TextWidth(snap.Weather.Condition)
		if cx < 0 {
			cx = 0
		}
		r.DrawText(cx, textH*2+8+textH+lineGap, snap.Weather.Condition, false)
	}

	return r, true
}

// renderSummary draws the one-line commute verdict, inverted for emphasis.
func renderSummary(w, h int, snap *dashboard.Snapshot) (*bitmap.Raster, bool) {
	if snap == nil || snap.Summary == "" {
		return nil, false
	}

	r := bitmap.Divider(w, h) // black background
	baseline := (h + bitmap.TextHeight()) / 2
	r.DrawText(marginX, baseline, snap.Summary, true)
	return r, true
}

// renderLegs draws one row per journey leg with a mode marker, title and
// subtitle, separated by hairlines.
func renderLegs(w, h int, snap *dashboard.Snapshot) (*bitmap.Raster, bool) {
	if snap == nil || len(snap.Legs) == 0 {
		return nil, false
	}

	r := bitmap.Blank(w, h)
	rowH := h / len(snap.Legs)
	if rowH < bitmap.TextHeight()+2 {
		rowH = bitmap.TextHeight() + 2
	}

	for i, leg := range snap.Legs {
		top := i * rowH
		if top >= h {
			break
		}
		drawLegMarker(r, marginX, top+rowH/2, leg.Kind)

		textX := marginX + 28
		baseline := top + rowH/2 - 2
		r.DrawText(textX, baseline, leg.Title(), false)
		if sub := leg.Subtitle(); sub != "" && baseline+bitmap.TextHeight()+lineGap < top+rowH {
			r.DrawText(textX, baseline+bitmap.TextHeight()+lineGap, sub, false)
		}
		if i > 0 {
			r.DrawHLine(marginX, top, w-2*marginX, false)
		}
	}

	return r, true
}

// renderFooter draws the status line.
func renderFooter(w, h int, snap *dashboard.Snapshot) (*bitmap.Raster, bool) {
	if snap == nil || snap.Status == "" {
		return nil, false
	}

	r := bitmap.Blank(w, h)
	r.DrawHLine(0, 0, w, false)
	r.DrawText(marginX, (h+bitmap.TextHeight())/2, snap.Status, false)
	return r, true
}

// drawLegMarker paints the mode glyph for a leg row, centred vertically at
// cy. One arm per transport mode.
func drawLegMarker(r *bitmap.Raster, x, cy int, kind dashboard.LegKind) {
	switch kind {
	case dashboard.LegWalk:
		// Outline square.
		r.FillRect(x, cy-8, 16, 16, false)
		r.FillRect(x+2, cy-6, 12, 12, true)
	case dashboard.LegTrain:
		// Solid square.
		r.FillRect(x, cy-8, 16, 16, false)
	case dashboard.LegTram:
		// Horizontal bars.
		r.FillRect(x, cy-8, 16, 5, false)
		r.FillRect(x, cy+3, 16, 5, false)
	case dashboard.LegBus:
		// Vertical bars.
		r.FillRect(x, cy-8, 5, 16, false)
		r.FillRect(x+11, cy-8, 5, 16, false)
	case dashboard.LegCoffee:
		// Small centred dot.
		r.FillRect(x+4, cy-4, 8, 8, false)
	}
}
