package zone

// Canvas dimensions of the target panel.
const (
	CanvasWidth  = 800
	CanvasHeight = 480
)

// DividerID is the reserved separator zone. It always resolves to the
// canonical divider raster regardless of snapshot content.
const DividerID = "divider"

// Rect is a zone's position on the canvas. Rectangles are immutable for a
// given id; the tables below are the single source of truth.
type Rect struct {
	X, Y, W, H int
}

// Zone is a named rectangle with independently trackable content.
type Zone struct {
	ID   string
	Rect Rect
}

// primitives tile the current panel layout, top to bottom.
var primitives = []Zone{
	{ID: "header", Rect: Rect{X: 0, Y: 0, W: 800, H: 94}},
	{ID: DividerID, Rect: Rect{X: 0, Y: 94, W: 800, H: 2}},
	{ID: "summary", Rect: Rect{X: 0, Y: 96, W: 800, H: 28}},
	{ID: "legs", Rect: Rect{X: 0, Y: 132, W: 800, H: 316}},
	{ID: "footer", Rect: Rect{X: 0, Y: 448, W: 800, H: 32}},
}

// composite is a coarse zone id from the previous panel generation. It keeps
// its original rectangle and resolves through an ordered subzone list.
type composite struct {
	Zone
	subzones []string
}

var composites = []composite{
	{Zone: Zone{ID: "time", Rect: Rect{X: 20, Y: 45, W: 180, H: 70}}, subzones: []string{"header"}},
	{Zone: Zone{ID: "weather", Rect: Rect{X: 620, Y: 10, W: 160, H: 95}}, subzones: []string{"header"}},
	{Zone: Zone{ID: "trains", Rect: Rect{X: 20, Y: 155, W: 370, H: 150}}, subzones: []string{"legs", "summary"}},
	{Zone: Zone{ID: "trams", Rect: Rect{X: 410, Y: 155, W: 370, H: 150}}, subzones: []string{"legs", "summary"}},
	{Zone: Zone{ID: "coffee", Rect: Rect{X: 20, Y: 315, W: 760, H: 65}}, subzones: []string{"legs", "summary"}},
}

var (
	primitiveByID = make(map[string]Zone, len(primitives))
	compositeByID = make(map[string]composite, len(composites))
)

func init() {
	for _, z := range primitives {
		primitiveByID[z.ID] = z
	}
	for _, c := range composites {
		compositeByID[c.ID] = c
	}
}

// Lookup returns the zone for id, primitive or composite.
func Lookup(id string) (Zone, error) {
	if z, ok := primitiveByID[id]; ok {
		return z, nil
	}
	if c, ok := compositeByID[id]; ok {
		return c.Zone, nil
	}
	return Zone{}, ErrUnknownZone
}

// Primitives returns the primitive zones in layout order. The slice is a
// copy; callers may not mutate the layout through it.
func Primitives() []Zone {
	out := make([]Zone, len(primitives))
	copy(out, primitives)
	return out
}
