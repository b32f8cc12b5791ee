package dashboard

import (
	"fmt"
	"time"
)

// LegKind identifies the transport mode of a journey leg.
//
// The set is closed: renderers switch exhaustively over it and treat any
// other value as a programming error.
type LegKind int

// Journey leg kinds.
const (
	LegWalk LegKind = iota
	LegTrain
	LegTram
	LegBus
	LegCoffee
)

// String returns the lower-case mode name for logging and telemetry tags.
func (k LegKind) String() string {
	switch k {
	case LegWalk:
		return "walk"
	case LegTrain:
		return "train"
	case LegTram:
		return "tram"
	case LegBus:
		return "bus"
	case LegCoffee:
		return "coffee"
	default:
		return fmt.Sprintf("LegKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared leg kinds.
func (k LegKind) Valid() bool {
	return k >= LegWalk && k <= LegCoffee
}

// Leg is one step of the commute: a walk, a public transport ride, or the
// coffee stop the journey is planned around.
type Leg struct {
	Kind LegKind

	// Route is the line or route identifier ("86", "Mernda") for transit
	// legs; empty for walks and coffee.
	Route string

	// Destination is where the leg ends ("Southern Cross", "Market St").
	Destination string

	// DepartIn is minutes until the leg should begin.
	DepartIn int

	// Duration is the leg's expected travel (or dwell) time in minutes.
	Duration int

	// Status is an optional disruption note ("delayed 4 min", "on time").
	Status string
}

// Title returns the rendered heading for a leg. One case per variant; the
// default arm only fires on an invalid kind.
func (l Leg) Title() string {
	switch l.Kind {
	case LegWalk:
		return fmt.Sprintf("WALK %d MIN TO %s", l.Duration, l.Destination)
	case LegTrain:
		return fmt.Sprintf("TRAIN %s TO %s", l.Route, l.Destination)
	case LegTram:
		return fmt.Sprintf("TRAM #%s TO %s", l.Route, l.Destination)
	case LegBus:
		return fmt.Sprintf("BUS %s TO %s", l.Route, l.Destination)
	case LegCoffee:
		return fmt.Sprintf("COFFEE AT %s", l.Destination)
	default:
		return "UNKNOWN LEG"
	}
}

// Subtitle returns the second rendered line for a leg.
func (l Leg) Subtitle() string {
	switch l.Kind {
	case LegWalk:
		return fmt.Sprintf("leave in %d min", l.DepartIn)
	case LegTrain, LegTram, LegBus:
		if l.Status != "" {
			return fmt.Sprintf("departs %d min  %s", l.DepartIn, l.Status)
		}
		return fmt.Sprintf("departs %d min", l.DepartIn)
	case LegCoffee:
		return fmt.Sprintf("%d min window", l.Duration)
	default:
		return ""
	}
}

// Weather is the current-conditions summary shown in the header.
type Weather struct {
	Condition string
	TempC     float64
}

// Snapshot is the complete, immutable view of the dashboard at one instant.
// It is created per request (or reused briefly via Cached) and consumed by
// exactly one dispatch.
type Snapshot struct {
	GeneratedAt time.Time

	// Clock and Date are pre-formatted display strings ("07:42", "TUE 12 AUG").
	Clock string
	Date  string

	Weather Weather

	// Summary is the one-line commute verdict ("LEAVE IN 6 MIN — ON TIME").
	Summary string

	// Legs are the journey steps in travel order.
	Legs []Leg

	// Status is the footer line (data source, last update, battery hints).
	Status string
}
