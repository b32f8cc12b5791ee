package zone

import "errors"

// ErrUnknownZone is returned when a zone id is neither a primitive nor a
// composite in the layout table.
var ErrUnknownZone = errors.New("zone: unknown zone id")
