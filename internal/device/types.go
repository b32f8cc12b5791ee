package device

import "time"

// Device is one e-ink display known to the server.
type Device struct {
	// Key is the stable identity derived from the device's opaque token.
	Key string `json:"key"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// FirmwareVersion is the last version string the device reported.
	FirmwareVersion string `json:"firmware_version,omitempty"`

	// BatteryMillivolts is the last reported battery reading; 0 when the
	// device has never reported one (mains powered units do not).
	BatteryMillivolts int `json:"battery_mv,omitempty"`

	// RSSI is the last reported WiFi signal strength in dBm; 0 when never
	// reported.
	RSSI int `json:"rssi,omitempty"`

	// FetchCount is the total number of zone fetches served to this device.
	FetchCount int64 `json:"fetch_count"`
}

// Checkin is the health payload a device posts alongside its fetch cycle.
// Zero-valued fields were not reported and leave the stored value alone.
type Checkin struct {
	FirmwareVersion   string `json:"firmware_version,omitempty"`
	BatteryMillivolts int    `json:"battery_mv,omitempty"`
	RSSI              int    `json:"rssi,omitempty"`
}

// DeepCopy returns a copy of d. Device currently has no reference fields,
// so this is a plain value copy kept for cache hygiene at call sites.
func (d *Device) DeepCopy() *Device {
	out := *d
	return &out
}
