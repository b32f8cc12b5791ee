package mqtt

import "fmt"

// Topic prefixes for CommuteCompute MQTT traffic.
//
// All topics use the flat scheme: commutecompute/{category}/...
const (
	// TopicPrefix is the base for all CommuteCompute topics.
	TopicPrefix = "commutecompute"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "commutecompute/system"
)

// Topics provides builders for CommuteCompute MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// ZoneUpdate returns the topic announcing fresh content for a zone.
//
// Example: commutecompute/zone/header/update
func (Topics) ZoneUpdate(zoneID string) string {
	return fmt.Sprintf("%s/zone/%s/update", TopicPrefix, zoneID)
}

// DeviceStatus returns the topic for a device's health checkins.
//
// Example: commutecompute/device/a1b2c3/status
func (Topics) DeviceStatus(deviceKey string) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefix, deviceKey)
}

// DevicePaired returns the topic announcing a completed pairing.
//
// Example: commutecompute/device/a1b2c3/paired
func (Topics) DevicePaired(deviceKey string) string {
	return fmt.Sprintf("%s/device/%s/paired", TopicPrefix, deviceKey)
}

// SystemStatus returns the server online/offline status topic. Used for
// the retained status message and the Last Will.
//
// Example: commutecompute/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemRefresh returns the command topic requesting a full content
// re-send. Operators publish here to invalidate the server's sync cache.
//
// Example: commutecompute/system/refresh
func (Topics) SystemRefresh() string {
	return fmt.Sprintf("%s/refresh", TopicPrefixSystem)
}

// AllZoneUpdates returns a pattern matching every zone update.
//
// Pattern: commutecompute/zone/+/update
func (Topics) AllZoneUpdates() string {
	return fmt.Sprintf("%s/zone/+/update", TopicPrefix)
}

// AllDeviceStatus returns a pattern matching every device checkin.
//
// Pattern: commutecompute/device/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/device/+/status", TopicPrefix)
}

// AllTopics returns a pattern matching all CommuteCompute topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: commutecompute/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
