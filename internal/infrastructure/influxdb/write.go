package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteZoneSync records a zone synchronisation event.
//
// Called from a dispatch hook whenever a device pulls fresh zone content.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceKey: Cache partition key of the requesting device
//   - zoneID: The zone that was synced (e.g., "header", "legs")
//   - fingerprint: Content fingerprint of the delivered raster
//   - sentBytes: Size of the BMP payload delivered to the device
//
// Example:
//
//	client.WriteZoneSync("a1b2c3d4e5f60718", "legs", "00aabbccddeeff11", 29662)
func (c *Client) WriteZoneSync(deviceKey, zoneID, fingerprint string, sentBytes int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"zone_sync",
		map[string]string{
			"device_key": deviceKey,
			"zone_id":    zoneID,
		},
		map[string]interface{}{
			"sent_bytes":  sentBytes,
			"fingerprint": fingerprint,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus records a device health checkin.
//
// Battery voltage and signal strength trends are the main reason to keep
// this data: a slowly sagging battery_mv curve is the early warning for
// an e-ink display about to go dark.
//
// Parameters:
//   - deviceKey: Cache partition key of the device
//   - batteryMV: Battery voltage in millivolts (0 = unreported)
//   - rssi: WiFi signal strength in dBm (0 = unreported)
func (c *Client) WriteDeviceStatus(deviceKey string, batteryMV, rssi int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if batteryMV != 0 {
		fields["battery_mv"] = batteryMV
	}
	if rssi != 0 {
		fields["rssi"] = rssi
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_key": deviceKey,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("provider_stats",
//	    map[string]string{"provider": "demo"},
//	    map[string]interface{}{"snapshot_age_s": 12.5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
