// Package device tracks the display devices known to the server.
//
// Devices are registered implicitly: the first zone fetch or status checkin
// carrying a device key creates a record, and subsequent checkins update the
// health fields (battery voltage, WiFi signal, firmware version, last seen).
// The registry caches records in memory over a SQLite-backed repository.
//
// Nothing here gates access. The device key is a cache partition and a
// telemetry label, not a credential.
package device
