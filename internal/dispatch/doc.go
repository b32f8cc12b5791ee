// Package dispatch is the server side of the zone sync protocol.
//
// A dispatch takes a device key, a zone id and a force flag, renders the
// zone from the current dashboard snapshot, fingerprints the encoded bytes
// and consults the sync cache. The result is either "unchanged" or the fresh
// bytes with fingerprint and rectangle metadata. Repeated identical requests
// are idempotent; force bypasses the cache for recovery after a device
// discarded its last render.
//
// Optional hooks publish zone updates over MQTT and record sync metrics to
// InfluxDB. Both are best-effort and never fail a dispatch.
package dispatch
