// Package api provides the HTTP API server for CommuteCompute Core.
//
// It exposes the device-facing protocol surface (pairing, zone fetch,
// health checkins) plus a small operator surface (device list, metrics).
// Displays poll; the server never pushes.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
