package dispatch

import (
	"context"
	"fmt"

	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/dashboard"
	"github.com/m1ckyb/commutecompute-core/internal/synccache"
	"github.com/m1ckyb/commutecompute-core/internal/zone"
)

// Logger defines the logging interface used by the Dispatcher.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Hook receives completed sync decisions for telemetry fan-out. Hooks must
// not block; failures are logged and swallowed.
type Hook interface {
	ZoneSynced(deviceKey, zoneID, fingerprint string, sentBytes int)
}

// Result is the outcome of one dispatch.
type Result struct {
	// Unchanged is true when the device already holds this content; Bytes
	// is nil in that case.
	Unchanged   bool
	Bytes       []byte
	Fingerprint string
	Rect        zone.Rect
}

// Dispatcher wires the resolver, codec and sync cache into the
// single-exchange-per-zone protocol.
type Dispatcher struct {
	provider dashboard.Provider
	cache    *synccache.Cache
	logger   Logger
	hooks    []Hook
}

// New creates a Dispatcher over the given snapshot provider and cache.
func New(provider dashboard.Provider, cache *synccache.Cache) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		cache:    cache,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// AddHook registers a telemetry hook.
func (d *Dispatcher) AddHook(h Hook) {
	d.hooks = append(d.hooks, h)
}

// render resolves a zone to encoded bytes. A resolver failure for a known
// zone degrades to the blank raster at the zone's dimensions so the device
// always gets a layout-preserving answer; only an unknown id propagates.
func (d *Dispatcher) render(zoneID string, snap *dashboard.Snapshot) ([]byte, zone.Rect, error) {
	z, err := zone.Lookup(zoneID)
	if err != nil {
		return nil, zone.Rect{}, err
	}

	r, err := zone.Resolve(zoneID, snap)
	if err != nil {
		d.logger.Warn("zone resolve failed, degrading to blank", "zone", zoneID, "error", err)
		r = bitmap.Blank(z.Rect.W, z.Rect.H)
	}
	return bitmap.Encode(r), z.Rect, nil
}

// Dispatch answers one zone fetch for one device.
//
// Returns Result.Unchanged when the cache shows the device already holds
// this exact content. Otherwise the new fingerprint is committed and the
// encoded bytes returned. The decision and commit are atomic per device.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceKey, zoneID string, force bool) (*Result, error) {
	snap, err := d.provider.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}

	data, rect, err := d.render(zoneID, snap)
	if err != nil {
		return nil, err
	}

	fp := synccache.Fingerprint(data)
	if !d.cache.Sync(deviceKey, zoneID, fp, force) {
		d.logger.Debug("zone unchanged", "device", deviceKey, "zone", zoneID, "fingerprint", fp)
		return &Result{Unchanged: true, Fingerprint: fp, Rect: rect}, nil
	}

	d.logger.Info("zone dispatched",
		"device", deviceKey,
		"zone", zoneID,
		"fingerprint", fp,
		"bytes", len(data),
		"forced", force,
	)
	for _, h := range d.hooks {
		h.ZoneSynced(deviceKey, zoneID, fp, len(data))
	}

	return &Result{Bytes: data, Fingerprint: fp, Rect: rect}, nil
}

// Changed lists the primitive zones whose current content differs from what
// the device last received. It compares fingerprints without committing, so
// a subsequent Dispatch for a listed zone still transmits.
func (d *Dispatcher) Changed(ctx context.Context, deviceKey string) ([]string, error) {
	snap, err := d.provider.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}

	var changed []string
	for _, z := range zone.Primitives() {
		data, _, err := d.render(z.ID, snap)
		if err != nil {
			return nil, err
		}
		if d.cache.ShouldSend(deviceKey, z.ID, synccache.Fingerprint(data), false) {
			changed = append(changed, z.ID)
		}
	}
	return changed, nil
}
