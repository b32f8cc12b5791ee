package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
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

// Registry provides device tracking with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for the hot paths
// (every zone fetch touches the device record).
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.Mutex
	now     func() time.Time
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.Key] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// touchLocked returns the cached record for key, creating it on first
// contact. Caller holds r.cacheMu.
func (r *Registry) touchLocked(key string) *Device {
	if d, ok := r.cache[key]; ok {
		return d
	}
	now := r.now()
	d := &Device{Key: key, FirstSeen: now, LastSeen: now}
	r.cache[key] = d
	r.logger.Info("new device registered", "device", key)
	return d
}

// RecordFetch notes that a zone fetch was served to key. First contact
// creates the device record.
func (r *Registry) RecordFetch(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	r.cacheMu.Lock()
	d := r.touchLocked(key)
	d.LastSeen = r.now()
	d.FetchCount++
	snapshot := d.DeepCopy()
	r.cacheMu.Unlock()

	if err := r.repo.Upsert(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting fetch for %s: %w", key, err)
	}
	return nil
}

// RecordCheckin merges a health checkin into the device record. Fields the
// device did not report keep their stored values.
func (r *Registry) RecordCheckin(ctx context.Context, key string, c Checkin) (*Device, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	r.cacheMu.Lock()
	d := r.touchLocked(key)
	d.LastSeen = r.now()
	if c.FirmwareVersion != "" {
		d.FirmwareVersion = c.FirmwareVersion
	}
	if c.BatteryMillivolts != 0 {
		d.BatteryMillivolts = c.BatteryMillivolts
	}
	if c.RSSI != 0 {
		d.RSSI = c.RSSI
	}
	snapshot := d.DeepCopy()
	r.cacheMu.Unlock()

	if err := r.repo.Upsert(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("persisting checkin for %s: %w", key, err)
	}

	r.logger.Debug("device checkin",
		"device", key,
		"battery_mv", snapshot.BatteryMillivolts,
		"rssi", snapshot.RSSI,
		"firmware", snapshot.FirmwareVersion,
	)
	return snapshot, nil
}

// GetDevice retrieves a device by key.
// Returns ErrNotFound if the device does not exist.
func (r *Registry) GetDevice(ctx context.Context, key string) (*Device, error) {
	r.cacheMu.Lock()
	cached, ok := r.cache[key]
	if ok {
		out := cached.DeepCopy()
		r.cacheMu.Unlock()
		return out, nil
	}
	r.cacheMu.Unlock()

	d, err := r.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[key] = d.DeepCopy()
	r.cacheMu.Unlock()
	return d, nil
}

// ListDevices retrieves all known devices.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.Lock()
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		r.cacheMu.Unlock()
		return devices, nil
	}
	r.cacheMu.Unlock()

	return r.repo.List(ctx)
}
