package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRepository is an in-memory Repository for tests.
type mockRepository struct {
	mu      sync.Mutex
	devices map[string]Device
	upserts int
}

func newMockRepository() *mockRepository {
	return &mockRepository{devices: make(map[string]Device)}
}

func (m *mockRepository) GetByKey(_ context.Context, key string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockRepository) Upsert(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.Key] = *d.DeepCopy()
	m.upserts++
	return nil
}

func (m *mockRepository) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[key]; !ok {
		return ErrNotFound
	}
	delete(m.devices, key)
	return nil
}

func testRegistry() (*Registry, *mockRepository, *time.Time) {
	repo := newMockRepository()
	r := NewRegistry(repo)
	now := time.Date(2026, 8, 12, 7, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, repo, &now
}

func TestRecordFetchCreatesOnFirstContact(t *testing.T) {
	r, repo, now := testRegistry()
	ctx := context.Background()

	if err := r.RecordFetch(ctx, "dev1"); err != nil {
		t.Fatal(err)
	}

	d, err := r.GetDevice(ctx, "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if !d.FirstSeen.Equal(*now) || !d.LastSeen.Equal(*now) {
		t.Errorf("timestamps not set on first contact: %+v", d)
	}
	if d.FetchCount != 1 {
		t.Errorf("FetchCount = %d, want 1", d.FetchCount)
	}
	if _, ok := repo.devices["dev1"]; !ok {
		t.Errorf("first contact not written through to repository")
	}

	*now = now.Add(time.Minute)
	if err := r.RecordFetch(ctx, "dev1"); err != nil {
		t.Fatal(err)
	}
	d, _ = r.GetDevice(ctx, "dev1")
	if d.FetchCount != 2 {
		t.Errorf("FetchCount = %d after second fetch, want 2", d.FetchCount)
	}
	if !d.LastSeen.After(d.FirstSeen) {
		t.Errorf("LastSeen did not advance")
	}
}

func TestRecordFetchRejectsEmptyKey(t *testing.T) {
	r, _, _ := testRegistry()
	if err := r.RecordFetch(context.Background(), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("RecordFetch(\"\") = %v, want ErrInvalidKey", err)
	}
}

func TestRecordCheckinMergesFields(t *testing.T) {
	r, _, _ := testRegistry()
	ctx := context.Background()

	d, err := r.RecordCheckin(ctx, "dev1", Checkin{
		FirmwareVersion:   "1.4.2",
		BatteryMillivolts: 3712,
		RSSI:              -61,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.FirmwareVersion != "1.4.2" || d.BatteryMillivolts != 3712 || d.RSSI != -61 {
		t.Fatalf("checkin fields not stored: %+v", d)
	}

	// Partial checkin: unreported fields keep their values.
	d, err = r.RecordCheckin(ctx, "dev1", Checkin{BatteryMillivolts: 3698})
	if err != nil {
		t.Fatal(err)
	}
	if d.FirmwareVersion != "1.4.2" {
		t.Errorf("unreported firmware overwritten: %q", d.FirmwareVersion)
	}
	if d.BatteryMillivolts != 3698 {
		t.Errorf("BatteryMillivolts = %d, want 3698", d.BatteryMillivolts)
	}
	if d.RSSI != -61 {
		t.Errorf("unreported RSSI overwritten: %d", d.RSSI)
	}
}

func TestGetDeviceFallsBackToRepository(t *testing.T) {
	r, repo, _ := testRegistry()
	ctx := context.Background()

	repo.devices["cold"] = Device{
		Key:       "cold",
		FirstSeen: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		LastSeen:  time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC),
	}

	d, err := r.GetDevice(ctx, "cold")
	if err != nil {
		t.Fatal(err)
	}
	if d.Key != "cold" {
		t.Errorf("wrong device: %+v", d)
	}

	if _, err := r.GetDevice(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDevice(missing) = %v, want ErrNotFound", err)
	}
}

func TestRefreshCachePopulatesList(t *testing.T) {
	r, repo, _ := testRegistry()
	ctx := context.Background()

	repo.devices["a"] = Device{Key: "a", FirstSeen: time.Now(), LastSeen: time.Now()}
	repo.devices["b"] = Device{Key: "b", FirstSeen: time.Now(), LastSeen: time.Now()}

	if err := r.RefreshCache(ctx); err != nil {
		t.Fatal(err)
	}
	devices, err := r.ListDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Errorf("ListDevices returned %d devices, want 2", len(devices))
	}
}
