package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/dashboard"
	"github.com/m1ckyb/commutecompute-core/internal/device"
	"github.com/m1ckyb/commutecompute-core/internal/dispatch"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/config"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/logging"
	"github.com/m1ckyb/commutecompute-core/internal/pairing"
	"github.com/m1ckyb/commutecompute-core/internal/synccache"
)

const testWebhook = "https://dash.example.com/api/zonedata"

// stubDeviceRepo is an in-memory device.Repository for handler tests.
type stubDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*device.Device
}

func newStubDeviceRepo() *stubDeviceRepo {
	return &stubDeviceRepo{devices: make(map[string]*device.Device)}
}

func (r *stubDeviceRepo) GetByKey(_ context.Context, key string) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[key]
	if !ok {
		return nil, device.ErrNotFound
	}
	return d.DeepCopy(), nil
}

func (r *stubDeviceRepo) List(_ context.Context) ([]device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (r *stubDeviceRepo) Upsert(_ context.Context, d *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.Key] = d.DeepCopy()
	return nil
}

func (r *stubDeviceRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, key)
	return nil
}

// newTestServer builds a Server over in-memory registries and returns it
// with an httptest listener for its router.
func newTestServer(t *testing.T, webhookURL string) (*Server, *httptest.Server) {
	t.Helper()

	provider := &dashboard.DemoProvider{
		Now: func() time.Time {
			return time.Date(2026, 3, 9, 7, 42, 0, 0, time.UTC)
		},
	}
	cache := synccache.New(synccache.DefaultMaxDevices)

	s, err := New(Deps{
		Config:     config.APIConfig{},
		Logger:     logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"),
		Dispatcher: dispatch.New(provider, cache),
		Pairing:    pairing.NewRegistry(nil, time.Minute),
		Devices:    device.NewRegistry(newStubDeviceRepo()),
		Cache:      cache,
		WebhookURL: webhookURL,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(s.buildRouter())
	t.Cleanup(ts.Close)
	return s, ts
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %q, want test", body["version"])
	}
}

func TestPairingFlow(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)

	// Device allocates a code
	resp, err := http.Post(ts.URL+"/api/pair", "", nil)
	if err != nil {
		t.Fatalf("POST /api/pair: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created pairingResponse
	decodeJSON(t, resp, &created)

	if !regexp.MustCompile(`^[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{6}$`).MatchString(created.Code) {
		t.Fatalf("code %q has unexpected shape", created.Code)
	}
	if created.Status != "waiting" {
		t.Errorf("status = %q, want waiting", created.Status)
	}
	if created.WebhookURL != "" {
		t.Errorf("webhook leaked before pairing: %q", created.WebhookURL)
	}

	// Device polls: still waiting
	resp, err = http.Get(ts.URL + "/api/pair/" + created.Code)
	if err != nil {
		t.Fatalf("GET /api/pair/{code}: %v", err)
	}
	var polled pairingResponse
	decodeJSON(t, resp, &polled)
	if polled.Status != "waiting" {
		t.Errorf("poll status = %q, want waiting", polled.Status)
	}

	// Wizard binds config
	body := bytes.NewReader([]byte(`{"extra":{"label":"hallway"}}`))
	resp, err = http.Post(ts.URL+"/api/pair/"+created.Code+"/config", "application/json", body)
	if err != nil {
		t.Fatalf("POST config: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d, want 200", resp.StatusCode)
	}
	var paired pairingResponse
	decodeJSON(t, resp, &paired)
	if paired.Status != "paired" {
		t.Errorf("status = %q, want paired", paired.Status)
	}
	if paired.WebhookURL != testWebhook {
		t.Errorf("webhookUrl = %q, want %q", paired.WebhookURL, testWebhook)
	}

	// Device polls again and receives the webhook
	resp, err = http.Get(ts.URL + "/api/pair/" + created.Code)
	if err != nil {
		t.Fatalf("GET /api/pair/{code}: %v", err)
	}
	decodeJSON(t, resp, &polled)
	if polled.Status != "paired" || polled.WebhookURL != testWebhook {
		t.Errorf("poll after pair = %+v", polled)
	}

	// Codes are single-use
	resp, err = http.Post(ts.URL+"/api/pair/"+created.Code+"/config", "application/json",
		bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("POST config again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("resubmit status = %d, want 409", resp.StatusCode)
	}
}

func TestPollUnknownCode(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)

	resp, err := http.Get(ts.URL + "/api/pair/ZZZZZZ")
	if err != nil {
		t.Fatalf("GET /api/pair/ZZZZZZ: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func fetchZone(t *testing.T, ts *httptest.Server, token, zoneID, query string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/zonedata?id="+zoneID+query, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set(headerDeviceToken, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/zonedata: %v", err)
	}
	return resp
}

func TestZoneDataRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)
	token := "0123456789abcdef0123456789abcdef"

	resp := fetchZone(t, ts, token, "header", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/bmp" {
		t.Errorf("Content-Type = %q, want image/bmp", ct)
	}

	fp := resp.Header.Get(headerFingerprint)
	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(fp) {
		t.Errorf("fingerprint %q has unexpected shape", fp)
	}

	for header, want := range map[string]int{
		headerZoneX:      0,
		headerZoneY:      0,
		headerZoneWidth:  800,
		headerZoneHeight: 94,
	} {
		got, err := strconv.Atoi(resp.Header.Get(header))
		if err != nil || got != want {
			t.Errorf("%s = %q, want %d", header, resp.Header.Get(header), want)
		}
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	raster, err := bitmap.Decode(data)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if raster.Width != 800 || raster.Height != 94 {
		t.Errorf("decoded %dx%d, want 800x94", raster.Width, raster.Height)
	}

	// Same device, same content: not modified
	resp = fetchZone(t, ts, token, "header", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("repeat status = %d, want 304", resp.StatusCode)
	}
	if got := resp.Header.Get(headerFingerprint); got != fp {
		t.Errorf("304 fingerprint = %q, want %q", got, fp)
	}

	// Force bypasses the cache
	resp = fetchZone(t, ts, token, "header", "&force=1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("forced status = %d, want 200", resp.StatusCode)
	}
}

func TestZoneDataPerDevicePartitions(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)

	resp := fetchZone(t, ts, "device-one-token-aaaa", "footer", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first device status = %d, want 200", resp.StatusCode)
	}

	// A different device has no sync history and gets a full response
	resp = fetchZone(t, ts, "device-two-token-bbbb", "footer", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("second device status = %d, want 200", resp.StatusCode)
	}
}

func TestZoneDataErrors(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)

	resp := fetchZone(t, ts, "tok", "nonsense", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown zone status = %d, want 404", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/zonedata", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET without id: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want 400", resp.StatusCode)
	}
}

func TestZoneDataSetupRequired(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp := fetchZone(t, ts, "tok", "header", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Errorf("status = %d, want 412", resp.StatusCode)
	}
}

func TestChangedZones(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)
	token := "changed-zones-device-token"

	get := func() []string {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/zones", nil)
		req.Header.Set(headerDeviceToken, token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /api/zones: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var body struct {
			Zones []string `json:"zones"`
		}
		decodeJSON(t, resp, &body)
		return body.Zones
	}

	// Fresh device: every primitive differs
	changed := get()
	if len(changed) != 5 {
		t.Fatalf("fresh device changed = %v, want all 5 primitives", changed)
	}

	for _, zoneID := range changed {
		resp := fetchZone(t, ts, token, zoneID, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("fetching %s: status %d", zoneID, resp.StatusCode)
		}
	}

	// Everything synced: nothing to report (fixed provider clock)
	if changed := get(); len(changed) != 0 {
		t.Errorf("after full sync changed = %v, want empty", changed)
	}
}

func TestCheckinAndDeviceEndpoints(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)
	token := "checkin-device-token-xyz"
	key := synccache.DeviceKey(token)

	body := bytes.NewReader([]byte(`{"firmware_version":"1.4.2","battery_mv":3710,"rssi":-58}`))
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/devices/checkin", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerDeviceToken, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST checkin: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("checkin status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/devices/" + key)
	if err != nil {
		t.Fatalf("GET device: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get device status = %d, want 200", resp.StatusCode)
	}
	var dev device.Device
	decodeJSON(t, resp, &dev)
	if dev.FirmwareVersion != "1.4.2" || dev.BatteryMillivolts != 3710 || dev.RSSI != -58 {
		t.Errorf("device = %+v, checkin fields not recorded", dev)
	}

	resp, err = http.Get(ts.URL + "/api/devices/")
	if err != nil {
		t.Fatalf("GET devices: %v", err)
	}
	var list struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	decodeJSON(t, resp, &list)
	if list.Count != 1 || len(list.Devices) != 1 {
		t.Errorf("device list = %+v, want exactly one", list)
	}

	resp, err = http.Get(ts.URL + "/api/devices/doesnotexist")
	if err != nil {
		t.Fatalf("GET unknown device: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, testWebhook)

	resp, err := http.Get(ts.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("GET /api/metrics: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var metrics SystemMetrics
	decodeJSON(t, resp, &metrics)
	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Errorf("goroutines = %d, want > 0", metrics.Runtime.Goroutines)
	}
}
