package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/zone"
)

// fakeNetwork fails the first failures connect attempts, then succeeds.
type fakeNetwork struct {
	failures int
	attempts int
}

func (n *fakeNetwork) Connect(_ context.Context) error {
	n.attempts++
	if n.attempts <= n.failures {
		return errors.New("no ap in range")
	}
	return nil
}

// fakeDisplay records draw calls.
type fakeDisplay struct {
	draws    []string
	fulls    int
	partials int
	codes    []string
}

func (d *fakeDisplay) Draw(_ context.Context, update *ZoneUpdate, full bool) error {
	d.draws = append(d.draws, update.ZoneID)
	if full {
		d.fulls++
	} else {
		d.partials++
	}
	return nil
}

func (d *fakeDisplay) ShowPairingCode(_ context.Context, code string) error {
	d.codes = append(d.codes, code)
	return nil
}

// fakeServer scripts the server side of the protocol.
type fakeServer struct {
	webhook string

	pairedAfterPolls int
	polls            int

	// changed controls which zones return fresh bytes on the next fetch.
	changed map[string]bool

	fetchErr   error
	fetches    int
	forced     int
	checkins   int
	setWebhook string
}

func newFakeServer() *fakeServer {
	return &fakeServer{changed: make(map[string]bool)}
}

func (s *fakeServer) CreatePairing(_ context.Context) (*PairingSession, error) {
	return &PairingSession{Code: "ABQR23", Status: "waiting"}, nil
}

func (s *fakeServer) PollPairing(_ context.Context, code string) (*PairingSession, error) {
	s.polls++
	if s.polls > s.pairedAfterPolls {
		return &PairingSession{Code: code, Status: "paired", WebhookURL: "http://srv/api/zonedata"}, nil
	}
	return &PairingSession{Code: code, Status: "waiting"}, nil
}

func (s *fakeServer) SetWebhook(url string) { s.setWebhook = url }

func (s *fakeServer) FetchZone(_ context.Context, zoneID string, force bool) (*ZoneUpdate, error) {
	s.fetches++
	if force {
		s.forced++
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	z, err := zone.Lookup(zoneID)
	if err != nil {
		return nil, err
	}
	if !force && !s.changed[zoneID] {
		return &ZoneUpdate{ZoneID: zoneID, Unchanged: true, Fingerprint: "fp"}, nil
	}
	return &ZoneUpdate{
		ZoneID:      zoneID,
		Fingerprint: "fp",
		Rect:        z.Rect,
		Raster:      bitmap.Blank(z.Rect.W, z.Rect.H),
	}, nil
}

func (s *fakeServer) Checkin(_ context.Context, _ DeviceStatus) error {
	s.checkins++
	return nil
}

func testMachine(t *testing.T, srv Server, net Network, disp Display) *Machine {
	t.Helper()
	store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	m := NewMachine(Config{}, srv, net, disp, store)
	return m
}

// step drives the machine until it reaches want or the step budget runs
// out. Returns the accumulated wait time.
func step(t *testing.T, m *Machine, want State) time.Duration {
	t.Helper()
	ctx := context.Background()
	var total time.Duration
	for i := 0; i < 100; i++ {
		wait, _ := m.Step(ctx)
		total += wait
		if m.CurrentState() == want {
			return total
		}
	}
	t.Fatalf("machine never reached %s (stuck in %s)", want, m.CurrentState())
	return 0
}

func TestBootPairingFetchScenario(t *testing.T) {
	srv := newFakeServer()
	srv.pairedAfterPolls = 2
	net := &fakeNetwork{}
	disp := &fakeDisplay{}
	m := testMachine(t, srv, net, disp)
	ctx := context.Background()

	// Boot: Init loads empty state and heads for the network.
	if m.CurrentState() != StateInit {
		t.Fatalf("initial state = %s", m.CurrentState())
	}
	m.Step(ctx)
	if m.CurrentState() != StateWifiConnect {
		t.Fatalf("after init: %s", m.CurrentState())
	}
	if m.persisted.DeviceToken == "" {
		t.Fatalf("init did not mint a device token")
	}

	// Unpaired: connect routes to pairing, code goes on the panel.
	m.Step(ctx)
	if m.CurrentState() != StatePairingMode {
		t.Fatalf("unpaired connect: %s", m.CurrentState())
	}
	m.Step(ctx)
	if len(disp.codes) != 1 || disp.codes[0] != "ABQR23" {
		t.Fatalf("pairing code not shown: %v", disp.codes)
	}

	// Polls until the wizard binds config, then back through the network.
	step(t, m, StateWifiConnect)
	if !m.persisted.Paired() {
		t.Fatalf("pairing did not persist webhook")
	}

	// Reload from disk proves the pairing survived.
	saved, err := m.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved.WebhookURL != "http://srv/api/zonedata" {
		t.Errorf("persisted webhook = %q", saved.WebhookURL)
	}

	// Paired connect heads to Fetch; first cycle is a forced full refresh.
	step(t, m, StateFetch)
	if srv.setWebhook != "http://srv/api/zonedata" {
		t.Errorf("webhook not handed to client: %q", srv.setWebhook)
	}
	step(t, m, StateRender)
	if srv.forced == 0 {
		t.Errorf("first post-pairing cycle was not forced")
	}
	step(t, m, StateIdle)
	if disp.fulls == 0 {
		t.Errorf("first render was not a full refresh")
	}
	if len(disp.draws) != 5 {
		t.Errorf("drew %d zones, want all 5", len(disp.draws))
	}
	if srv.checkins == 0 {
		t.Errorf("no health checkin sent")
	}
}

func TestIdleCycleWithNoChanges(t *testing.T) {
	srv := newFakeServer()
	net := &fakeNetwork{}
	disp := &fakeDisplay{}
	m := testMachine(t, srv, net, disp)

	// Pre-pair via the store so the machine boots straight into fetching.
	if err := m.store.Save(&PersistedState{WebhookURL: "http://srv/api/zonedata", DeviceToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	// First cycle is full (cold boot) and renders.
	step(t, m, StateIdle)
	if disp.fulls != 1 {
		t.Fatalf("cold boot did not full-refresh: %d", disp.fulls)
	}

	// Second cycle: nothing changed, no render, sleep interval returned.
	wait := step(t, m, StateIdle)
	if len(disp.draws) != 5 {
		t.Errorf("unchanged cycle drew zones: %d draws", len(disp.draws))
	}
	if wait < m.cfg.SleepInterval {
		t.Errorf("idle wait = %v, want at least %v", wait, m.cfg.SleepInterval)
	}
}

func TestErrorBackoffProgression(t *testing.T) {
	srv := newFakeServer()
	srv.fetchErr = errors.New("connection reset")
	net := &fakeNetwork{}
	m := testMachine(t, srv, net, &fakeDisplay{})
	if err := m.store.Save(&PersistedState{WebhookURL: "http://srv/api/zonedata", DeviceToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var delays []time.Duration
	for i := 0; i < 8; i++ {
		step(t, m, StateError)
		wait, _ := m.Step(ctx) // Error -> WifiConnect, returns backoff
		delays = append(delays, wait)
	}

	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		32 * time.Second, 32 * time.Second, 32 * time.Second, 32 * time.Second,
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, delays[i], want[i])
		}
	}

	// Recovery resets the error count and the backoff.
	srv.fetchErr = nil
	step(t, m, StateIdle)
	if m.errorCount != 0 {
		t.Errorf("errorCount = %d after successful fetch, want 0", m.errorCount)
	}
}

func TestSetupRequiredCooldown(t *testing.T) {
	srv := newFakeServer()
	srv.fetchErr = ErrSetupRequired
	m := testMachine(t, srv, &fakeNetwork{}, &fakeDisplay{})
	if err := m.store.Save(&PersistedState{WebhookURL: "http://srv/api/zonedata", DeviceToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	step(t, m, StateSetupRequired)
	wait, _ := m.Step(context.Background())
	if wait != m.cfg.SetupCooldown {
		t.Errorf("setup cooldown = %v, want %v", wait, m.cfg.SetupCooldown)
	}
	if m.CurrentState() != StateWifiConnect {
		t.Errorf("after cooldown: %s", m.CurrentState())
	}
	if m.errorCount != 0 {
		t.Errorf("setup-required counted as an error")
	}
}

func TestLoopProgressSurvivesRestart(t *testing.T) {
	srv := newFakeServer()
	srv.fetchErr = errors.New("connection reset")
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStateStore(path)
	if err := store.Save(&PersistedState{WebhookURL: "http://srv/api/zonedata", DeviceToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	m := NewMachine(Config{}, srv, &fakeNetwork{}, &fakeDisplay{}, store)
	ctx := context.Background()

	// Three failed cycles push the backoff up.
	for i := 0; i < 3; i++ {
		step(t, m, StateError)
		m.Step(ctx)
	}

	// Power cycle: a fresh machine over the same state file must resume
	// the backoff progression, not restart it at the base delay.
	rebooted := NewMachine(Config{}, srv, &fakeNetwork{}, &fakeDisplay{}, store)
	rebooted.Step(ctx)
	if rebooted.errorCount != 3 {
		t.Fatalf("errorCount after reboot = %d, want 3", rebooted.errorCount)
	}
	step(t, rebooted, StateError)
	wait, _ := rebooted.Step(ctx)
	if want := 16 * time.Second; wait != want {
		t.Errorf("post-reboot backoff = %v, want %v", wait, want)
	}

	// Recovery clears the persisted counters and records the success.
	srv.fetchErr = nil
	step(t, rebooted, StateIdle)
	saved, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved.ErrorCount != 0 {
		t.Errorf("persisted ErrorCount = %d after recovery, want 0", saved.ErrorCount)
	}
	if saved.RenderCount != 1 {
		t.Errorf("persisted RenderCount = %d, want 1", saved.RenderCount)
	}
	if saved.LastSuccess == nil || saved.LastFullRefresh == nil {
		t.Errorf("success timestamps not persisted: %+v", saved)
	}
}

func TestWifiRetriesExhaustToError(t *testing.T) {
	net := &fakeNetwork{failures: 100}
	m := testMachine(t, newFakeServer(), net, &fakeDisplay{})

	step(t, m, StateError)
	if net.attempts != m.cfg.WifiMaxRetries {
		t.Errorf("connect attempts = %d, want %d", net.attempts, m.cfg.WifiMaxRetries)
	}
}

func TestPartialThenFullRefreshPolicy(t *testing.T) {
	srv := newFakeServer()
	m := testMachine(t, srv, &fakeNetwork{}, &fakeDisplay{})
	if err := m.store.Save(&PersistedState{WebhookURL: "http://srv/api/zonedata", DeviceToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 12, 7, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Cold boot: full.
	step(t, m, StateIdle)
	if m.partialCount != 0 {
		t.Fatalf("partialCount = %d after full refresh", m.partialCount)
	}

	// Next cycle with one changed zone, well before the full interval:
	// partial.
	disp := &fakeDisplay{}
	m.display = disp
	srv.changed["header"] = true
	now = now.Add(time.Minute)
	step(t, m, StateIdle)
	if disp.partials == 0 || disp.fulls != 0 {
		t.Errorf("expected partial refresh, got fulls=%d partials=%d", disp.fulls, disp.partials)
	}
	if m.partialCount != 1 {
		t.Errorf("partialCount = %d, want 1", m.partialCount)
	}

	// After the full interval elapses the next render is full again.
	now = now.Add(m.cfg.FullRefreshInterval)
	step(t, m, StateIdle)
	if disp.fulls == 0 {
		t.Errorf("interval elapsed but no full refresh")
	}
	if m.partialCount != 0 {
		t.Errorf("partialCount not reset by full refresh")
	}
}
