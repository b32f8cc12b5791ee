package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State identifies the machine's current position in the control loop.
type State int

// Control loop states.
const (
	StateInit State = iota
	StateWifiConnect
	StateFetch
	StateRender
	StateIdle
	StateError
	StateSetupRequired
	StatePairingMode
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWifiConnect:
		return "wifi_connect"
	case StateFetch:
		return "fetch"
	case StateRender:
		return "render"
	case StateIdle:
		return "idle"
	case StateError:
		return "error"
	case StateSetupRequired:
		return "setup_required"
	case StatePairingMode:
		return "pairing_mode"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Network brings up the device's network link. Implementations wrap the
// platform's WiFi stack; tests substitute a fake.
type Network interface {
	Connect(ctx context.Context) error
}

// Display drives the e-ink panel.
type Display interface {
	// Draw paints one zone update. When full is set the panel performs a
	// complete refresh for this batch rather than a partial update.
	Draw(ctx context.Context, update *ZoneUpdate, full bool) error

	// ShowPairingCode renders the pairing code prominently.
	ShowPairingCode(ctx context.Context, code string) error
}

// Logger defines the logging interface used by the Machine.
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

// Config tunes the control loop. Zero values fall back to the defaults in
// DefaultConfig.
type Config struct {
	// Zones are the zone ids fetched each cycle, in paint order.
	Zones []string

	ConnectTimeout time.Duration
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration

	// SleepInterval is the idle time between fetch cycles.
	SleepInterval time.Duration

	// Backoff after errors: min(BackoffMax, BackoffBase * 2^errorCount),
	// clamped to BackoffMax once errorCount reaches BackoffCeiling.
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	BackoffCeiling int

	// WifiMaxRetries bounds connect attempts before routing to Error.
	WifiMaxRetries int

	// Full refresh policy: a full redraw happens after FullRefreshEvery
	// successful renders, after MaxPartialBeforeFull partial zone updates,
	// when FullRefreshInterval has elapsed since the last full redraw, or
	// immediately after pairing.
	FullRefreshEvery     int
	MaxPartialBeforeFull int
	FullRefreshInterval  time.Duration

	PairingPollInterval time.Duration
	PairingTimeout      time.Duration

	// SetupCooldown is the long wait after the server reports it is not
	// yet configured.
	SetupCooldown time.Duration

	// FirmwareVersion is reported with each checkin.
	FirmwareVersion string
}

// DefaultConfig returns the tuning the reference hardware ships with.
func DefaultConfig() Config {
	return Config{
		Zones:                []string{"header", "divider", "summary", "legs", "footer"},
		ConnectTimeout:       20 * time.Second,
		FetchTimeout:         15 * time.Second,
		RenderTimeout:        30 * time.Second,
		SleepInterval:        60 * time.Second,
		BackoffBase:          time.Second,
		BackoffMax:           32 * time.Second,
		BackoffCeiling:       5,
		WifiMaxRetries:       3,
		FullRefreshEvery:     10,
		MaxPartialBeforeFull: 30,
		FullRefreshInterval:  10 * time.Minute,
		PairingPollInterval:  5 * time.Second,
		PairingTimeout:       10 * time.Minute,
		SetupCooldown:        5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Zones) == 0 {
		c.Zones = def.Zones
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = def.RenderTimeout
	}
	if c.SleepInterval <= 0 {
		c.SleepInterval = def.SleepInterval
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = def.BackoffMax
	}
	if c.BackoffCeiling <= 0 {
		c.BackoffCeiling = def.BackoffCeiling
	}
	if c.WifiMaxRetries <= 0 {
		c.WifiMaxRetries = def.WifiMaxRetries
	}
	if c.FullRefreshEvery <= 0 {
		c.FullRefreshEvery = def.FullRefreshEvery
	}
	if c.MaxPartialBeforeFull <= 0 {
		c.MaxPartialBeforeFull = def.MaxPartialBeforeFull
	}
	if c.FullRefreshInterval <= 0 {
		c.FullRefreshInterval = def.FullRefreshInterval
	}
	if c.PairingPollInterval <= 0 {
		c.PairingPollInterval = def.PairingPollInterval
	}
	if c.PairingTimeout <= 0 {
		c.PairingTimeout = def.PairingTimeout
	}
	if c.SetupCooldown <= 0 {
		c.SetupCooldown = def.SetupCooldown
	}
	return c
}

// Machine is the device control loop. It is single-threaded: Step (and Run,
// which drives Step) must not be called concurrently.
type Machine struct {
	cfg     Config
	server  Server
	network Network
	display Display
	store   *StateStore
	logger  Logger
	now     func() time.Time

	state     State
	persisted *PersistedState

	errorCount  int
	wifiRetries int

	renderCount  int
	partialCount int
	lastFull     time.Time
	lastSuccess  time.Time
	justPaired   bool

	pending []*ZoneUpdate

	pairingCode    string
	pairingStarted time.Time
}

// NewMachine wires a control loop over its collaborators.
func NewMachine(cfg Config, server Server, network Network, display Display, store *StateStore) *Machine {
	return &Machine{
		cfg:     cfg.withDefaults(),
		server:  server,
		network: network,
		display: display,
		store:   store,
		logger:  noopLogger{},
		now:     time.Now,
		state:   StateInit,
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// CurrentState returns the machine's position in the loop.
func (m *Machine) CurrentState() State {
	return m.state
}

// backoff computes the error delay: exponential from BackoffBase, clamped
// to BackoffMax at and beyond the ceiling.
func (m *Machine) backoff() time.Duration {
	n := m.errorCount
	if n >= m.cfg.BackoffCeiling {
		return m.cfg.BackoffMax
	}
	d := m.cfg.BackoffBase << uint(n)
	if d > m.cfg.BackoffMax {
		return m.cfg.BackoffMax
	}
	return d
}

// fail records an error and routes to the Error state.
func (m *Machine) fail(err error) (time.Duration, error) {
	m.errorCount++
	m.state = StateError
	m.logger.Warn("entering error state", "error", err, "error_count", m.errorCount)
	return 0, err
}

// persistProgress mirrors the loop counters into the persisted blob. Best
// effort: a failed write costs resume fidelity, not the loop.
func (m *Machine) persistProgress() {
	if m.persisted == nil {
		return
	}
	m.persisted.State = m.state.String()
	m.persisted.ErrorCount = m.errorCount
	m.persisted.RenderCount = m.renderCount
	m.persisted.PartialCount = m.partialCount
	if !m.lastFull.IsZero() {
		t := m.lastFull
		m.persisted.LastFullRefresh = &t
	}
	if !m.lastSuccess.IsZero() {
		t := m.lastSuccess
		m.persisted.LastSuccess = &t
	}
	if err := m.store.Save(m.persisted); err != nil {
		m.logger.Warn("persisting loop progress", "error", err)
	}
}

// Step executes one bounded transition and returns how long the caller
// should wait before the next one. The returned error is informational; the
// loop always continues. Loop progress is written through to the state file
// after every transition.
func (m *Machine) Step(ctx context.Context) (time.Duration, error) {
	wait, err := m.step(ctx)
	m.persistProgress()
	return wait, err
}

func (m *Machine) step(ctx context.Context) (time.Duration, error) {
	switch m.state {
	case StateInit:
		return m.stepInit()
	case StateWifiConnect:
		return m.stepWifiConnect(ctx)
	case StateFetch:
		return m.stepFetch(ctx)
	case StateRender:
		return m.stepRender(ctx)
	case StateIdle:
		m.state = StateWifiConnect
		return m.cfg.SleepInterval, nil
	case StateError:
		delay := m.backoff()
		m.state = StateWifiConnect
		return delay, nil
	case StateSetupRequired:
		m.state = StateWifiConnect
		return m.cfg.SetupCooldown, nil
	case StatePairingMode:
		return m.stepPairing(ctx)
	default:
		return m.fail(fmt.Errorf("machine in unknown state %d", int(m.state)))
	}
}

func (m *Machine) stepInit() (time.Duration, error) {
	state, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, ErrUnknownSchema) {
			return m.fail(fmt.Errorf("loading persisted state: %w", err))
		}
		// A schema this build cannot read is unrecoverable config; start
		// over through pairing rather than guess.
		m.logger.Warn("persisted state unreadable, resetting", "error", err)
		if resetErr := m.store.Reset(); resetErr != nil {
			return m.fail(resetErr)
		}
		state = &PersistedState{SchemaVersion: stateSchemaVersion}
	}

	if state.DeviceToken == "" {
		state.DeviceToken = uuid.NewString()
		if err := m.store.Save(state); err != nil {
			return m.fail(fmt.Errorf("persisting device token: %w", err))
		}
	}

	// Resume loop progress from before the power cycle so backoff and the
	// full-refresh cadence pick up where they left off.
	m.errorCount = state.ErrorCount
	m.renderCount = state.RenderCount
	m.partialCount = state.PartialCount
	if state.LastFullRefresh != nil {
		m.lastFull = *state.LastFullRefresh
	}
	if state.LastSuccess != nil {
		m.lastSuccess = *state.LastSuccess
	}

	m.persisted = state
	m.state = StateWifiConnect
	m.logger.Info("agent initialised", "paired", state.Paired(), "error_count", m.errorCount)
	return 0, nil
}

func (m *Machine) stepWifiConnect(ctx context.Context) (time.Duration, error) {
	opCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	err := m.network.Connect(opCtx)
	cancel()
	if err != nil {
		m.wifiRetries++
		if m.wifiRetries >= m.cfg.WifiMaxRetries {
			m.wifiRetries = 0
			return m.fail(fmt.Errorf("network connect exhausted retries: %w", err))
		}
		m.logger.Warn("network connect failed, retrying", "attempt", m.wifiRetries, "error", err)
		return time.Second, nil
	}
	m.wifiRetries = 0

	if !m.persisted.Paired() {
		m.state = StatePairingMode
		return 0, nil
	}
	m.server.SetWebhook(m.persisted.WebhookURL)
	m.state = StateFetch
	return 0, nil
}

// needFullRefresh applies the artifact-bounding policy.
func (m *Machine) needFullRefresh() bool {
	if m.justPaired {
		return true
	}
	if m.partialCount >= m.cfg.MaxPartialBeforeFull {
		return true
	}
	if m.renderCount > 0 && m.renderCount%m.cfg.FullRefreshEvery == 0 {
		return true
	}
	return m.lastFull.IsZero() || m.now().Sub(m.lastFull) >= m.cfg.FullRefreshInterval
}

func (m *Machine) stepFetch(ctx context.Context) (time.Duration, error) {
	// Health checkin is best-effort; a failed checkin never blocks the
	// fetch cycle.
	opCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	if err := m.server.Checkin(opCtx, DeviceStatus{FirmwareVersion: m.cfg.FirmwareVersion}); err != nil {
		m.logger.Debug("checkin failed", "error", err)
	}
	cancel()

	force := m.needFullRefresh()
	var fresh []*ZoneUpdate
	for _, zoneID := range m.cfg.Zones {
		opCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		update, err := m.server.FetchZone(opCtx, zoneID, force)
		cancel()
		if err != nil {
			if errors.Is(err, ErrSetupRequired) {
				m.state = StateSetupRequired
				m.logger.Info("server setup required, backing off")
				return 0, nil
			}
			return m.fail(fmt.Errorf("fetching zone %s: %w", zoneID, err))
		}
		if !update.Unchanged {
			fresh = append(fresh, update)
		}
	}

	m.errorCount = 0
	m.lastSuccess = m.now()
	if len(fresh) == 0 {
		m.state = StateIdle
		m.logger.Debug("all zones unchanged")
		return 0, nil
	}

	m.pending = fresh
	m.state = StateRender
	return 0, nil
}

func (m *Machine) stepRender(ctx context.Context) (time.Duration, error) {
	full := m.needFullRefresh()
	for _, update := range m.pending {
		opCtx, cancel := context.WithTimeout(ctx, m.cfg.RenderTimeout)
		err := m.display.Draw(opCtx, update, full)
		cancel()
		if err != nil {
			m.pending = nil
			return m.fail(fmt.Errorf("drawing zone %s: %w", update.ZoneID, err))
		}
	}

	m.renderCount++
	if full {
		m.lastFull = m.now()
		m.partialCount = 0
		m.justPaired = false
	} else {
		m.partialCount += len(m.pending)
	}
	m.logger.Info("display updated", "zones", len(m.pending), "full", full)

	m.pending = nil
	m.state = StateIdle
	return 0, nil
}

func (m *Machine) stepPairing(ctx context.Context) (time.Duration, error) {
	if m.pairingCode == "" {
		opCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		session, err := m.server.CreatePairing(opCtx)
		cancel()
		if err != nil {
			return m.fail(fmt.Errorf("creating pairing code: %w", err))
		}

		opCtx, cancel = context.WithTimeout(ctx, m.cfg.RenderTimeout)
		err = m.display.ShowPairingCode(opCtx, session.Code)
		cancel()
		if err != nil {
			return m.fail(fmt.Errorf("showing pairing code: %w", err))
		}

		m.pairingCode = session.Code
		m.pairingStarted = m.now()
		m.logger.Info("pairing mode entered", "code", session.Code)
		return m.cfg.PairingPollInterval, nil
	}

	if m.now().Sub(m.pairingStarted) >= m.cfg.PairingTimeout {
		m.pairingCode = ""
		m.state = StateWifiConnect
		m.logger.Warn("pairing timed out")
		return 0, ErrPairingTimeout
	}

	opCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	session, err := m.server.PollPairing(opCtx, m.pairingCode)
	cancel()
	if err != nil {
		if errors.Is(err, ErrPairingTimeout) {
			// Code expired server-side; start a fresh one next step.
			m.pairingCode = ""
			return 0, err
		}
		return m.fail(fmt.Errorf("polling pairing code: %w", err))
	}

	if session.Status != "paired" {
		return m.cfg.PairingPollInterval, nil
	}

	now := m.now()
	m.persisted.WebhookURL = session.WebhookURL
	m.persisted.PairedAt = &now
	if err := m.store.Save(m.persisted); err != nil {
		return m.fail(fmt.Errorf("persisting pairing: %w", err))
	}

	m.pairingCode = ""
	m.justPaired = true
	m.state = StateWifiConnect
	m.logger.Info("pairing complete")
	return 0, nil
}

// Run drives Step until ctx is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	for {
		wait, err := m.Step(ctx)
		if err != nil {
			m.logger.Debug("step finished with error", "state", m.state.String(), "error", err)
		}
		if wait <= 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
