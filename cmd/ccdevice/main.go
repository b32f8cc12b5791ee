// CommuteCompute Device Agent - E-ink Display Simulator
//
// This binary runs the device control loop against a CommuteCompute server
// without e-ink hardware: fetched zones are written as BMP files to an
// output directory and the pairing code is printed to the terminal. It is
// the reference implementation of the firmware's fetch/render cycle and
// doubles as an end-to-end test harness for the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/m1ckyb/commutecompute-core/internal/agent"
	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/config"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/logging"
)

var version = "dev" // set at build time via ldflags

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ccdevice", flag.ContinueOnError)
	serverURL := fs.String("server", "http://localhost:8080", "commutecompute server base URL")
	statePath := fs.String("state", defaultStatePath(), "path to the persisted device state file")
	outDir := fs.String("out", "./ccdevice-out", "directory for rendered zone bitmaps")
	interval := fs.Duration("interval", 60*time.Second, "idle time between fetch cycles")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.New(config.LoggingConfig{Level: *logLevel, Format: "text", Output: "stderr"}, version)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(*statePath), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	store := agent.NewStateStore(*statePath)

	// The client needs the device token up front, so mint it here on first
	// run; the machine's init step finds it already persisted.
	state, err := store.Load()
	if err != nil {
		// Unreadable state is the machine's problem to resolve; start with
		// an empty token and let it reset and re-pair.
		log.Warn("persisted state unreadable", "error", err)
		state = &agent.PersistedState{}
	}
	if state.DeviceToken == "" {
		state.DeviceToken = uuid.NewString()
		if err := store.Save(state); err != nil {
			return fmt.Errorf("persisting device token: %w", err)
		}
		log.Info("device token minted")
	}

	client := agent.NewClient(*serverURL, state.DeviceToken, 15*time.Second)

	cfg := agent.DefaultConfig()
	cfg.SleepInterval = *interval
	cfg.FirmwareVersion = "ccdevice/" + version

	machine := agent.NewMachine(cfg, client, newProbeNetwork(*serverURL), &dirDisplay{dir: *outDir, log: log}, store)
	machine.SetLogger(log)

	log.Info("device agent starting",
		"server", *serverURL,
		"state", *statePath,
		"out", *outDir,
	)
	return machine.Run(ctx)
}

// defaultStatePath places the state file next to the user's other app data.
func defaultStatePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ccdevice", "state.json")
	}
	return "./ccdevice-state.json"
}

// probeNetwork checks reachability of the server with a TCP dial. On real
// hardware this slot is the WiFi supervisor; on a workstation the link is
// already up, so a dial is an honest equivalent of "network ready".
type probeNetwork struct {
	addr string
}

func newProbeNetwork(serverURL string) *probeNetwork {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return &probeNetwork{}
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	return &probeNetwork{addr: host}
}

// Connect implements agent.Network.
func (n *probeNetwork) Connect(ctx context.Context) error {
	if n.addr == "" {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("probing %s: %w", n.addr, err)
	}
	return conn.Close()
}

// dirDisplay writes zone updates to BMP files in place of an e-ink panel.
type dirDisplay struct {
	dir string
	log *logging.Logger
}

// Draw implements agent.Display.
func (d *dirDisplay) Draw(_ context.Context, update *agent.ZoneUpdate, full bool) error {
	path := filepath.Join(d.dir, update.ZoneID+".bmp")
	if err := os.WriteFile(path, bitmap.Encode(update.Raster), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	d.log.Info("zone painted",
		"zone", update.ZoneID,
		"fingerprint", update.Fingerprint,
		"full", full,
		"path", path,
	)
	return nil
}

// ShowPairingCode implements agent.Display.
func (d *dirDisplay) ShowPairingCode(_ context.Context, code string) error {
	fmt.Printf("\n  Pairing code: %s\n  Enter this code in the setup wizard.\n\n", code)
	path := filepath.Join(d.dir, "pairing-code.txt")
	if err := os.WriteFile(path, []byte(code+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
