package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m1ckyb/commutecompute-core/internal/agent"
	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/config"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/logging"
	"github.com/m1ckyb/commutecompute-core/internal/zone"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

func TestProbeNetworkAddresses(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{"explicit port", "http://dash.local:8080", "dash.local:8080"},
		{"default http", "http://dash.local", "dash.local:80"},
		{"default https", "https://dash.local", "dash.local:443"},
		{"garbage", "::::", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newProbeNetwork(tt.server)
			if n.addr != tt.want {
				t.Errorf("addr = %q, want %q", n.addr, tt.want)
			}
		})
	}
}

func TestProbeNetworkConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	n := &probeNetwork{addr: ln.Addr().String()}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.Connect(ctx); err != nil {
		t.Errorf("Connect() error = %v", err)
	}
}

func TestProbeNetworkConnectRefused(t *testing.T) {
	// Grab a port and close it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	n := &probeNetwork{addr: addr}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.Connect(ctx); err == nil {
		t.Error("Connect() to closed port should fail")
	}
}

func TestDirDisplayDraw(t *testing.T) {
	dir := t.TempDir()
	d := &dirDisplay{dir: dir, log: testLogger()}

	update := &agent.ZoneUpdate{
		ZoneID:      "footer",
		Fingerprint: "00aabbccddeeff11",
		Rect:        zone.Rect{X: 0, Y: 448, W: 800, H: 32},
		Raster:      bitmap.Blank(800, 32),
	}
	if err := d.Draw(context.Background(), update, false); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "footer.bmp"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	raster, err := bitmap.Decode(data)
	if err != nil {
		t.Fatalf("output is not a valid bitmap: %v", err)
	}
	if raster.Width != 800 || raster.Height != 32 {
		t.Errorf("output %dx%d, want 800x32", raster.Width, raster.Height)
	}
}

func TestDirDisplayShowPairingCode(t *testing.T) {
	dir := t.TempDir()
	d := &dirDisplay{dir: dir, log: testLogger()}

	if err := d.ShowPairingCode(context.Background(), "KM7P2X"); err != nil {
		t.Fatalf("ShowPairingCode() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pairing-code.txt"))
	if err != nil {
		t.Fatalf("reading code file: %v", err)
	}
	if string(data) != "KM7P2X\n" {
		t.Errorf("code file = %q", data)
	}
}
