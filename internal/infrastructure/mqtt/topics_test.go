package mqtt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/config"
)

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"zone update", Topics{}.ZoneUpdate("header"), "commutecompute/zone/header/update"},
		{"zone update composite", Topics{}.ZoneUpdate("trains"), "commutecompute/zone/trains/update"},
		{"device status", Topics{}.DeviceStatus("a1b2c3d4e5f60718"), "commutecompute/device/a1b2c3d4e5f60718/status"},
		{"device paired", Topics{}.DevicePaired("shared"), "commutecompute/device/shared/paired"},
		{"system status", Topics{}.SystemStatus(), "commutecompute/system/status"},
		{"system refresh", Topics{}.SystemRefresh(), "commutecompute/system/refresh"},
		{"all zone updates", Topics{}.AllZoneUpdates(), "commutecompute/zone/+/update"},
		{"all device status", Topics{}.AllDeviceStatus(), "commutecompute/device/+/status"},
		{"all topics", Topics{}.AllTopics(), "commutecompute/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopicsSharePrefix(t *testing.T) {
	topics := []string{
		Topics{}.ZoneUpdate("footer"),
		Topics{}.DeviceStatus("x"),
		Topics{}.DevicePaired("x"),
		Topics{}.SystemStatus(),
		Topics{}.SystemRefresh(),
		Topics{}.AllZoneUpdates(),
		Topics{}.AllDeviceStatus(),
	}

	for _, topic := range topics {
		if !strings.HasPrefix(topic, TopicPrefix+"/") {
			t.Errorf("topic %q does not start with %q", topic, TopicPrefix+"/")
		}
	}
}

func TestBuildClientOptionsBrokerScheme(t *testing.T) {
	tests := []struct {
		name string
		tls  bool
		want string
	}{
		{"plain", false, "tcp://broker.local:1883"},
		{"tls", true, "ssl://broker.local:8883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.MQTTConfig{}
			cfg.Broker.Host = "broker.local"
			cfg.Broker.Port = 1883
			if tt.tls {
				cfg.Broker.Port = 8883
				cfg.Broker.TLS = true
			}
			cfg.Broker.ClientID = "commutecompute-test"

			opts := buildClientOptions(cfg)
			servers := opts.Servers
			if len(servers) != 1 {
				t.Fatalf("expected 1 broker, got %d", len(servers))
			}
			if got := servers[0].String(); got != tt.want {
				t.Errorf("broker URL = %q, want %q", got, tt.want)
			}
			if opts.ClientID != "commutecompute-test" {
				t.Errorf("client ID = %q", opts.ClientID)
			}
		})
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := config.MQTTConfig{}
	cfg.Broker.Host = "localhost"
	cfg.Broker.Port = 1883
	cfg.Broker.ClientID = "commutecompute-core"

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if !opts.WillEnabled {
		t.Fatal("expected will to be enabled")
	}
	if opts.WillTopic != "commutecompute/system/status" {
		t.Errorf("will topic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("expected will to be retained")
	}

	var payload struct {
		Status   string `json:"status"`
		ClientID string `json:"client_id"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not valid JSON: %v", err)
	}
	if payload.Status != "offline" {
		t.Errorf("will status = %q, want offline", payload.Status)
	}
	if payload.Reason != "unexpected_disconnect" {
		t.Errorf("will reason = %q", payload.Reason)
	}
	if payload.ClientID != "commutecompute-core" {
		t.Errorf("will client_id = %q", payload.ClientID)
	}
}

func TestStatusPayloads(t *testing.T) {
	for _, tt := range []struct {
		name       string
		payload    string
		wantStatus string
	}{
		{"online", buildOnlinePayload("cc"), "online"},
		{"offline", buildOfflinePayload("cc"), "offline"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var decoded struct {
				Status    string `json:"status"`
				ClientID  string `json:"client_id"`
				Timestamp string `json:"timestamp"`
			}
			if err := json.Unmarshal([]byte(tt.payload), &decoded); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if decoded.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", decoded.Status, tt.wantStatus)
			}
			if decoded.ClientID != "cc" {
				t.Errorf("client_id = %q", decoded.ClientID)
			}
			if decoded.Timestamp == "" {
				t.Error("timestamp missing")
			}
		})
	}
}
