// CommuteCompute Core - Commute Dashboard Server
//
// This is the main entry point for the CommuteCompute server. It renders
// an 800x480 commute dashboard as per-zone 1-bit bitmaps and serves them
// to battery-powered e-ink displays over a pull-only HTTP protocol.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/m1ckyb/commutecompute-core/migrations"

	"github.com/m1ckyb/commutecompute-core/internal/api"
	"github.com/m1ckyb/commutecompute-core/internal/dashboard"
	"github.com/m1ckyb/commutecompute-core/internal/device"
	"github.com/m1ckyb/commutecompute-core/internal/dispatch"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/config"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/database"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/influxdb"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/logging"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/mqtt"
	"github.com/m1ckyb/commutecompute-core/internal/pairing"
	"github.com/m1ckyb/commutecompute-core/internal/synccache"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting CommuteCompute Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Pairing registry, restored from persisted sessions
	pairingRepo := pairing.NewSQLiteRepository(db.DB)
	pairingRegistry := pairing.NewRegistry(pairingRepo, cfg.PairingTTL())
	pairingRegistry.SetLogger(log)
	if restoreErr := pairingRegistry.Restore(ctx); restoreErr != nil {
		return fmt.Errorf("restoring pairing sessions: %w", restoreErr)
	}
	log.Info("pairing registry initialised", "live_codes", pairingRegistry.Live())

	// Device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised")

	// Snapshot provider with burst caching
	provider := buildProvider(cfg, log)

	// Sync cache and dispatcher
	cache := synccache.New(cfg.Sync.MaxDevices)
	dispatcher := dispatch.New(provider, cache)
	dispatcher.SetLogger(log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		dispatcher.AddHook(&mqttSyncHook{client: mqttClient, log: log})

		// Operators publish to the refresh topic to push fresh content to
		// every device on its next poll.
		refreshTopic := mqtt.Topics{}.SystemRefresh()
		if subErr := mqttClient.Subscribe(refreshTopic, byte(cfg.MQTT.QoS), func(topic string, _ []byte) error {
			log.Info("sync cache invalidation requested", "topic", topic)
			cache.Invalidate()
			return nil
		}); subErr != nil {
			return fmt.Errorf("subscribing to %s: %w", refreshTopic, subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		dispatcher.AddHook(&influxSyncHook{client: influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	webhookURL := cfg.WebhookURL()
	if webhookURL == "" {
		log.Warn("site.public_url not configured, zone fetches will answer 412 until it is set")
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Logger:     log,
		Dispatcher: dispatcher,
		Pairing:    pairingRegistry,
		Devices:    deviceRegistry,
		Cache:      cache,
		MQTT:       mqttClient,
		Influx:     influxClient,
		WebhookURL: webhookURL,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("CommuteCompute Core stopped")
	return nil
}

// buildProvider selects the snapshot source and wraps it with burst caching.
// Only the demo provider exists today; live transit and weather feeds slot
// in here when they land.
func buildProvider(cfg *config.Config, log *logging.Logger) dashboard.Provider {
	var inner dashboard.Provider
	switch cfg.Dashboard.Provider {
	case "", "demo":
		inner = &dashboard.DemoProvider{}
	default:
		log.Warn("unknown dashboard provider, using demo", "provider", cfg.Dashboard.Provider)
		inner = &dashboard.DemoProvider{}
	}
	return dashboard.Cached(inner, cfg.SnapshotTTL())
}

// getConfigPath returns the configuration file path.
// Uses COMMUTECOMPUTE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("COMMUTECOMPUTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttSyncHook announces dispatched zone content on MQTT. Retained, so a
// dashboard joining later sees each zone's current fingerprint.
type mqttSyncHook struct {
	client *mqtt.Client
	log    *logging.Logger
}

// ZoneSynced implements dispatch.Hook.
func (h *mqttSyncHook) ZoneSynced(deviceKey, zoneID, fingerprint string, sentBytes int) {
	if !h.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"device_key":  deviceKey,
		"fingerprint": fingerprint,
		"sent_bytes":  sentBytes,
	})
	if err != nil {
		return
	}

	topic := mqtt.Topics{}.ZoneUpdate(zoneID)
	if err := h.client.PublishRetained(topic, payload); err != nil {
		h.log.Warn("zone update publish failed", "topic", topic, "error", err)
	}
}

// influxSyncHook records dispatched zone content as time-series points.
type influxSyncHook struct {
	client *influxdb.Client
}

// ZoneSynced implements dispatch.Hook.
func (h *influxSyncHook) ZoneSynced(deviceKey, zoneID, fingerprint string, sentBytes int) {
	h.client.WriteZoneSync(deviceKey, zoneID, fingerprint, sentBytes)
}
