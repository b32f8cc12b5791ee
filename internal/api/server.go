package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/m1ckyb/commutecompute-core/internal/device"
	"github.com/m1ckyb/commutecompute-core/internal/dispatch"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/config"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/influxdb"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/logging"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/mqtt"
	"github.com/m1ckyb/commutecompute-core/internal/pairing"
	"github.com/m1ckyb/commutecompute-core/internal/synccache"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Dispatcher *dispatch.Dispatcher
	Pairing    *pairing.Registry
	Devices    *device.Registry
	Cache      *synccache.Cache

	// MQTT and Influx are optional event surfaces. Nil disables them.
	MQTT   *mqtt.Client
	Influx *influxdb.Client

	// WebhookURL is the zone-fetch base delivered to devices through
	// pairing. Empty means setup is incomplete; zone fetches answer 412
	// until an operator configures site.public_url.
	WebhookURL string

	Version string
}

// Server is the HTTP API server for CommuteCompute Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	dispatcher *dispatch.Dispatcher
	pairing    *pairing.Registry
	devices    *device.Registry
	cache      *synccache.Cache
	mqtt       *mqtt.Client
	influx     *influxdb.Client
	webhookURL string
	version    string
	startTime  time.Time
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, dispatcher, registries)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Pairing == nil {
		return nil, fmt.Errorf("pairing registry is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		pairing:    deps.Pairing,
		devices:    deps.Devices,
		cache:      deps.Cache,
		mqtt:       deps.MQTT,
		influx:     deps.Influx,
		webhookURL: deps.WebhookURL,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
