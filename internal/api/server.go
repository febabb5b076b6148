package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/climate-control/internal/audit"
	"github.com/nerrad567/climate-control/internal/automation"
	"github.com/nerrad567/climate-control/internal/configentry"
	"github.com/nerrad567/climate-control/internal/configflow"
	"github.com/nerrad567/climate-control/internal/history"
	"github.com/nerrad567/climate-control/internal/infrastructure/config"
	"github.com/nerrad567/climate-control/internal/infrastructure/logging"
	"github.com/nerrad567/climate-control/internal/platform"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChannelStateChanged is the WebSocket channel carrying bus events.
const ChannelStateChanged = platform.EventStateChanged

// EntryStore is the part of the config entry registry the API needs.
// *configentry.Registry satisfies it.
type EntryStore interface {
	List(ctx context.Context, domain string) []configentry.Entry
	Get(ctx context.Context, id string) (*configentry.Entry, error)
	Delete(ctx context.Context, id string) error
}

// HealthCheck reports whether one component is usable.
type HealthCheck func(ctx context.Context) error

// DBStatser exposes connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Metrics  config.MetricsConfig
	Logger   *logging.Logger
	Host     *platform.Host
	Entries  EntryStore
	Flows    *configflow.Manager
	History  history.Repository    // optional: history endpoint answers 503 without it
	Runs     automation.Repository // optional
	Rules    *automation.Registry  // optional
	Audit    audit.Repository      // optional: API changes are not recorded without it
	DB       DBStatser             // optional: pool stats in /system
	Hub      *Hub                  // If set, the server uses this hub instead of creating its own

	// MetricsHandler serves Prometheus exposition on Metrics.Path when set.
	MetricsHandler http.Handler

	// HealthChecks are run by GET /health, keyed by component name.
	HealthChecks map[string]HealthCheck

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg            config.APIConfig
	wsCfg          config.WebSocketConfig
	secCfg         config.SecurityConfig
	metricsCfg     config.MetricsConfig
	logger         *logging.Logger
	host           *platform.Host
	entries        EntryStore
	flows          *configflow.Manager
	history        history.Repository
	runs           automation.Repository
	rules          *automation.Registry
	db             DBStatser
	metricsHandler http.Handler
	healthChecks   map[string]HealthCheck
	version        string
	startTime      time.Time
	tickets        *ticketStore
	auditRepo      audit.Repository
	auditCh        chan *audit.Record

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	unsubState  func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, host, entries, flows)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Host == nil {
		return nil, fmt.Errorf("platform host is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("config entry store is required")
	}
	if deps.Flows == nil {
		return nil, fmt.Errorf("config flow manager is required")
	}

	s := &Server{
		cfg:            deps.Config,
		wsCfg:          deps.WS,
		secCfg:         deps.Security,
		metricsCfg:     deps.Metrics,
		logger:         deps.Logger,
		host:           deps.Host,
		entries:        deps.Entries,
		flows:          deps.Flows,
		history:        deps.History,
		runs:           deps.Runs,
		rules:          deps.Rules,
		db:             deps.DB,
		metricsHandler: deps.MetricsHandler,
		healthChecks:   deps.HealthChecks,
		version:        deps.Version,
		startTime:      time.Now(),
		tickets:        newTicketStore(),
		auditRepo:      deps.Audit,
	}
	if deps.Audit != nil {
		s.auditCh = make(chan *audit.Record, auditChanSize)
	}

	// The automation engine broadcasts on the same hub, so main creates it
	// before both.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub, or nil before Start without an injected hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays bus state changes to WebSocket
// clients, and launches the HTTP listener in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)
	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	s.subscribeStateUpdates()

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
			s.logger.Info("API server starting", "address", s.server.Addr)
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
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubState != nil {
		s.unsubState()
		s.unsubState = nil
	}
	if s.cancel != nil {
		s.cancel()
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

// subscribeStateUpdates relays every bus event to WebSocket clients
// subscribed to ChannelStateChanged.
func (s *Server) subscribeStateUpdates() {
	if s.unsubState != nil {
		return
	}
	s.unsubState = s.host.Bus().Subscribe(nil, func(_ context.Context, ev platform.Event) {
		if s.hub != nil {
			s.hub.Broadcast(ChannelStateChanged, ev)
		}
	})
}
