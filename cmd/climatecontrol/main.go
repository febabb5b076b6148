// Climate Control - MQTT climate bridge
//
// This is the main entry point for the climate control service. It exposes
// MQTT-driven climate controllers, a fixed climate switch and an
// aggregation sensor as entities, mirrors the sensor onto the switch, and
// serves a REST/WebSocket API for state, services and config flows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/climate-control/migrations"

	"github.com/nerrad567/climate-control/internal/api"
	"github.com/nerrad567/climate-control/internal/audit"
	"github.com/nerrad567/climate-control/internal/automation"
	"github.com/nerrad567/climate-control/internal/climate"
	"github.com/nerrad567/climate-control/internal/climateswitch"
	"github.com/nerrad567/climate-control/internal/configentry"
	"github.com/nerrad567/climate-control/internal/configflow"
	"github.com/nerrad567/climate-control/internal/group"
	"github.com/nerrad567/climate-control/internal/history"
	"github.com/nerrad567/climate-control/internal/infrastructure/config"
	"github.com/nerrad567/climate-control/internal/infrastructure/database"
	"github.com/nerrad567/climate-control/internal/infrastructure/influxdb"
	"github.com/nerrad567/climate-control/internal/infrastructure/logging"
	"github.com/nerrad567/climate-control/internal/infrastructure/metrics"
	"github.com/nerrad567/climate-control/internal/infrastructure/mqtt"
	"github.com/nerrad567/climate-control/internal/platform"
	"github.com/nerrad567/climate-control/internal/sensor"
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

// shutdownTimeout bounds entity and integration teardown.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting climate control",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Metrics are always collected; exposition depends on cfg.Metrics.Enabled.
	prom := metrics.New(cfg.Metrics.Namespace, version)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetObserver(prom)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Platform: host, bus, state machine and service registry
	host := platform.NewHost(mqttClient, log.Component("platform"))
	pctx := platform.NewContext(host)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down integrations")
		if closeErr := pctx.Close(shutdownCtx); closeErr != nil {
			log.Error("error closing integrations", "error", closeErr)
		}
		if shutErr := host.Shutdown(shutdownCtx); shutErr != nil {
			log.Error("error removing entities", "error", shutErr)
		}
	}()

	// State history, telemetry and state gauges share one bus subscriber
	var historyRepo history.Repository
	if cfg.Climate.History.Enabled {
		historyRepo = history.NewSQLiteRepository(db.DB)
	}
	var sink history.TelemetrySink
	if influxClient != nil {
		sink = influxClient
	}
	recorder := startRecorder(ctx, cfg, host, historyRepo, sink, prom, log)
	defer recorder.Stop()

	if err := addStaticEntities(ctx, cfg, host, prom, log); err != nil {
		return err
	}

	// WebSocket hub shared by the API server and the automation engine
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	// Mirror automations
	rules := automation.NewRegistry()
	rules.SetLogger(log.Component("automation"))
	for _, m := range cfg.Climate.Automations {
		if _, addErr := rules.Add(automation.Rule{ID: m.ID, Source: m.Source, Target: m.Target, Enabled: true}); addErr != nil {
			return fmt.Errorf("adding automation %q: %w", m.ID, addErr)
		}
	}
	runRepo := automation.NewSQLiteRepository(db.DB)
	engine := automation.NewEngine(rules, host.Bus(), host.Services(), runRepo, hub, prom, log.Component("automation"))
	engine.Start()
	defer engine.Stop()
	log.Info("automations started", "rules", rules.Count())

	// Climate integration and config entries
	integration, err := climate.NewIntegration(pctx, log.Component("climate"), prom)
	if err != nil {
		return fmt.Errorf("creating climate integration: %w", err)
	}

	entries := configentry.NewRegistry(configentry.NewSQLiteRepository(db.DB))
	entries.SetLogger(log.Component("configentry"))
	if refreshErr := entries.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading config entries: %w", refreshErr)
	}
	setupEntries(ctx, entries, integration, log)
	entries.OnCreate(integration.SetupEntry)
	entries.OnUpdate(integration.ReloadEntry)
	entries.OnRemove(integration.UnloadEntry)

	flows := configflow.NewManager(entries, host.MQTT())
	flows.SetLogger(log.Component("configflow"))

	// Health checks shared by startup and GET /health
	checks := healthChecks(db, mqttClient, influxClient)

	// API server
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:         cfg.API,
			WS:             cfg.WebSocket,
			Security:       cfg.Security,
			Metrics:        cfg.Metrics,
			Logger:         log.Component("api"),
			Host:           host,
			Entries:        entries,
			Flows:          flows,
			History:        historyRepo,
			Runs:           runRepo,
			Rules:          rules,
			Audit:          audit.NewSQLiteRepository(db.DB),
			DB:             db,
			Hub:            hub,
			MetricsHandler: prom.Handler(),
			HealthChecks:   checks,
			Version:        version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := runHealthChecks(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API server, automations, history recorder, integrations and
	// entities, InfluxDB, MQTT, database.

	log.Info("climate control stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CLIMATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLIMATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// addStaticEntities adds the configured groups, the climate switch and the
// aggregation sensor. Groups go first so the sensor can resolve its members.
func addStaticEntities(ctx context.Context, cfg *config.Config, host *platform.Host, prom *metrics.Metrics, log *logging.Logger) error {
	for _, g := range cfg.Climate.Groups {
		grp, err := group.New(g.EntityID, g.Name, g.Entities)
		if err != nil {
			return fmt.Errorf("creating group %q: %w", g.EntityID, err)
		}
		if err := host.AddEntity(ctx, grp); err != nil {
			return fmt.Errorf("adding group %q: %w", g.EntityID, err)
		}
		log.Info("group added", "entity_id", g.EntityID, "members", len(g.Entities))
	}

	if cfg.Climate.Switch.Enabled {
		sw := climateswitch.New(climateswitch.Topics{
			Command: cfg.Climate.Switch.CommandTopic,
			State:   cfg.Climate.Switch.StateTopic,
		}, log.Component("switch"), prom)
		if err := host.AddEntity(ctx, sw); err != nil {
			return fmt.Errorf("adding climate switch: %w", err)
		}
	}

	if cfg.Climate.Sensor.Enabled {
		if err := host.AddEntity(ctx, sensor.New(cfg.Climate.Sensor.Group, log.Component("sensor"))); err != nil {
			return fmt.Errorf("adding aggregation sensor: %w", err)
		}
	}

	return nil
}

// startRecorder subscribes the state recorder to the bus. The recorder
// always feeds the telemetry sink and the state gauges. The repository
// and its pruner run only when history is enabled.
func startRecorder(ctx context.Context, cfg *config.Config, host *platform.Host, repo history.Repository, sink history.TelemetrySink, prom *metrics.Metrics, log *logging.Logger) *history.Recorder {
	recorder := history.NewRecorder(repo, sink, prom, log.Component("history"))
	recorder.Start(host.Bus())

	if repo == nil {
		log.Info("state history disabled")
		return recorder
	}

	go recorder.RunPruner(ctx, cfg.HistoryPruneInterval(), cfg.HistoryRetention())
	log.Info("state history enabled",
		"retention", cfg.HistoryRetention(),
		"prune_interval", cfg.HistoryPruneInterval(),
	)
	return recorder
}

// setupEntries starts a controller for every stored climate entry.
// A broken entry is logged and skipped so the rest still come up.
func setupEntries(ctx context.Context, entries *configentry.Registry, integration *climate.Integration, log *logging.Logger) {
	stored := entries.List(ctx, climate.Domain)
	for i := range stored {
		if err := integration.SetupEntry(ctx, &stored[i]); err != nil {
			log.Error("config entry setup failed",
				"entry_id", stored[i].ID,
				"title", stored[i].Title,
				"error", err,
			)
		}
	}
	log.Info("climate entries set up", "entries", len(stored), "controllers", len(integration.Controllers()))
}

// healthChecks returns the component checks used at startup and by the
// API health endpoint. InfluxDB is only checked when enabled.
func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"database": db.HealthCheck,
		"mqtt":     mqttClient.HealthCheck,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient.HealthCheck
	}
	return checks
}

// runHealthChecks runs every check in name order and returns the first failure.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Component checks keyed by name
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func runHealthChecks(ctx context.Context, checks map[string]api.HealthCheck) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		check, ok := checks[name]
		if !ok {
			continue
		}
		if err := check(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
