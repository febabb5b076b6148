package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the climate control service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Climate   ClimateConfig   `yaml:"climate"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic carries the retained online/offline availability message
	// and the broker-published Last Will.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// ClimateConfig contains the climate integration settings: the statically
// defined groups, the fixed climate switch, the aggregation sensor and the
// mirror automations.
type ClimateConfig struct {
	Groups      []GroupConfig  `yaml:"groups"`
	Switch      SwitchConfig   `yaml:"switch"`
	Sensor      SensorConfig   `yaml:"sensor"`
	Automations []MirrorConfig `yaml:"automations"`
	History     HistoryConfig  `yaml:"history"`
}

// GroupConfig declares a group entity and its member entity IDs.
type GroupConfig struct {
	// EntityID must be in the group domain, e.g. "group.heizung_climates".
	EntityID string   `yaml:"entity_id"`
	Name     string   `yaml:"name"`
	Entities []string `yaml:"entities"`
}

// SwitchConfig contains the climate switch MQTT topics.
type SwitchConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CommandTopic string `yaml:"command_topic"`
	StateTopic   string `yaml:"state_topic"`
}

// SensorConfig contains the aggregation sensor settings.
type SensorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Group is the entity ID of the group whose members are aggregated.
	Group string `yaml:"group"`
}

// MirrorConfig declares a sensor → switch mirror automation.
type MirrorConfig struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// HistoryConfig contains state history recorder settings.
type HistoryConfig struct {
	Enabled        bool `yaml:"enabled"`
	RetentionHours int  `yaml:"retention_hours"`
	PruneInterval  int  `yaml:"prune_interval"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CLIMATE_SECTION_KEY
// For example: CLIMATE_DATABASE_PATH, CLIMATE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home",
			Name: "Climate Control",
		},
		Database: DatabaseConfig{
			Path:        "./data/climate-control.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "climate-control",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			StatusTopic: "climate_control/status",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8123,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "climate_control",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Climate: ClimateConfig{
			Switch: SwitchConfig{
				Enabled:      true,
				CommandTopic: "home/switch/climate/set",
				StateTopic:   "home/switch/climate/state",
			},
			Sensor: SensorConfig{
				Enabled: true,
				Group:   "group.heizung_climates",
			},
			Automations: []MirrorConfig{
				{
					ID:     "climate_mirror",
					Source: "binary_sensor.heizung_active",
					Target: "switch.climate",
				},
			},
			History: HistoryConfig{
				Enabled:        true,
				RetentionHours: 168,
				PruneInterval:  60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CLIMATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("CLIMATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("CLIMATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CLIMATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CLIMATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CLIMATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("CLIMATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - always override the JWT secret in production
	if v := os.Getenv("CLIMATE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.StatusTopic == "" {
		errs = append(errs, "mqtt.status_topic is required")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API can change device state, so it always needs a signing secret.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set CLIMATE_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	errs = append(errs, c.Climate.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks the climate section and returns one message per problem.
func (c *ClimateConfig) validate() []string {
	var errs []string

	seen := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		if !strings.HasPrefix(g.EntityID, "group.") {
			errs = append(errs, fmt.Sprintf("climate.groups[%d].entity_id must start with \"group.\"", i))
			continue
		}
		if seen[g.EntityID] {
			errs = append(errs, fmt.Sprintf("climate.groups[%d].entity_id %q is duplicated", i, g.EntityID))
		}
		seen[g.EntityID] = true
	}

	if c.Switch.Enabled && (c.Switch.CommandTopic == "" || c.Switch.StateTopic == "") {
		errs = append(errs, "climate.switch command_topic and state_topic are required")
	}

	if c.Sensor.Enabled && c.Sensor.Group == "" {
		errs = append(errs, "climate.sensor.group is required")
	}

	for i, a := range c.Automations {
		if a.Source == "" {
			errs = append(errs, fmt.Sprintf("climate.automations[%d].source is required", i))
		}
		if !strings.HasPrefix(a.Target, "switch.") {
			errs = append(errs, fmt.Sprintf("climate.automations[%d].target must be a switch entity", i))
		}
	}

	if c.History.Enabled && c.History.RetentionHours <= 0 {
		errs = append(errs, "climate.history.retention_hours must be positive")
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// HistoryRetention returns how long state history rows are kept.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Climate.History.RetentionHours) * time.Hour
}

// HistoryPruneInterval returns how often old state history is pruned.
// Falls back to one hour when unset.
func (c *Config) HistoryPruneInterval() time.Duration {
	if c.Climate.History.PruneInterval <= 0 {
		return time.Hour
	}
	return time.Duration(c.Climate.History.PruneInterval) * time.Minute
}
