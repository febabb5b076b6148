package climate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/climate-control/internal/codec"
	"github.com/nerrad567/climate-control/internal/platform"
)

// Logger defines the logging interface used by controllers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives controller events for metrics.
type Observer interface {
	PayloadRejected(entityID, kind string)
	CommandPublished(entityID, command string)
}

type noopObserver struct{}

func (noopObserver) PayloadRejected(string, string)  {}
func (noopObserver) CommandPublished(string, string) {}

// Payload kinds reported to Observer.PayloadRejected.
const (
	KindMode               = "mode"
	KindTemperature        = "temperature"
	KindCurrentTemperature = "current_temperature"
)

// Controller is the climate entity of one config entry.
//
// Inbound MQTT state messages are the only thing that changes its state.
// SetMode and SetTemperature publish commands and wait for the device to
// report back.
//
// Thread Safety: all methods are safe for concurrent use. The state lock
// is never held while publishing or writing state.
type Controller struct {
	entryID  string
	entityID string
	cfg      EntryConfig
	logger   Logger
	observer Observer

	mu      sync.RWMutex
	mode    codec.Mode
	target  *float64
	current *float64

	host   *platform.Host // guarded by mu
	unsubs []func() error
}

// NewController creates a controller for a config entry.
//
// Parameters:
//   - entryID: Config entry ID, used as the unique ID
//   - entityID: Entity ID, normally climate.<slug(name)>
//   - cfg: Parsed entry configuration
//   - logger: Logger instance (may be nil)
//   - observer: Metrics observer (may be nil)
func NewController(entryID, entityID string, cfg EntryConfig, logger Logger, observer Observer) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	target := cfg.MinTemp
	return &Controller{
		entryID:  entryID,
		entityID: entityID,
		cfg:      cfg,
		logger:   logger,
		observer: observer,
		mode:     codec.ModeOff,
		target:   &target,
	}
}

// EntityID implements platform.Entity.
func (c *Controller) EntityID() string { return c.entityID }

// UniqueID implements platform.Entity.
func (c *Controller) UniqueID() string { return c.entryID }

// Name returns the configured display name.
func (c *Controller) Name() string { return c.cfg.Name }

// Config returns the controller configuration.
func (c *Controller) Config() EntryConfig { return c.cfg }

// State returns the current HVAC mode.
func (c *Controller) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return string(c.mode)
}

// Mode returns the current HVAC mode.
func (c *Controller) Mode() codec.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// TargetTemperature returns the target temperature, or nil if unset.
func (c *Controller) TargetTemperature() *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyFloat(c.target)
}

// CurrentTemperature returns the measured temperature, or nil until the
// device reports one.
func (c *Controller) CurrentTemperature() *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyFloat(c.current)
}

// Attributes implements platform.Entity.
func (c *Controller) Attributes() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]any{
		"hvac_modes":          hvacModes(),
		"min_temp":            c.cfg.MinTemp,
		"max_temp":            c.cfg.MaxTemp,
		"target_temp_step":    c.cfg.TempStep,
		"precision":           c.cfg.Precision,
		"temperature":         copyFloat(c.target),
		"current_temperature": copyFloat(c.current),
		"unit_of_measurement": UnitCelsius,
		"friendly_name":       c.cfg.Name,
	}
}

// Attach subscribes to the three state topics with QoS 1.
func (c *Controller) Attach(_ context.Context, host *platform.Host) error {
	c.mu.Lock()
	c.host = host
	c.mu.Unlock()

	subs := []struct {
		topic   string
		handler func([]byte)
	}{
		{c.cfg.Topics.ModeState, c.HandleModeMessage},
		{c.cfg.Topics.TemperatureState, c.HandleTemperatureMessage},
		{c.cfg.Topics.CurrentTemperature, c.HandleCurrentTemperatureMessage},
	}

	for _, s := range subs {
		handle := s.handler
		unsub, err := host.MQTT().Subscribe(s.topic, qosSubscribe, func(_ string, payload []byte) error {
			handle(payload)
			return nil
		})
		if err != nil {
			_ = c.unsubscribeAll()
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
		c.unsubs = append(c.unsubs, unsub)
	}

	c.logger.Info("climate controller attached",
		"entity_id", c.entityID,
		"entry_id", c.entryID,
		"mode_state_topic", c.cfg.Topics.ModeState,
	)
	return nil
}

// Detach drops the controller's subscriptions.
func (c *Controller) Detach(context.Context) error {
	return c.unsubscribeAll()
}

func (c *Controller) unsubscribeAll() error {
	var errs []error
	for _, unsub := range c.unsubs {
		if err := unsub(); err != nil {
			errs = append(errs, err)
		}
	}
	c.unsubs = nil
	return errors.Join(errs...)
}

// ─── Inbound ────────────────────────────────────────────────────────────────

// HandleModeMessage applies a mode report from the device. Unknown modes
// are logged and ignored.
func (c *Controller) HandleModeMessage(payload []byte) {
	mode, err := codec.ParseMode(payload)
	if err != nil {
		c.reject(KindMode, payload, err)
		return
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.writeState()
}

// HandleTemperatureMessage applies a target temperature report.
func (c *Controller) HandleTemperatureMessage(payload []byte) {
	v, err := codec.ParseTemperature(payload)
	if err != nil {
		c.reject(KindTemperature, payload, err)
		return
	}

	c.mu.Lock()
	c.target = &v
	c.mu.Unlock()
	c.writeState()
}

// HandleCurrentTemperatureMessage applies a measured temperature report.
func (c *Controller) HandleCurrentTemperatureMessage(payload []byte) {
	v, err := codec.ParseTemperature(payload)
	if err != nil {
		c.reject(KindCurrentTemperature, payload, err)
		return
	}

	c.mu.Lock()
	c.current = &v
	c.mu.Unlock()
	c.writeState()
}

func (c *Controller) reject(kind string, payload []byte, err error) {
	c.logger.Warn("could not handle state update",
		"entity_id", c.entityID,
		"kind", kind,
		"payload", string(payload),
		"error", err,
	)
	c.observer.PayloadRejected(c.entityID, kind)
}

func (c *Controller) writeState() {
	if host := c.attachedHost(); host != nil {
		host.WriteState(context.Background(), c)
	}
}

func (c *Controller) attachedHost() *platform.Host {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// ─── Commands ───────────────────────────────────────────────────────────────

// SetTemperature publishes a new target temperature. A nil value does
// nothing. Local state is not changed; the device's report will.
func (c *Controller) SetTemperature(ctx context.Context, temperature *float64) {
	if temperature == nil {
		return
	}
	c.publish(ctx, c.cfg.Topics.TemperatureCommand, codec.FormatTemperature(*temperature), KindTemperature)
}

// SetMode publishes a new HVAC mode. Unsupported modes are logged at
// error and nothing is published.
func (c *Controller) SetMode(ctx context.Context, mode string) {
	m, err := codec.ParseMode([]byte(mode))
	if err != nil {
		c.logger.Error("unsupported hvac mode", "entity_id", c.entityID, "hvac_mode", mode)
		return
	}
	c.publish(ctx, c.cfg.Topics.ModeCommand, codec.FormatMode(m), KindMode)
}

func (c *Controller) publish(_ context.Context, topic, payload, command string) {
	host := c.attachedHost()
	if host == nil {
		c.logger.Warn("command dropped, controller not attached", "entity_id", c.entityID, "topic", topic)
		return
	}
	if err := host.MQTT().Publish(topic, []byte(payload), qosCommand, false); err != nil {
		c.logger.Warn("command publish failed",
			"entity_id", c.entityID,
			"topic", topic,
			"error", err,
		)
		return
	}
	c.observer.CommandPublished(c.entityID, command)
	c.logger.Debug("command published", "entity_id", c.entityID, "topic", topic, "payload", payload)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
