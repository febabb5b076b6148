package climateswitch

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/climate-control/internal/codec"
	"github.com/nerrad567/climate-control/internal/platform"
)

// Fixed identity and default topics of the climate switch.
const (
	Name                = "Climate"
	UniqueID            = "climate_switch"
	EntityID            = "switch.climate"
	EntityDomain        = "switch"
	DefaultCommandTopic = "home/switch/climate/set"
	DefaultStateTopic   = "home/switch/climate/state"

	ServiceTurnOn  = "turn_on"
	ServiceTurnOff = "turn_off"

	StateOn  = "on"
	StateOff = "off"
)

// Logger defines the logging interface used by the switch.
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

// Observer receives published commands for metrics.
type Observer interface {
	CommandPublished(entityID, command string)
}

// Topics are the switch's MQTT topics.
type Topics struct {
	Command string
	State   string
}

// Switch is an optimistic on/off switch backed by MQTT.
//
// TurnOn and TurnOff publish the command and immediately assume it took
// effect. Messages on the state topic overwrite that assumption.
type Switch struct {
	topics   Topics
	logger   Logger
	observer Observer

	mu    sync.RWMutex
	isOn  bool
	host  *platform.Host
	unsub func() error
}

// New creates the switch. Empty topics fall back to the defaults.
func New(topics Topics, logger Logger, observer Observer) *Switch {
	if topics.Command == "" {
		topics.Command = DefaultCommandTopic
	}
	if topics.State == "" {
		topics.State = DefaultStateTopic
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Switch{topics: topics, logger: logger, observer: observer}
}

// EntityID implements platform.Entity.
func (s *Switch) EntityID() string { return EntityID }

// UniqueID implements platform.Entity.
func (s *Switch) UniqueID() string { return UniqueID }

// IsOn reports the current (possibly assumed) state.
func (s *Switch) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOn
}

// State implements platform.Entity.
func (s *Switch) State() string {
	if s.IsOn() {
		return StateOn
	}
	return StateOff
}

// Attributes implements platform.Entity.
func (s *Switch) Attributes() map[string]any {
	return map[string]any{
		"friendly_name": Name,
		"assumed_state": true,
	}
}

// Attach subscribes to the state topic and registers the switch services.
func (s *Switch) Attach(_ context.Context, host *platform.Host) error {
	unsub, err := host.MQTT().Subscribe(s.topics.State, 1, func(_ string, payload []byte) error {
		s.HandleStateMessage(payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topics.State, err)
	}

	s.mu.Lock()
	s.host = host
	s.unsub = unsub
	s.mu.Unlock()

	host.Services().Register(EntityDomain, ServiceTurnOn, s.serviceHandler(host, true))
	host.Services().Register(EntityDomain, ServiceTurnOff, s.serviceHandler(host, false))

	s.logger.Info("climate switch attached", "state_topic", s.topics.State, "command_topic", s.topics.Command)
	return nil
}

// Detach drops the subscription and the switch services.
func (s *Switch) Detach(context.Context) error {
	s.mu.Lock()
	host, unsub := s.host, s.unsub
	s.host, s.unsub = nil, nil
	s.mu.Unlock()

	if host != nil {
		host.Services().Remove(EntityDomain, ServiceTurnOn)
		host.Services().Remove(EntityDomain, ServiceTurnOff)
	}
	if unsub != nil {
		return unsub()
	}
	return nil
}

// HandleStateMessage sets the state from a device report.
// Only the exact payload "ON" means on.
func (s *Switch) HandleStateMessage(payload []byte) {
	s.set(codec.ParseOnOff(payload))
}

// TurnOn publishes ON and assumes the switch is on.
func (s *Switch) TurnOn(ctx context.Context) { s.command(ctx, true) }

// TurnOff publishes OFF and assumes the switch is off.
func (s *Switch) TurnOff(ctx context.Context) { s.command(ctx, false) }

func (s *Switch) command(_ context.Context, on bool) {
	host := s.attachedHost()
	if host == nil {
		s.logger.Warn("switch command dropped, not attached")
		return
	}

	payload := codec.FormatOnOff(on)
	if err := host.MQTT().Publish(s.topics.Command, []byte(payload), 0, false); err != nil {
		s.logger.Warn("switch command publish failed", "topic", s.topics.Command, "payload", payload, "error", err)
		return
	}
	if s.observer != nil {
		s.observer.CommandPublished(EntityID, payload)
	}
	s.set(on)
}

func (s *Switch) set(on bool) {
	s.mu.Lock()
	s.isOn = on
	host := s.host
	s.mu.Unlock()

	if host != nil {
		host.WriteState(context.Background(), s)
	}
}

func (s *Switch) attachedHost() *platform.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

func (s *Switch) serviceHandler(host *platform.Host, on bool) platform.ServiceHandler {
	return func(ctx context.Context, call platform.ServiceCall) error {
		targets, err := host.TargetEntities(call)
		if err != nil {
			return err
		}
		for _, e := range targets {
			sw, ok := e.(*Switch)
			if !ok {
				continue
			}
			if on {
				sw.TurnOn(ctx)
			} else {
				sw.TurnOff(ctx)
			}
		}
		return nil
	}
}
