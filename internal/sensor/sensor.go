package sensor

import (
	"context"
	"slices"
	"sync"

	"github.com/nerrad567/climate-control/internal/group"
	"github.com/nerrad567/climate-control/internal/platform"
)

// Fixed identity of the aggregation sensor.
const (
	Name        = "Heizung Active"
	UniqueID    = "heizung_active_sensor"
	EntityID    = "binary_sensor.heizung_active"
	DeviceClass = "running"

	StateOn  = "on"
	StateOff = "off"
)

// Logger defines the logging interface used by the sensor.
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

// inactiveStates are member states that do not count as active. An
// unknown member is not evidence of activity. Any other reported state,
// unavailable included, is.
var inactiveStates = map[string]struct{}{
	"off":     {},
	"idle":    {},
	"unknown": {},
}

// ActiveSensor is on while any member of a group is active.
//
// Members are read from the group's entity_id attribute once, at attach.
// Later changes to the group are not picked up. Members with no state
// count as inactive.
type ActiveSensor struct {
	groupID string
	logger  Logger

	mu      sync.RWMutex
	members []string
	active  []string
	isOn    bool
	host    *platform.Host
	unsub   func()
}

// New creates the sensor for groupID ("" for group.heizung_climates).
func New(groupID string, logger Logger) *ActiveSensor {
	if groupID == "" {
		groupID = group.DefaultClimateGroup
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &ActiveSensor{groupID: groupID, logger: logger}
}

// EntityID implements platform.Entity.
func (s *ActiveSensor) EntityID() string { return EntityID }

// UniqueID implements platform.Entity.
func (s *ActiveSensor) UniqueID() string { return UniqueID }

// IsOn reports whether any member is active.
func (s *ActiveSensor) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOn
}

// State implements platform.Entity.
func (s *ActiveSensor) State() string {
	if s.IsOn() {
		return StateOn
	}
	return StateOff
}

// Members returns the tracked member entity IDs.
func (s *ActiveSensor) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.members)
}

// Attributes implements platform.Entity.
func (s *ActiveSensor) Attributes() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"friendly_name":   Name,
		"device_class":    DeviceClass,
		"group":           s.groupID,
		"active_entities": slices.Clone(s.active),
	}
}

// Attach resolves the group members, starts tracking them and computes
// the initial state. A missing group leaves the sensor off and tracking
// nothing.
func (s *ActiveSensor) Attach(_ context.Context, host *platform.Host) error {
	groupState := host.States().Get(s.groupID)
	members := group.MembersOf(groupState)

	s.mu.Lock()
	s.host = host
	s.members = members
	s.mu.Unlock()

	if groupState == nil {
		s.logger.Warn("group not found, sensor stays off", "group", s.groupID)
	} else if len(members) > 0 {
		unsub := host.Bus().Subscribe(members, func(ctx context.Context, _ platform.Event) {
			s.recompute()
			host.WriteState(ctx, s)
		})
		s.mu.Lock()
		s.unsub = unsub
		s.mu.Unlock()
	}

	s.recompute()
	s.logger.Info("aggregation sensor attached", "group", s.groupID, "members", len(members))
	return nil
}

// Detach stops tracking the members.
func (s *ActiveSensor) Detach(context.Context) error {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.host = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return nil
}

// recompute derives the state from the current member states.
func (s *ActiveSensor) recompute() {
	s.mu.RLock()
	host := s.host
	members := s.members
	s.mu.RUnlock()

	if host == nil {
		return
	}

	var active []string
	for _, id := range members {
		if IsActive(host.States().Get(id)) {
			active = append(active, id)
		}
	}

	s.mu.Lock()
	s.active = active
	s.isOn = len(active) > 0
	s.mu.Unlock()
}

// IsActive reports whether a member state counts as active: present and
// not in the inactive set.
func IsActive(state *platform.State) bool {
	if state == nil {
		return false
	}
	_, inactive := inactiveStates[state.State]
	return !inactive
}
