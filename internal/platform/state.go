package platform

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"
)

// State is the published snapshot of one entity.
type State struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`

	// LastChanged moves only when State changes.
	LastChanged time.Time `json:"last_changed"`
	// LastUpdated moves on every accepted write.
	LastUpdated time.Time `json:"last_updated"`
}

// Domain returns the part of the entity id before the first dot.
func (s *State) Domain() string {
	domain, _, _ := strings.Cut(s.EntityID, ".")
	return domain
}

// Attr returns a single attribute.
func (s *State) Attr(key string) (any, bool) {
	v, ok := s.Attributes[key]
	return v, ok
}

// clone returns a copy whose attribute map can be read without locking.
// Attribute values themselves are treated as immutable.
func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Attributes = maps.Clone(s.Attributes)
	return &c
}

// StateMachine stores the current State of every entity and publishes a
// StateChangedEvent on the bus for every accepted write.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Events are queued while the lock is held and delivered after it is
//     released, so subscribers may read the state machine freely.
type StateMachine struct {
	mu     sync.RWMutex
	states map[string]*State
	bus    *Bus
	now    func() time.Time
}

// NewStateMachine creates an empty state machine publishing on bus.
func NewStateMachine(bus *Bus) *StateMachine {
	return &StateMachine{
		states: make(map[string]*State),
		bus:    bus,
		now:    time.Now,
	}
}

// Get returns a copy of the entity's state, or nil if it has none.
func (sm *StateMachine) Get(entityID string) *State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.states[entityID].clone()
}

// All returns copies of every state ordered by entity id.
func (sm *StateMachine) All() []*State {
	sm.mu.RLock()
	out := make([]*State, 0, len(sm.states))
	for _, s := range sm.states {
		out = append(out, s.clone())
	}
	sm.mu.RUnlock()

	slices.SortFunc(out, func(a, b *State) int {
		return strings.Compare(a.EntityID, b.EntityID)
	})
	return out
}

// Set writes a state.
//
// Writing the same state string and attributes as currently stored is a
// no-op: nothing is published and LastUpdated is kept.
//
// Returns:
//   - bool: true if the write was accepted and an event published
func (sm *StateMachine) Set(ctx context.Context, entityID, state string, attrs map[string]any) bool {
	now := sm.now()

	sm.mu.Lock()
	old := sm.states[entityID]
	if old != nil && old.State == state && reflect.DeepEqual(old.Attributes, attrs) {
		sm.mu.Unlock()
		return false
	}

	next := &State{
		EntityID:    entityID,
		State:       state,
		Attributes:  maps.Clone(attrs),
		LastChanged: now,
		LastUpdated: now,
	}
	if next.Attributes == nil {
		next.Attributes = map[string]any{}
	}
	if old != nil && old.State == state {
		next.LastChanged = old.LastChanged
	}
	sm.states[entityID] = next

	sm.bus.enqueue(ctx, Event{
		Type:      EventStateChanged,
		EntityID:  entityID,
		OldState:  old.clone(),
		NewState:  next.clone(),
		TimeFired: now,
	})
	sm.mu.Unlock()

	sm.bus.drain()
	return true
}

// Remove deletes an entity's state and publishes an event with a nil NewState.
//
// Returns:
//   - bool: false if the entity had no state
func (sm *StateMachine) Remove(ctx context.Context, entityID string) bool {
	sm.mu.Lock()
	old, ok := sm.states[entityID]
	if !ok {
		sm.mu.Unlock()
		return false
	}
	delete(sm.states, entityID)

	sm.bus.enqueue(ctx, Event{
		Type:      EventStateChanged,
		EntityID:  entityID,
		OldState:  old.clone(),
		TimeFired: sm.now(),
	})
	sm.mu.Unlock()

	sm.bus.drain()
	return true
}
