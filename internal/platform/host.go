package platform

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Host owns the entities of the running service and the shared state
// machine, bus, services and MQTT mux they use.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Attach and Detach run without the host lock held.
type Host struct {
	mux      *Mux
	bus      *Bus
	states   *StateMachine
	services *Services
	logger   Logger

	mu        sync.RWMutex
	entities  map[string]Entity // entity id -> entity
	uniqueIDs map[string]string // unique id -> entity id
}

// NewHost creates a host publishing over transport.
//
// Parameters:
//   - transport: MQTT client (usually *mqtt.Client)
//   - logger: Logger for platform diagnostics (may be nil)
func NewHost(transport Transport, logger Logger) *Host {
	logger = orNoop(logger)
	bus := NewBus(logger)
	return &Host{
		mux:       NewMux(transport),
		bus:       bus,
		states:    NewStateMachine(bus),
		services:  NewServices(),
		logger:    logger,
		entities:  make(map[string]Entity),
		uniqueIDs: make(map[string]string),
	}
}

// MQTT returns the topic mux shared by all entities.
func (h *Host) MQTT() *Mux { return h.mux }

// Bus returns the state change bus.
func (h *Host) Bus() *Bus { return h.bus }

// States returns the state machine.
func (h *Host) States() *StateMachine { return h.states }

// Services returns the service registry.
func (h *Host) Services() *Services { return h.services }

// Logger returns the host logger.
func (h *Host) Logger() Logger { return h.logger }

// AddEntity registers e, attaches it and writes its initial state.
//
// Returns:
//   - error: ErrInvalidEntityID, ErrEntityExists, or the Attach error
//     (in which case the entity is not registered)
func (h *Host) AddEntity(ctx context.Context, e Entity) error {
	entityID := e.EntityID()
	if _, _, err := SplitEntityID(entityID); err != nil {
		return err
	}

	h.mu.Lock()
	if _, exists := h.entities[entityID]; exists {
		h.mu.Unlock()
		return fmt.Errorf("%w: entity id %s", ErrEntityExists, entityID)
	}
	uniqueID := e.UniqueID()
	if uniqueID != "" {
		if owner, exists := h.uniqueIDs[uniqueID]; exists {
			h.mu.Unlock()
			return fmt.Errorf("%w: unique id %s used by %s", ErrEntityExists, uniqueID, owner)
		}
		h.uniqueIDs[uniqueID] = entityID
	}
	h.entities[entityID] = e
	h.mu.Unlock()

	if err := e.Attach(ctx, h); err != nil {
		h.forget(entityID, uniqueID)
		return fmt.Errorf("attaching %s: %w", entityID, err)
	}

	h.WriteState(ctx, e)
	h.logger.Debug("entity added", "entity_id", entityID)
	return nil
}

// RemoveEntity detaches the entity and removes its state.
func (h *Host) RemoveEntity(ctx context.Context, entityID string) error {
	h.mu.RLock()
	e, ok := h.entities[entityID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}

	h.forget(entityID, e.UniqueID())
	err := e.Detach(ctx)
	h.states.Remove(ctx, entityID)
	h.logger.Debug("entity removed", "entity_id", entityID)

	if err != nil {
		return fmt.Errorf("detaching %s: %w", entityID, err)
	}
	return nil
}

// WriteState publishes the entity's current state and attributes.
// Entities call this after every change to their own state.
func (h *Host) WriteState(ctx context.Context, e Entity) {
	h.states.Set(ctx, e.EntityID(), e.State(), e.Attributes())
}

// Entity returns the registered entity with the given id.
func (h *Host) Entity(entityID string) (Entity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entities[entityID]
	return e, ok
}

// Entities returns the ids of every registered entity in domain
// (all domains when domain is empty), sorted.
func (h *Host) Entities(domain string) []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.entities))
	for id := range h.entities {
		if domain == "" || DomainOf(id) == domain {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// TargetEntities resolves a service call's entity_id to registered
// entities of the call's domain. EntityAll selects all of them.
// Unknown ids are skipped and logged.
func (h *Host) TargetEntities(call ServiceCall) ([]Entity, error) {
	ids, err := call.EntityIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 1 && ids[0] == EntityAll {
		ids = h.Entities(call.Domain)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		e, ok := h.entities[id]
		if !ok || DomainOf(id) != call.Domain {
			h.logger.Warn("service call target not found",
				"service", call.Domain+"."+call.Service,
				"entity_id", id,
			)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// AvailableEntityID returns "domain.slug(name)", adding a numeric suffix
// when the id is already taken.
func (h *Host) AvailableEntityID(domain, name string) string {
	base := domain + "." + Slugify(name)

	h.mu.RLock()
	defer h.mu.RUnlock()

	candidate := base
	for i := 2; ; i++ {
		if _, taken := h.entities[candidate]; !taken && h.states.Get(candidate) == nil {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

// Shutdown detaches every entity in reverse id order.
func (h *Host) Shutdown(ctx context.Context) error {
	ids := h.Entities("")
	slices.Reverse(ids)

	var failed []string
	for _, id := range ids {
		if err := h.RemoveEntity(ctx, id); err != nil {
			h.logger.Warn("entity removal failed", "entity_id", id, "error", err)
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("removing entities: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (h *Host) forget(entityID, uniqueID string) {
	h.mu.Lock()
	delete(h.entities, entityID)
	if uniqueID != "" && h.uniqueIDs[uniqueID] == entityID {
		delete(h.uniqueIDs, uniqueID)
	}
	h.mu.Unlock()
}
