package platform

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// EventStateChanged is the only event type the platform emits.
const EventStateChanged = "state_changed"

// Event describes one entity state transition.
//
// OldState is nil for an entity's first write; NewState is nil when the
// entity was removed.
type Event struct {
	Type      string    `json:"event_type"`
	EntityID  string    `json:"entity_id"`
	OldState  *State    `json:"old_state"`
	NewState  *State    `json:"new_state"`
	TimeFired time.Time `json:"time_fired"`
}

// EventHandler receives bus events. ctx is the context of the publisher.
type EventHandler func(ctx context.Context, e Event)

type subscriber struct {
	id      uint64
	filter  map[string]struct{} // nil matches every entity
	handler EventHandler
	active  atomic.Bool
}

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// Bus delivers state change events to subscribers synchronously.
//
// Events are delivered one at a time in the order they were published.
// A Publish made while another event is being delivered (from a handler,
// or from another goroutine) is queued and delivered by the goroutine
// already dispatching, after the current event completes. Handlers can
// therefore write state or call services without deadlocking or
// reordering delivery.
type Bus struct {
	mu          sync.Mutex
	subs        []*subscriber
	nextID      uint64
	queue       []queuedEvent
	dispatching bool

	logger Logger
}

// NewBus creates an empty bus.
func NewBus(logger Logger) *Bus {
	return &Bus{logger: orNoop(logger)}
}

// Subscribe registers handler for events about the given entity ids.
// A nil or empty entityIDs slice subscribes to every entity.
//
// The returned function unsubscribes; it is safe to call more than once
// and from inside a handler. After it returns the handler is not invoked
// again, even for events already queued.
func (b *Bus) Subscribe(entityIDs []string, handler EventHandler) (unsubscribe func()) {
	sub := &subscriber{handler: handler}
	if len(entityIDs) > 0 {
		sub.filter = make(map[string]struct{}, len(entityIDs))
		for _, id := range entityIDs {
			sub.filter[id] = struct{}{}
		}
	}
	sub.active.Store(true)

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		b.mu.Lock()
		b.subs = slices.DeleteFunc(b.subs, func(s *subscriber) bool { return s.id == sub.id })
		b.mu.Unlock()
	}
}

// Publish delivers e to every matching subscriber.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.enqueue(ctx, e)
	b.drain()
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) enqueue(ctx context.Context, e Event) {
	b.mu.Lock()
	b.queue = append(b.queue, queuedEvent{ctx: ctx, event: e})
	b.mu.Unlock()
}

// drain delivers queued events unless another call is already doing so.
func (b *Bus) drain() {
	b.mu.Lock()
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue[0] = queuedEvent{}
		b.queue = b.queue[1:]
		targets := b.matching(next.event.EntityID)
		b.mu.Unlock()

		for _, sub := range targets {
			if sub.active.Load() {
				b.deliver(sub, next)
			}
		}

		b.mu.Lock()
	}

	b.queue = nil
	b.dispatching = false
	b.mu.Unlock()
}

// matching must be called with b.mu held.
func (b *Bus) matching(entityID string) []*subscriber {
	var out []*subscriber
	for _, sub := range b.subs {
		if sub.filter == nil {
			out = append(out, sub)
			continue
		}
		if _, ok := sub.filter[entityID]; ok {
			out = append(out, sub)
		}
	}
	return out
}

func (b *Bus) deliver(sub *subscriber, q queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("state change handler panic recovered",
				"entity_id", q.event.EntityID,
				"panic", r,
			)
		}
	}()
	sub.handler(q.ctx, q.event)
}
