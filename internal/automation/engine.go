package automation

import (
	"context"
	"sync"

	"github.com/nerrad567/climate-control/internal/platform"
)

// StateBus is the subscription surface the engine needs. *platform.Bus
// satisfies it.
type StateBus interface {
	Subscribe(entityIDs []string, handler platform.EventHandler) (unsubscribe func())
}

// ServiceCaller invokes services. *platform.Services satisfies it.
type ServiceCaller interface {
	Call(ctx context.Context, domain, service string, data map[string]any) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Observer receives run results for metrics.
type Observer interface {
	AutomationRun(automationID, service string, err error)
}

// ChannelAutomationRun is the WebSocket channel run records are sent on.
const ChannelAutomationRun = "automation.run"

// Engine runs mirror rules.
//
// Each rule is a one-way dependency: source state changes call a switch
// service on the target. The engine keeps no state about previous
// decisions, so every change notification produces exactly one call
// (none for removals).
//
// Thread Safety: all methods are safe for concurrent use. Rule handlers
// run on the goroutine that wrote the source state.
type Engine struct {
	registry *Registry
	bus      StateBus
	services ServiceCaller
	repo     Repository // may be nil
	hub      WSHub      // may be nil
	observer Observer   // may be nil
	logger   Logger

	mu     sync.Mutex
	unsubs map[string]func()
}

// NewEngine creates a new mirror engine.
//
// Parameters:
//   - registry: Rule registry
//   - bus: State change bus to watch sources on
//   - services: Service registry used to call switch services
//   - repo: Repository for run records (may be nil)
//   - hub: WebSocket hub for run events (may be nil)
//   - observer: Metrics observer (may be nil)
//   - logger: Logger instance
func NewEngine(registry *Registry, bus StateBus, services ServiceCaller, repo Repository, hub WSHub, observer Observer, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		registry: registry,
		bus:      bus,
		services: services,
		repo:     repo,
		hub:      hub,
		observer: observer,
		logger:   logger,
		unsubs:   make(map[string]func()),
	}
}

// Start subscribes every enabled rule. Rules already started are skipped.
func (e *Engine) Start() {
	for _, rule := range e.registry.List() {
		if !rule.Enabled {
			e.logger.Debug("automation rule disabled", "id", rule.ID)
			continue
		}
		e.startRule(rule)
	}
}

func (e *Engine) startRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.unsubs[rule.ID]; running {
		return
	}
	e.unsubs[rule.ID] = e.bus.Subscribe([]string{rule.Source}, func(ctx context.Context, ev platform.Event) {
		e.Handle(ctx, rule, ev)
	})
	e.logger.Info("automation rule started", "id", rule.ID, "source", rule.Source, "target", rule.Target)
}

// Stop unsubscribes every rule.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, unsub := range e.unsubs {
		unsub()
		delete(e.unsubs, id)
	}
}

// RunningCount returns the number of subscribed rules.
func (e *Engine) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.unsubs)
}

// ServiceFor returns the switch service a new source state maps to.
// It returns false when there is no new state.
func ServiceFor(newState *platform.State) (string, bool) {
	if newState == nil {
		return "", false
	}
	if newState.State == "on" {
		return ServiceTurnOn, true
	}
	return ServiceTurnOff, true
}

// Handle applies rule to one state change event.
func (e *Engine) Handle(ctx context.Context, rule Rule, ev platform.Event) {
	service, ok := ServiceFor(ev.NewState)
	if !ok {
		return
	}

	err := e.services.Call(ctx, SwitchDomain, service, map[string]any{
		platform.AttrEntityID: rule.Target,
	})
	if err != nil {
		e.logger.Warn("automation service call failed",
			"id", rule.ID,
			"service", SwitchDomain+"."+service,
			"target", rule.Target,
			"error", err,
		)
	} else {
		e.logger.Debug("automation fired",
			"id", rule.ID,
			"trigger_state", ev.NewState.State,
			"service", SwitchDomain+"."+service,
		)
	}

	if e.observer != nil {
		e.observer.AutomationRun(rule.ID, service, err)
	}
	e.record(ctx, rule, ev, service, err)
}

func (e *Engine) record(ctx context.Context, rule Rule, ev platform.Event, service string, callErr error) {
	run := &Run{
		AutomationID:  rule.ID,
		TriggerEntity: ev.EntityID,
		TriggerState:  ev.NewState.State,
		Service:       SwitchDomain + "." + service,
		Target:        rule.Target,
		CreatedAt:     ev.TimeFired,
	}
	if callErr != nil {
		msg := callErr.Error()
		run.Error = &msg
	}

	if e.repo != nil {
		if err := e.repo.CreateRun(ctx, run); err != nil {
			e.logger.Warn("recording automation run failed", "id", rule.ID, "error", err)
		}
	}
	if e.hub != nil {
		e.hub.Broadcast(ChannelAutomationRun, run)
	}
}
