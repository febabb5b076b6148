package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/climate-control/internal/platform"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type serviceCall struct {
	Domain  string
	Service string
	Target  any
}

// mockServices captures all service calls.
type mockServices struct {
	mu    sync.Mutex
	calls []serviceCall
	err   error
}

func (m *mockServices) Call(_ context.Context, domain, service string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, serviceCall{Domain: domain, Service: service, Target: data["entity_id"]})
	return m.err
}

func (m *mockServices) getCalls() []serviceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]serviceCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockRepo captures recorded runs.
type mockRepo struct {
	mu   sync.Mutex
	runs []Run
	err  error
}

func (m *mockRepo) CreateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRepo) ListRuns(context.Context, string, int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...), nil
}

// mockHub captures broadcasts.
type mockHub struct {
	mu       sync.Mutex
	channels []string
}

func (m *mockHub) Broadcast(channel string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
}

type mockObserver struct {
	mu     sync.Mutex
	errors int
	runs   int
}

func (m *mockObserver) AutomationRun(_, _ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if err != nil {
		m.errors++
	}
}

type engineFixture struct {
	bus      *platform.Bus
	states   *platform.StateMachine
	services *mockServices
	repo     *mockRepo
	hub      *mockHub
	observer *mockObserver
	engine   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	bus := platform.NewBus(nil)
	registry := NewRegistry()
	if _, err := registry.Add(DefaultRule()); err != nil {
		t.Fatal(err)
	}
	f := &engineFixture{
		bus:      bus,
		states:   platform.NewStateMachine(bus),
		services: &mockServices{},
		repo:     &mockRepo{},
		hub:      &mockHub{},
		observer: &mockObserver{},
	}
	f.engine = NewEngine(registry, bus, f.services, f.repo, f.hub, f.observer, nil)
	f.engine.Start()
	return f
}

// ─── Mirror Behaviour ───────────────────────────────────────────────────────

func TestEngine_OnCallsTurnOn(t *testing.T) {
	f := newEngineFixture(t)

	f.states.Set(context.Background(), DefaultSource, "on", nil)

	calls := f.services.getCalls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	want := serviceCall{Domain: "switch", Service: "turn_on", Target: "switch.climate"}
	if calls[0] != want {
		t.Errorf("call = %+v, want %+v", calls[0], want)
	}
}

func TestEngine_OtherStatesCallTurnOff(t *testing.T) {
	for _, state := range []string{"off", "unavailable", "unknown", "ON"} {
		t.Run(state, func(t *testing.T) {
			f := newEngineFixture(t)
			f.states.Set(context.Background(), DefaultSource, state, nil)

			calls := f.services.getCalls()
			if len(calls) != 1 || calls[0].Service != "turn_off" {
				t.Errorf("calls = %+v, want one turn_off", calls)
			}
		})
	}
}

func TestEngine_RemovalDoesNothing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.states.Set(ctx, DefaultSource, "on", nil)

	f.states.Remove(ctx, DefaultSource)

	if n := len(f.services.getCalls()); n != 1 {
		t.Errorf("calls = %d, want 1 (removal must not call)", n)
	}
	if len(f.repo.runs) != 1 {
		t.Errorf("runs = %d, want 1", len(f.repo.runs))
	}
}

func TestEngine_IgnoresOtherEntities(t *testing.T) {
	f := newEngineFixture(t)
	f.states.Set(context.Background(), "binary_sensor.climate_active", "on", nil)

	if n := len(f.services.getCalls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestEngine_AttributeOnlyChangeStillFires(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.states.Set(ctx, DefaultSource, "on", map[string]any{"active_entities": []string{"climate.a"}})
	f.states.Set(ctx, DefaultSource, "on", map[string]any{"active_entities": []string{"climate.a", "climate.b"}})

	calls := f.services.getCalls()
	if len(calls) != 2 || calls[1].Service != "turn_on" {
		t.Errorf("calls = %+v, want two turn_on", calls)
	}
}

// ─── Recording ──────────────────────────────────────────────────────────────

func TestEngine_RecordsRuns(t *testing.T) {
	f := newEngineFixture(t)
	f.states.Set(context.Background(), DefaultSource, "on", nil)

	if len(f.repo.runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(f.repo.runs))
	}
	run := f.repo.runs[0]
	if run.AutomationID != DefaultRuleID || run.Service != "switch.turn_on" || run.TriggerState != "on" {
		t.Errorf("run = %+v", run)
	}
	if run.Error != nil {
		t.Errorf("run.Error = %q, want nil", *run.Error)
	}
	if len(f.hub.channels) != 1 || f.hub.channels[0] != ChannelAutomationRun {
		t.Errorf("broadcasts = %v", f.hub.channels)
	}
	if f.observer.runs != 1 || f.observer.errors != 0 {
		t.Errorf("observer runs=%d errors=%d", f.observer.runs, f.observer.errors)
	}
}

func TestEngine_ServiceFailureRecorded(t *testing.T) {
	f := newEngineFixture(t)
	f.services.err = errors.New("service not found")

	f.states.Set(context.Background(), DefaultSource, "off", nil)

	if len(f.repo.runs) != 1 || f.repo.runs[0].Error == nil {
		t.Fatalf("runs = %+v, want one with error", f.repo.runs)
	}
	if f.observer.errors != 1 {
		t.Errorf("observer errors = %d, want 1", f.observer.errors)
	}
}

func TestEngine_RepoFailureDoesNotStopCall(t *testing.T) {
	f := newEngineFixture(t)
	f.repo.err = errors.New("db locked")

	f.states.Set(context.Background(), DefaultSource, "on", nil)

	if n := len(f.services.getCalls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func TestEngine_StartStop(t *testing.T) {
	f := newEngineFixture(t)
	if f.engine.RunningCount() != 1 {
		t.Fatalf("RunningCount() = %d, want 1", f.engine.RunningCount())
	}

	f.engine.Start() // idempotent
	if f.bus.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d after second Start, want 1", f.bus.SubscriberCount())
	}

	f.engine.Stop()
	f.states.Set(context.Background(), DefaultSource, "on", nil)
	if n := len(f.services.getCalls()); n != 0 {
		t.Errorf("calls after Stop = %d, want 0", n)
	}
}

func TestEngine_DisabledRuleNotStarted(t *testing.T) {
	bus := platform.NewBus(nil)
	registry := NewRegistry()
	rule := DefaultRule()
	rule.Enabled = false
	_, _ = registry.Add(rule)

	engine := NewEngine(registry, bus, &mockServices{}, nil, nil, nil, nil)
	engine.Start()

	if engine.RunningCount() != 0 {
		t.Errorf("RunningCount() = %d, want 0", engine.RunningCount())
	}
}

func TestServiceFor(t *testing.T) {
	tests := []struct {
		name   string
		state  *platform.State
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"on", &platform.State{State: "on"}, ServiceTurnOn, true},
		{"off", &platform.State{State: "off"}, ServiceTurnOff, true},
		{"unknown", &platform.State{State: "unknown"}, ServiceTurnOff, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ServiceFor(tt.state)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ServiceFor() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
