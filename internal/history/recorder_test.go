package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/climate-control/internal/platform"
)

// ─── Mocks ──────────────────────────────────────────────────────────────────

type recordedRow struct {
	entityID string
	state    string
	attrs    map[string]any
	at       time.Time
}

type mockRepository struct {
	mu        sync.Mutex
	rows      []recordedRow
	recordErr error
	pruned    int
}

func (m *mockRepository) Record(_ context.Context, entityID, state string, attrs map[string]any, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.rows = append(m.rows, recordedRow{entityID, state, attrs, at})
	return nil
}

func (m *mockRepository) GetHistory(context.Context, string, int) ([]Entry, error) {
	return nil, nil
}

func (m *mockRepository) Prune(context.Context, time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return 0, nil
}

func (m *mockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *mockRepository) pruneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruned
}

type mockSink struct {
	mu     sync.Mutex
	points map[string]map[string]float64
}

func (m *mockSink) WriteStateSnapshot(entityID, _ string, numeric map[string]float64, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.points == nil {
		m.points = make(map[string]map[string]float64)
	}
	m.points[entityID] = numeric
}

type mockObserver struct {
	mu        sync.Mutex
	observed  map[string]string
	forgotten []string
}

func (m *mockObserver) ObserveState(entityID, state string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.observed == nil {
		m.observed = make(map[string]string)
	}
	m.observed[entityID] = state
}

func (m *mockObserver) ForgetEntity(entityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgotten = append(m.forgotten, entityID)
}

// ─── Recorder ───────────────────────────────────────────────────────────────

func TestRecorder_FansOutStateChanges(t *testing.T) {
	repo := &mockRepository{}
	sink := &mockSink{}
	observer := &mockObserver{}
	bus := platform.NewBus(nil)
	states := platform.NewStateMachine(bus)
	ctx := context.Background()

	rec := NewRecorder(repo, sink, observer, nil)
	rec.Start(bus)
	rec.Start(bus)

	target := 21.0
	states.Set(ctx, "climate.office", "heat", map[string]any{"temperature": &target, "current_temperature": (*float64)(nil)})
	states.Set(ctx, "switch.climate", "on", map[string]any{"friendly_name": "Climate"})

	if repo.count() != 2 {
		t.Errorf("recorded %d rows, want 2", repo.count())
	}
	if got := sink.points["climate.office"]; len(got) != 1 || got["temperature"] != 21.0 {
		t.Errorf("climate numeric = %v, want {temperature: 21}", got)
	}
	if observer.observed["switch.climate"] != "on" {
		t.Errorf("observed = %v", observer.observed)
	}

	states.Remove(ctx, "switch.climate")
	if len(observer.forgotten) != 1 || observer.forgotten[0] != "switch.climate" {
		t.Errorf("forgotten = %v", observer.forgotten)
	}
	if repo.count() != 2 {
		t.Errorf("removal recorded a row")
	}

	rec.Stop()
	states.Set(ctx, "switch.climate", "off", nil)
	if repo.count() != 2 {
		t.Error("recorder still subscribed after Stop")
	}
}

func TestRecorder_StorageErrorIsSwallowed(t *testing.T) {
	repo := &mockRepository{recordErr: errors.New("database is locked")}
	observer := &mockObserver{}

	rec := NewRecorder(repo, nil, observer, nil)
	rec.Handle(context.Background(), platform.Event{
		Type:     platform.EventStateChanged,
		EntityID: "switch.climate",
		NewState: &platform.State{EntityID: "switch.climate", State: "on"},
	})

	if observer.observed["switch.climate"] != "on" {
		t.Error("observer skipped after a storage error")
	}
}

func TestRecorder_RunPruner(t *testing.T) {
	repo := &mockRepository{}
	rec := NewRecorder(repo, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.RunPruner(ctx, time.Hour, 24*time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for repo.pruneCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if repo.pruneCount() != 1 {
		t.Errorf("pruned %d times, want 1", repo.pruneCount())
	}
}

func TestNumericAttributes(t *testing.T) {
	v := 19.5
	got := NumericAttributes(map[string]any{
		"temperature":         &v,
		"current_temperature": (*float64)(nil),
		"min_temp":            7.0,
		"hvac_modes":          []string{"off", "heat"},
		"friendly_name":       "Office",
		"count":               3,
	})

	want := map[string]float64{"temperature": 19.5, "min_temp": 7, "count": 3}
	if len(got) != len(want) {
		t.Fatalf("NumericAttributes() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}
