package history

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/climate-control/internal/platform"
)

// Logger defines the logging interface used by the Recorder.
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

// TelemetrySink receives numeric state snapshots.
// *influxdb.Client satisfies it.
type TelemetrySink interface {
	WriteStateSnapshot(entityID, state string, numeric map[string]float64, at time.Time)
}

// StateObserver tracks current entity states, typically as gauges.
// *metrics.Metrics satisfies it.
type StateObserver interface {
	ObserveState(entityID, state string, attrs map[string]any)
	ForgetEntity(entityID string)
}

// Recorder subscribes to every state change on the bus and fans each one
// out to the history repository, the telemetry sink and the state
// observer. Sink and observer are optional.
//
// Storage errors are logged and never reach the publisher.
type Recorder struct {
	repo     Repository
	sink     TelemetrySink
	observer StateObserver
	logger   Logger

	mu    sync.Mutex
	unsub func()
}

// NewRecorder creates a recorder. repo may be nil to skip local storage.
func NewRecorder(repo Repository, sink TelemetrySink, observer StateObserver, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:     repo,
		sink:     sink,
		observer: observer,
		logger:   logger,
	}
}

// Start subscribes to the bus. Calling Start twice is a no-op.
func (r *Recorder) Start(bus *platform.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsub != nil {
		return
	}
	r.unsub = bus.Subscribe(nil, r.Handle)
	r.logger.Info("history recorder started")
}

// Stop unsubscribes from the bus.
func (r *Recorder) Stop() {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
		r.logger.Info("history recorder stopped")
	}
}

// Handle records one bus event. A removal only clears observer state.
func (r *Recorder) Handle(ctx context.Context, ev platform.Event) {
	if ev.NewState == nil {
		if r.observer != nil {
			r.observer.ForgetEntity(ev.EntityID)
		}
		return
	}

	s := ev.NewState
	at := s.LastUpdated
	if at.IsZero() {
		at = ev.TimeFired
	}

	if r.repo != nil {
		if err := r.repo.Record(ctx, s.EntityID, s.State, s.Attributes, at); err != nil {
			r.logger.Warn("recording state history failed", "entity_id", s.EntityID, "error", err)
		}
	}
	if r.sink != nil {
		r.sink.WriteStateSnapshot(s.EntityID, s.State, NumericAttributes(s.Attributes), at)
	}
	if r.observer != nil {
		r.observer.ObserveState(s.EntityID, s.State, s.Attributes)
	}
}

// RunPruner deletes history older than retention every interval until
// ctx is cancelled. It prunes once immediately.
func (r *Recorder) RunPruner(ctx context.Context, interval, retention time.Duration) {
	if r.repo == nil || interval <= 0 {
		return
	}

	r.prune(ctx, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.prune(ctx, retention)
		}
	}
}

func (r *Recorder) prune(ctx context.Context, retention time.Duration) {
	n, err := r.repo.Prune(ctx, retention)
	if err != nil {
		r.logger.Warn("pruning state history failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("state history pruned", "rows", n, "retention", retention.String())
	}
}

// NumericAttributes returns the attributes that hold a number. Nil
// pointers are skipped.
func NumericAttributes(attrs map[string]any) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range attrs {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case float32:
			out[k] = float64(n)
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case *float64:
			if n != nil {
				out[k] = *n
			}
		}
	}
	return out
}
