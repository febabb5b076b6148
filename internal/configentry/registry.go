package configentry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Registry.
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

// Listener reacts to entry lifecycle changes. It receives a copy of the
// entry as it is after the change (before removal for OnRemove).
type Listener func(ctx context.Context, entry *Entry) error

// Registry provides config entry management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache plus lifecycle
// listeners that set up, reload and unload integrations.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the mutating operations.
//
// All public methods are thread-safe. Listeners run on the caller's
// goroutine without the cache lock held.
type Registry struct {
	repo    Repository
	cache   map[string]*Entry
	cacheMu sync.RWMutex
	logger  Logger

	listenersMu sync.RWMutex
	onCreate    []Listener
	onUpdate    []Listener
	onRemove    []Listener
}

// NewRegistry creates a new config entry registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Entry),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnCreate registers a listener called after an entry is stored.
func (r *Registry) OnCreate(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.onCreate = append(r.onCreate, l)
}

// OnUpdate registers a listener called after an entry's options change.
func (r *Registry) OnUpdate(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.onUpdate = append(r.onUpdate, l)
}

// OnRemove registers a listener called before an entry is deleted.
func (r *Registry) OnRemove(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.onRemove = append(r.onRemove, l)
}

// RefreshCache reloads all entries from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading config entries: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Entry, len(entries))
	for i := range entries {
		r.cache[entries[i].ID] = entries[i].DeepCopy()
	}
	r.cacheMu.Unlock()

	r.logger.Info("config entries loaded", "count", len(entries))
	return nil
}

// Get returns a copy of the entry with the given ID.
func (r *Registry) Get(_ context.Context, id string) (*Entry, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	entry, ok := r.cache[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry.DeepCopy(), nil
}

// List returns copies of the entries for domain ("" for all), ordered by
// creation time.
func (r *Registry) List(_ context.Context, domain string) []Entry {
	r.cacheMu.RLock()
	out := make([]Entry, 0, len(r.cache))
	for _, e := range r.cache {
		if domain == "" || e.Domain == domain {
			out = append(out, *e.DeepCopy())
		}
	}
	r.cacheMu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// HasUniqueID reports whether domain already has an entry with uniqueID.
func (r *Registry) HasUniqueID(domain, uniqueID string) bool {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, e := range r.cache {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return true
		}
	}
	return false
}

// Create validates, persists and caches a new entry, then notifies
// OnCreate listeners. A listener error is returned but the entry stays.
func (r *Registry) Create(ctx context.Context, entry *Entry) error {
	if entry.Domain == "" || entry.Title == "" {
		return fmt.Errorf("%w: domain and title are required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Data == nil {
		entry.Data = map[string]any{}
	}
	if entry.Options == nil {
		entry.Options = map[string]any{}
	}
	if entry.UniqueID != "" && r.HasUniqueID(entry.Domain, entry.UniqueID) {
		return fmt.Errorf("%w: %s %q", ErrEntryExists, entry.Domain, entry.UniqueID)
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[entry.ID] = entry.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("config entry created", "entry_id", entry.ID, "domain", entry.Domain, "title", entry.Title)
	return r.notify(ctx, r.listeners(&r.onCreate), entry)
}

// UpdateOptions replaces an entry's options and notifies OnUpdate listeners.
func (r *Registry) UpdateOptions(ctx context.Context, id string, options map[string]any) (*Entry, error) {
	options = maps.Clone(options)
	if options == nil {
		options = map[string]any{}
	}

	if err := r.repo.UpdateOptions(ctx, id, options); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return nil, ErrEntryNotFound
	}
	cached.Options = options
	updated := cached.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("config entry options updated", "entry_id", id)
	return updated, r.notify(ctx, r.listeners(&r.onUpdate), updated)
}

// Delete notifies OnRemove listeners, then removes the entry from
// persistence and cache. Listener errors are logged and do not stop
// the removal.
func (r *Registry) Delete(ctx context.Context, id string) error {
	entry, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := r.notify(ctx, r.listeners(&r.onRemove), entry); err != nil {
		r.logger.Warn("config entry unload failed", "entry_id", id, "error", err)
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("config entry deleted", "entry_id", id)
	return nil
}

// Count returns the number of cached entries.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func (r *Registry) listeners(list *[]Listener) []Listener {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	return slices.Clone(*list)
}

func (r *Registry) notify(ctx context.Context, listeners []Listener, entry *Entry) error {
	for _, l := range listeners {
		if err := l(ctx, entry.DeepCopy()); err != nil {
			return fmt.Errorf("config entry %s: %w", entry.ID, err)
		}
	}
	return nil
}
