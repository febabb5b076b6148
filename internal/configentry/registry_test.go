package configentry

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// ─── Mock Repository ────────────────────────────────────────────────────────

type mockRepository struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	createErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{entries: make(map[string]*Entry)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return e.DeepCopy(), nil
}

func (m *mockRepository) List(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.entries[e.ID]; ok {
		return ErrEntryExists
	}
	m.entries[e.ID] = e.DeepCopy()
	return nil
}

func (m *mockRepository) UpdateOptions(_ context.Context, id string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Options = options
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

// ─── Registry ───────────────────────────────────────────────────────────────

func TestRegistry_CreateAssignsIDAndNotifies(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	var created []string
	reg.OnCreate(func(_ context.Context, e *Entry) error {
		created = append(created, e.ID)
		return nil
	})

	entry := &Entry{Domain: "climate_control", Title: "Living Room", UniqueID: "Living Room"}
	if err := reg.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == "" {
		t.Fatal("ID not assigned")
	}
	if len(created) != 1 || created[0] != entry.ID {
		t.Errorf("OnCreate calls = %v", created)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_CreateDuplicateUniqueID(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	_ = reg.Create(ctx, &Entry{Domain: "climate_control", Title: "A", UniqueID: "Living Room"})
	err := reg.Create(ctx, &Entry{Domain: "climate_control", Title: "B", UniqueID: "Living Room"})
	if !errors.Is(err, ErrEntryExists) {
		t.Errorf("error = %v, want ErrEntryExists", err)
	}

	// Same unique id in another domain is fine.
	if err := reg.Create(ctx, &Entry{Domain: "other", Title: "C", UniqueID: "Living Room"}); err != nil {
		t.Errorf("other domain: %v", err)
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	err := reg.Create(context.Background(), &Entry{Domain: "climate_control"})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("error = %v, want ErrInvalidEntry", err)
	}
}

func TestRegistry_CreateRepositoryFailure(t *testing.T) {
	repo := newMockRepository()
	repo.createErr = errors.New("disk full")
	reg := NewRegistry(repo)

	notified := false
	reg.OnCreate(func(context.Context, *Entry) error { notified = true; return nil })

	if err := reg.Create(context.Background(), &Entry{Domain: "d", Title: "t"}); err == nil {
		t.Fatal("Create() should fail")
	}
	if notified || reg.Count() != 0 {
		t.Error("failed create was cached or notified")
	}
}

func TestRegistry_UpdateOptions(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()
	entry := &Entry{Domain: "climate_control", Title: "A", UniqueID: "A"}
	_ = reg.Create(ctx, entry)

	var seen map[string]any
	reg.OnUpdate(func(_ context.Context, e *Entry) error {
		seen = e.Options
		return nil
	})

	updated, err := reg.UpdateOptions(ctx, entry.ID, map[string]any{"temp_step": 1.0})
	if err != nil {
		t.Fatalf("UpdateOptions() error = %v", err)
	}
	if updated.Options["temp_step"] != 1.0 || seen["temp_step"] != 1.0 {
		t.Errorf("updated = %v, listener saw %v", updated.Options, seen)
	}

	got, _ := reg.Get(ctx, entry.ID)
	if got.Options["temp_step"] != 1.0 {
		t.Errorf("cached options = %v", got.Options)
	}

	if _, err := reg.UpdateOptions(ctx, "missing", nil); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("UpdateOptions(missing) = %v", err)
	}
}

func TestRegistry_DeleteNotifiesFirst(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()
	entry := &Entry{Domain: "climate_control", Title: "A", UniqueID: "A"}
	_ = reg.Create(ctx, entry)

	var removed string
	reg.OnRemove(func(_ context.Context, e *Entry) error {
		removed = e.ID
		return errors.New("unload failed")
	})

	if err := reg.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != entry.ID {
		t.Errorf("OnRemove got %q", removed)
	}
	if _, err := reg.Get(ctx, entry.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get after Delete = %v", err)
	}
	if reg.HasUniqueID("climate_control", "A") {
		t.Error("unique id still registered")
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()
	entry := &Entry{Domain: "d", Title: "t", Data: map[string]any{"k": "v"}}
	_ = reg.Create(ctx, entry)

	got, _ := reg.Get(ctx, entry.ID)
	got.Data["k"] = "changed"

	again, _ := reg.Get(ctx, entry.ID)
	if again.Data["k"] != "v" {
		t.Error("cache mutated through returned copy")
	}
}

func TestRegistry_RefreshCacheAndList(t *testing.T) {
	repo := newMockRepository()
	repo.entries["a"] = &Entry{ID: "a", Domain: "climate_control", Title: "A"}
	repo.entries["b"] = &Entry{ID: "b", Domain: "other", Title: "B"}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := reg.List(context.Background(), "climate_control"); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("List(climate_control) = %+v", got)
	}
	if got := reg.List(context.Background(), ""); len(got) != 2 {
		t.Errorf("List(\"\") len = %d", len(got))
	}
}
