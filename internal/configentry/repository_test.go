package configentry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the config_entries schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	// matches migrations/20260301_090000_config_entries.up.sql
	schema := `
		CREATE TABLE config_entries (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			title TEXT NOT NULL,
			unique_id TEXT,
			data TEXT NOT NULL DEFAULT '{}',
			options TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE UNIQUE INDEX idx_config_entries_domain_unique_id
			ON config_entries(domain, unique_id)
			WHERE unique_id IS NOT NULL;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testEntry(id, uniqueID string) *Entry {
	return &Entry{
		ID:       id,
		Domain:   "climate_control",
		Title:    uniqueID,
		UniqueID: uniqueID,
		Data: map[string]any{
			"name":                      "Living Room",
			"mode_command_topic":        "home/living/mode/set",
			"current_temperature_topic": "home/living/temp",
			"min_temp":                  7.0,
			"max_temp":                  35.0,
		},
	}
}

// ─── Create / Get ───────────────────────────────────────────────────────────

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	entry := testEntry("e1", "Living Room")
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	got, err := repo.GetByID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UniqueID != "Living Room" || got.Domain != "climate_control" {
		t.Errorf("got %+v", got)
	}
	if got.Data["min_temp"] != 7.0 {
		t.Errorf("Data[min_temp] = %v, want 7.0", got.Data["min_temp"])
	}
	if got.Options == nil || len(got.Options) != 0 {
		t.Errorf("Options = %v, want empty map", got.Options)
	}
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("error = %v, want ErrEntryNotFound", err)
	}
}

func TestSQLiteRepository_DuplicateUniqueID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testEntry("e1", "Living Room")); err != nil {
		t.Fatal(err)
	}
	err := repo.Create(ctx, testEntry("e2", "Living Room"))
	if !errors.Is(err, ErrEntryExists) {
		t.Errorf("duplicate unique_id error = %v, want ErrEntryExists", err)
	}

	err = repo.Create(ctx, testEntry("e1", "Bedroom"))
	if !errors.Is(err, ErrEntryExists) {
		t.Errorf("duplicate id error = %v, want ErrEntryExists", err)
	}
}

func TestSQLiteRepository_NullUniqueIDNotUnique(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := repo.Create(ctx, testEntry(id, "")); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
}

// ─── List / Update / Delete ─────────────────────────────────────────────────

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	_ = repo.Create(ctx, testEntry("e1", "Living Room"))
	_ = repo.Create(ctx, testEntry("e2", "Bedroom"))

	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() len = %d, want 2", len(entries))
	}
}

func TestSQLiteRepository_UpdateOptions(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	_ = repo.Create(ctx, testEntry("e1", "Living Room"))

	if err := repo.UpdateOptions(ctx, "e1", map[string]any{"min_temp": 10.0}); err != nil {
		t.Fatalf("UpdateOptions() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, "e1")
	if got.Options["min_temp"] != 10.0 {
		t.Errorf("Options[min_temp] = %v", got.Options["min_temp"])
	}

	if err := repo.UpdateOptions(ctx, "missing", nil); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("UpdateOptions(missing) = %v, want ErrEntryNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	_ = repo.Create(ctx, testEntry("e1", "Living Room"))

	if err := repo.Delete(ctx, "e1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "e1"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("second Delete() = %v, want ErrEntryNotFound", err)
	}
}

func TestEntry_Merged(t *testing.T) {
	e := &Entry{
		Data:    map[string]any{"min_temp": 7.0, "max_temp": 35.0},
		Options: map[string]any{"min_temp": 12.0},
	}
	m := e.Merged()
	if m["min_temp"] != 12.0 || m["max_temp"] != 35.0 {
		t.Errorf("Merged() = %v", m)
	}
	if e.Data["min_temp"] != 7.0 {
		t.Error("Merged() modified Data")
	}
}
