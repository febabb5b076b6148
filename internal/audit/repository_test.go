package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the audit_logs table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			target TEXT NOT NULL,
			subject TEXT,
			role TEXT,
			source TEXT NOT NULL DEFAULT 'api',
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	rec := &Record{Action: ActionServiceCall, Target: "switch.turn_on"}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" || rec.Source != SourceAPI || rec.CreatedAt.IsZero() {
		t.Errorf("defaults not filled: %+v", rec)
	}

	page, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 1 || page.Records[0].Subject != "" || page.Records[0].Details != nil {
		t.Errorf("page = %+v", page)
	}
}

func TestCreate_TargetRequired(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Create(context.Background(), &Record{Action: ActionEntryDelete})
	if !errors.Is(err, ErrTargetRequired) {
		t.Errorf("Create() error = %v, want ErrTargetRequired", err)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []Record{
		{Action: ActionServiceCall, Target: "switch.turn_on", Subject: "panel", Role: "operator",
			Details: map[string]any{"entity_id": "switch.climate"}, CreatedAt: base},
		{Action: ActionEntryCreate, Target: "entry-1", Subject: "admin", Role: "admin", CreatedAt: base.Add(time.Minute)},
		{Action: ActionServiceCall, Target: "switch.turn_off", Subject: "panel", Role: "operator", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		if err := repo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name        string
		filter      Filter
		wantTotal   int
		wantTargets []string
	}{
		{"all newest first", Filter{}, 3, []string{"switch.turn_off", "entry-1", "switch.turn_on"}},
		{"by action", Filter{Action: ActionServiceCall}, 2, []string{"switch.turn_off", "switch.turn_on"}},
		{"by subject", Filter{Subject: "admin"}, 1, []string{"entry-1"}},
		{"by target", Filter{Target: "switch.turn_on"}, 1, []string{"switch.turn_on"}},
		{"paged", Filter{Limit: 1, Offset: 1}, 3, []string{"entry-1"}},
		{"no match", Filter{Action: ActionOptionsUpdate}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", page.Total, tt.wantTotal)
			}
			if len(page.Records) != len(tt.wantTargets) {
				t.Fatalf("got %d records, want %d", len(page.Records), len(tt.wantTargets))
			}
			for i, want := range tt.wantTargets {
				if page.Records[i].Target != want {
					t.Errorf("record %d target = %s, want %s", i, page.Records[i].Target, want)
				}
			}
		})
	}

	page, _ := repo.List(ctx, Filter{Target: "switch.turn_on"})
	got := page.Records[0]
	if got.Details["entity_id"] != "switch.climate" || got.Role != "operator" || !got.CreatedAt.Equal(base) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestList_LimitClamp(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	tests := []struct {
		limit int
		want  int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{500, maxLimit},
		{20, 20},
	}
	for _, tt := range tests {
		page, err := repo.List(context.Background(), Filter{Limit: tt.limit, Offset: -1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if page.Limit != tt.want || page.Offset != 0 {
			t.Errorf("limit %d: page limit/offset = %d/%d, want %d/0", tt.limit, page.Limit, page.Offset, tt.want)
		}
	}
}
