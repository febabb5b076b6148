package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Repository stores and retrieves entity state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record stores one state snapshot.
	Record(ctx context.Context, entityID, state string, attrs map[string]any, at time.Time) error

	// GetHistory returns recent entries for the entity, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entityID: Entity to query
	//   - limit: Maximum entries to return (default 50, max 200)
	GetHistory(ctx context.Context, entityID string, limit int) ([]Entry, error)

	// Prune deletes entries older than now-retention and returns how many
	// were removed.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// SQLiteRepository implements Repository using the state_history table.
// Attributes are stored as JSON text.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite state history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts one snapshot.
func (r *SQLiteRepository) Record(ctx context.Context, entityID, state string, attrs map[string]any, at time.Time) error {
	if entityID == "" {
		return ErrEntityIDRequired
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	if at.IsZero() {
		at = r.now()
	}

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO state_history (entity_id, state, attributes, created_at) VALUES (?, ?, ?, ?)",
		entityID,
		state,
		string(attrsJSON),
		at.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries for an entity ordered newest first.
func (r *SQLiteRepository) GetHistory(ctx context.Context, entityID string, limit int) ([]Entry, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_id, state, attributes, created_at
		 FROM state_history
		 WHERE entity_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var attrsJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.EntityID, &entry.State, &attrsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(attrsJSON), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshalling attributes: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the retention window.
func (r *SQLiteRepository) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := r.now().UTC().Add(-retention).Format(timeFormat)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM state_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// parseTimestamp accepts the recorder's own format and the second
// precision default written by SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(timeFormat, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse(time.RFC3339, value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
