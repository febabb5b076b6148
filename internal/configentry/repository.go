package configentry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for config entry persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Create(ctx context.Context, entry *Entry) error
	UpdateOptions(ctx context.Context, id string, options map[string]any) error
	Delete(ctx context.Context, id string) error
}

const entryColumns = `id, domain, title, unique_id, data, options, created_at, updated_at`

// SQLiteRepository implements Repository using the config_entries table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an entry by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM config_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying config entry: %w", err)
	}
	return entry, nil
}

// List retrieves all entries ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM config_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying config entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning config entry: %w", scanErr)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	dataJSON, err := marshalMap(entry.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}
	optionsJSON, err := marshalMap(entry.Options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, domain, title, unique_id, data, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Domain,
		entry.Title,
		nullableString(entry.UniqueID),
		dataJSON,
		optionsJSON,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting config entry: %w", err)
	}
	return nil
}

// UpdateOptions replaces an entry's options.
func (r *SQLiteRepository) UpdateOptions(ctx context.Context, id string, options map[string]any) error {
	optionsJSON, err := marshalMap(options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE config_entries SET options = ?, updated_at = ? WHERE id = ?`,
		optionsJSON, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating config entry: %w", err)
	}
	return requireRow(result)
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM config_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting config entry: %w", err)
	}
	return requireRow(result)
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(scanner rowScanner) (*Entry, error) {
	var e Entry
	var uniqueID sql.NullString
	var dataJSON, optionsJSON, createdAt, updatedAt string

	if err := scanner.Scan(
		&e.ID,
		&e.Domain,
		&e.Title,
		&uniqueID,
		&dataJSON,
		&optionsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	e.UniqueID = uniqueID.String
	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &e.Options); err != nil {
		return nil, fmt.Errorf("unmarshalling options: %w", err)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	if e.Options == nil {
		e.Options = map[string]any{}
	}

	// Unparseable timestamps leave zero values.
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
