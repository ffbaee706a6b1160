package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultCursorName keys the mention cursor when only one bot shares a store.
const DefaultCursorName = "mentions"

// SQLiteCursor persists the mention cursor in the cursors table.
type SQLiteCursor struct {
	db   *DB
	name string
}

// NewSQLiteCursor returns the cursor stored under name.
func NewSQLiteCursor(db *DB, name string) *SQLiteCursor {
	if name == "" {
		name = DefaultCursorName
	}
	return &SQLiteCursor{db: db, name: name}
}

// Load returns the saved cursor, or "" if none was saved yet.
func (c *SQLiteCursor) Load(ctx context.Context) (string, error) {
	var v string
	err := c.db.sql.QueryRowContext(ctx, "SELECT value FROM cursors WHERE name = ?", c.name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading cursor %s: %w", c.name, err)
	}
	return v, nil
}

// Save records id as the cursor value.
func (c *SQLiteCursor) Save(ctx context.Context, id string) error {
	_, err := c.db.sql.ExecContext(ctx,
		`INSERT INTO cursors (name, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		c.name, id,
	)
	if err != nil {
		return fmt.Errorf("saving cursor %s: %w", c.name, err)
	}
	return nil
}
