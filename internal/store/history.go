package store

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/history"
)

// SQLiteHistory is a history.Store backed by the turns table.
type SQLiteHistory struct {
	db *DB
}

var _ history.Store = (*SQLiteHistory)(nil)

// NewSQLiteHistory creates a history store on an open database.
func NewSQLiteHistory(db *DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// Append inserts a turn at the end of the author's sequence.
func (h *SQLiteHistory) Append(ctx context.Context, authorID string, turn domain.Turn) error {
	_, err := h.db.sql.ExecContext(ctx,
		`INSERT INTO turns (author_id, from_user, is_reply, text, message_id, conversation_id, handle, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		authorID, turn.FromUser, turn.IsReply, turn.Text, turn.MessageID,
		turn.ConversationID, turn.Handle, turn.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending turn for %s: %w", authorID, err)
	}
	return nil
}

// Recent returns the last n turns for the author, oldest first.
func (h *SQLiteHistory) Recent(ctx context.Context, authorID string, n int) ([]domain.Turn, error) {
	turns := []domain.Turn{}
	if n <= 0 {
		return turns, nil
	}

	rows, err := h.db.sql.QueryContext(ctx,
		`SELECT from_user, is_reply, text, message_id, conversation_id, handle, timestamp FROM (
			SELECT * FROM turns WHERE author_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		authorID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("reading turns for %s: %w", authorID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t  domain.Turn
			ts string
		)
		if err := rows.Scan(&t.FromUser, &t.IsReply, &t.Text, &t.MessageID, &t.ConversationID, &t.Handle, &ts); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Count is the total number of turns stored for the author.
func (h *SQLiteHistory) Count(ctx context.Context, authorID string) (int, error) {
	var n int
	err := h.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns WHERE author_id = ?", authorID).Scan(&n)
	return n, err
}
