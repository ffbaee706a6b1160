package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestOpen_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "replybot.db")
	log := logging.New(nil, "silent")
	ctx := context.Background()

	db, err := Open(path, log)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteHistory(db).Append(ctx, "u1", domain.Turn{FromUser: true, Text: "hi"}))
	require.NoError(t, NewSQLiteCursor(db, "").Save(ctx, "100"))
	require.NoError(t, db.Close())

	db, err = Open(path, log)
	require.NoError(t, err)
	defer db.Close()

	turns, err := NewSQLiteHistory(db).Recent(ctx, "u1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi", turns[0].Text)

	cur, err := NewSQLiteCursor(db, "").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", cur)
}

func TestSQLiteHistory_UnknownAuthor(t *testing.T) {
	h := NewSQLiteHistory(testDB(t))
	turns, err := h.Recent(context.Background(), "unknown_user", 6)
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestSQLiteHistory_WindowIsSuffix(t *testing.T) {
	ctx := context.Background()
	h := NewSQLiteHistory(testDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)

	for i := range 9 {
		require.NoError(t, h.Append(ctx, "u1", domain.Turn{
			FromUser:       i%2 == 0,
			IsReply:        i > 0,
			Text:           fmt.Sprintf("t%d", i),
			MessageID:      fmt.Sprint(100 + i),
			ConversationID: "100",
			Handle:         "alice",
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, h.Append(ctx, "u2", domain.Turn{FromUser: true, Text: "other"}))

	turns, err := h.Recent(ctx, "u1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 6)
	for i, tr := range turns {
		assert.Equal(t, fmt.Sprintf("t%d", 3+i), tr.Text)
	}
	assert.False(t, turns[0].FromUser)
	assert.True(t, turns[1].FromUser)
	assert.Equal(t, "100", turns[0].ConversationID)
	assert.Equal(t, "alice", turns[0].Handle)
	assert.True(t, turns[0].Timestamp.Equal(base.Add(3*time.Minute)))

	n, err := h.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	none, err := h.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteCursor(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	c := NewSQLiteCursor(db, "")

	v, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, c.Save(ctx, "103"))
	require.NoError(t, c.Save(ctx, "104"))
	v, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "104", v)

	other := NewSQLiteCursor(db, "other-bot")
	v, err = other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
