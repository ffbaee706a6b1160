package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create turns",
		SQL: `
			CREATE TABLE turns (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				author_id       TEXT NOT NULL,
				from_user       INTEGER NOT NULL,
				is_reply        INTEGER NOT NULL DEFAULT 0,
				text            TEXT NOT NULL,
				message_id      TEXT NOT NULL DEFAULT '',
				conversation_id TEXT NOT NULL DEFAULT '',
				handle          TEXT NOT NULL DEFAULT '',
				timestamp       TEXT NOT NULL
			);

			CREATE INDEX idx_turns_author ON turns (author_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create cursors",
		SQL: `
			CREATE TABLE cursors (
				name        TEXT PRIMARY KEY,
				value       TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
