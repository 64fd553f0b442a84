package history

// A migration is one versioned schema step. Steps run in order, each in
// its own transaction, and completed versions are recorded in the
// schema_migrations table so reopening a database only applies new ones.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create selection events",
		SQL: `
			CREATE TABLE selection_events (
				id          TEXT PRIMARY KEY,
				kind        TEXT NOT NULL,
				provider    TEXT NOT NULL DEFAULT '',
				role        TEXT NOT NULL DEFAULT '',
				agent       TEXT NOT NULL DEFAULT '',
				previous    TEXT NOT NULL DEFAULT '',
				origin      TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_events_kind ON selection_events (kind);
			CREATE INDEX idx_events_created ON selection_events (created_at, id);
		`,
	},
}
