package database

import (
	"database/sql"
	"fmt"
)

// Schema for the audit tables. Live collaboration state (sessions, the
// shared snapshot) is deliberately not persisted; these tables only record
// what happened.
const schema = `
CREATE TABLE IF NOT EXISTS ai_interactions (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	user_name  TEXT NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT,
	timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_interactions_timestamp
	ON ai_interactions(timestamp DESC);

CREATE TABLE IF NOT EXISTS dashboard_state_updates (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	state      TEXT NOT NULL,
	timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_updates_timestamp
	ON dashboard_state_updates(timestamp DESC);
`

// SQLite pragmas applied once per database. WAL mode keeps concurrent
// reads cheap while the single-writer loop serializes writes.
const pragmas = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA cache_size = -64000;
	PRAGMA temp_store = MEMORY;
	PRAGMA foreign_keys = ON;
	PRAGMA busy_timeout = 5000;
`

// ApplySchema creates the audit tables and applies pragmas. Idempotent.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(pragmas); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
