// internal/store/schema.go
package store

const schemaVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	command_id  TEXT NOT NULL,
	command     TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	cycles      INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	ended_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

CREATE TABLE IF NOT EXISTS records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	cycle       INTEGER NOT NULL,
	step        TEXT NOT NULL,
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	cursor_x    INTEGER NOT NULL,
	cursor_y    INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id, id);

CREATE TABLE IF NOT EXISTS snapshots (
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	cycle       INTEGER NOT NULL,
	elements    INTEGER NOT NULL,
	captured_at TEXT NOT NULL,
	data        BLOB NOT NULL,
	PRIMARY KEY (session_id, cycle)
);
`

// upgrades[v] moves a database from version v to v+1.
var upgrades = map[int]string{
	// owner_pid lets a second process tell its own live sessions from crashed ones.
	1: `ALTER TABLE sessions ADD COLUMN owner_pid INTEGER NOT NULL DEFAULT 0;`,
}
