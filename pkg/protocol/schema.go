package protocol

// JournalDDL defines the SQLite schema for the console's audit journal.
// Tables: sessions, entries. Execute with db.Exec(JournalDDL).
const JournalDDL = `
-- One row per console session (process lifetime)
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    base_url TEXT NOT NULL,
    started_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

-- Log lines and state transitions, in the order the console emitted them
CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    kind TEXT NOT NULL,
    ui_status TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS entries_session ON entries(session_id, id);
`

// Journal entry kinds.
const (
	EntryLog        = "log"
	EntryTransition = "transition"
	EntryReset      = "reset"
)
