// Package journal keeps an SQLite audit trail of what the console showed:
// every appended log line and every status transition, grouped by session.
//
// The journal is write-mostly. It is read back only by the history command
// and never used to restore console state.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sentinel/pkg/protocol"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is how timestamps are stored. Lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Journal is a handle on the journal database. It is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal at path with WAL journaling and
// a 5-second busy timeout, and applies the schema.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, protocol.JournalDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the database. Safe to call multiple times.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// DefaultPath returns ~/.sentinel/journal.db, or "" when the home directory
// cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, protocol.SentinelDir, "journal.db")
}

func (j *Journal) stamp() string {
	return j.now().UTC().Format(timeLayout)
}

// StartSession registers a console session and returns its id.
// A new UUID is generated when id is empty.
func (j *Journal) StartSession(ctx context.Context, id, baseURL string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, base_url, started_at) VALUES (?, ?, ?)`,
		id, baseURL, j.stamp())
	if err != nil {
		return "", fmt.Errorf("start session %s: %w", id, err)
	}
	return id, nil
}

// Record appends one entry to a session.
func (j *Journal) Record(ctx context.Context, sessionID, kind, uiStatus, text string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (session_id, kind, ui_status, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, kind, uiStatus, text, j.stamp())
	if err != nil {
		return fmt.Errorf("record %s entry: %w", kind, err)
	}
	return nil
}

// Recorder writes entries for a single session.
type Recorder struct {
	j  *Journal
	id string
}

// Session returns a Recorder bound to sessionID.
func (j *Journal) Session(sessionID string) *Recorder {
	return &Recorder{j: j, id: sessionID}
}

// ID returns the session id.
func (r *Recorder) ID() string { return r.id }

// Record appends one entry to the recorder's session.
func (r *Recorder) Record(ctx context.Context, kind, uiStatus, text string) error {
	return r.j.Record(ctx, r.id, kind, uiStatus, text)
}
