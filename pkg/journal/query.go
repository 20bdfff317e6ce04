package journal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Session is one row of the sessions table with its entry count.
type Session struct {
	ID        string
	BaseURL   string
	StartedAt time.Time
	Entries   int
}

// Entry is one recorded log line, transition or reset.
type Entry struct {
	ID        int64
	SessionID string
	Kind      string
	UIStatus  string
	Text      string
	CreatedAt time.Time
}

// QueryOpts filters Entries.
type QueryOpts struct {
	// SessionID restricts entries to one session (required).
	SessionID string

	// Kind filters to one entry kind (log, transition, reset).
	Kind string

	// After keeps entries created at or after this time.
	After *time.Time

	// Limit keeps only the newest Limit entries (0 = no limit).
	Limit int
}

// Sessions lists sessions, newest first. limit <= 0 lists all of them.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT s.id, s.base_url, s.started_at, COUNT(e.id)
		FROM sessions s LEFT JOIN entries e ON e.session_id = s.id
		GROUP BY s.id ORDER BY s.started_at DESC, s.rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started string
		if err := rows.Scan(&s.ID, &s.BaseURL, &started, &s.Entries); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Entries returns a session's entries in the order they were recorded.
func (j *Journal) Entries(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	if opts.SessionID == "" {
		return nil, fmt.Errorf("query entries: session id is required")
	}
	query, args := buildQuery(opts)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.UIStatus, &e.Text, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	// Newest-first from SQL so LIMIT keeps the tail; flip back to recording order.
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	conditions := []string{"session_id = ?"}
	args := []any{opts.SessionID}

	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format(timeLayout))
	}

	query := "SELECT id, session_id, kind, ui_status, text, created_at FROM entries WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by the schema default use strftime's millisecond format.
		if t, err = time.Parse("2006-01-02T15:04:05.000Z", s); err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t, nil
}
