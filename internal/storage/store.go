// Package storage persists finalized sessions.
//
// Architecture:
// - SQLite database for sessions and their intervals (queryable, indexed)
// - interval rows are the source of truth; the per-session stat columns
//   are precomputed at save time so listings don't re-reduce every record
//
// Directory structure:
// ~/.local/share/vigil/
// ├── vigil.db      # SQLite database
// ├── usage.json    # tracked-time allowance (owned by internal/usage)
// ├── vigil.lock    # instance lock (owned by internal/platform)
// └── vigil.sock    # live status socket (owned by internal/notify)
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/Atharva-Kanherkar/vigil/internal/stats"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// Store handles persistence of finalized sessions.
type Store struct {
	db *sql.DB
}

// New creates a new Store under baseDir.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "vigil.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables.
func (s *Store) initSchema() error {
	if err := s.createBaseSchema(); err != nil {
		return err
	}
	return s.migrateSchema()
}

// createBaseSchema creates the initial database tables.
func (s *Store) createBaseSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		total_ms INTEGER NOT NULL DEFAULT 0,
		present_ms INTEGER NOT NULL DEFAULT 0,
		paused_ms INTEGER NOT NULL DEFAULT 0,
		focus_ratio REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS intervals (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		label TEXT NOT NULL,
		start_at DATETIME NOT NULL,
		end_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_label ON intervals(label);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrateSchema handles schema migrations for existing databases.
func (s *Store) migrateSchema() error {
	// Migration: stat columns were added after the first release (v2)
	migrations := []string{
		`ALTER TABLE sessions ADD COLUMN present_ms INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE sessions ADD COLUMN paused_ms INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE sessions ADD COLUMN focus_ratio REAL NOT NULL DEFAULT 0`,
	}

	for _, migration := range migrations {
		// Fails if the column already exists, which is fine
		_, _ = s.db.Exec(migration)
	}

	return nil
}

// SaveSession persists a finalized session and its intervals in one
// transaction. Sessions are write-once: saving an ID twice is an error.
func (s *Store) SaveSession(sess *timeline.Session) error {
	if sess == nil || !sess.Finalized() {
		return errors.New("only finalized sessions can be saved")
	}

	st := stats.ComputeSession(sess)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, started_at, ended_at, total_ms, present_ms, paused_ms, focus_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.StartedAt, sess.EndedAt,
		st.Total.Milliseconds(),
		st.PerLabel[timeline.LabelPresent].Milliseconds(),
		st.PerLabel[timeline.LabelPaused].Milliseconds(),
		st.FocusRatio)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for i, iv := range sess.Intervals {
		_, err := tx.Exec(`
			INSERT INTO intervals (session_id, seq, label, start_at, end_at)
			VALUES (?, ?, ?, ?, ?)
		`, sess.ID, i, string(iv.Label), iv.Start, iv.End)
		if err != nil {
			return fmt.Errorf("failed to insert interval %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetSession retrieves a session with its full interval record.
func (s *Store) GetSession(id string) (*timeline.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, ended_at FROM sessions WHERE id = ?
	`, id)

	var sess timeline.Session
	if err := row.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %q not found", id)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT label, start_at, end_at FROM intervals
		WHERE session_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load intervals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var start, end time.Time
		if err := rows.Scan(&label, &start, &end); err != nil {
			return nil, err
		}
		sess.Intervals = append(sess.Intervals, timeline.Interval{
			Label: timeline.Label(label),
			Start: start,
			End:   end,
		})
	}
	return &sess, rows.Err()
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Total      time.Duration
	FocusRatio float64
}

// ListSessions retrieves the most recent sessions, newest first.
func (s *Store) ListSessions(limit int) ([]SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, ended_at, total_ms, focus_ratio
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var totalMs int64
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.EndedAt, &totalMs, &sum.FocusRatio); err != nil {
			return nil, err
		}
		sum.Total = time.Duration(totalMs) * time.Millisecond
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Totals aggregates across the whole session table.
type Totals struct {
	Sessions      int64
	TrackedTime   time.Duration
	PresentTime   time.Duration
	AvgFocusRatio float64
}

// Totals returns lifetime statistics over all stored sessions.
func (s *Store) Totals() (Totals, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(total_ms), 0),
		       COALESCE(SUM(present_ms), 0),
		       COALESCE(AVG(focus_ratio), 0)
		FROM sessions
	`)

	var t Totals
	var totalMs, presentMs int64
	if err := row.Scan(&t.Sessions, &totalMs, &presentMs, &t.AvgFocusRatio); err != nil {
		return Totals{}, err
	}
	t.TrackedTime = time.Duration(totalMs) * time.Millisecond
	t.PresentTime = time.Duration(presentMs) * time.Millisecond
	return t, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
