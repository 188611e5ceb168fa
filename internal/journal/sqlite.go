package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the journal database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ErrOpenFailed.WithContext("path", dbPath).Wrap(err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, ErrOpenFailed.WithContext("path", dbPath).Wrap(err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS adherence_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_adherence_cycle ON adherence_events(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_adherence_timestamp ON adherence_events(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, e adherence.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return ErrAppendFailed.WithContext("event_type", string(e.Type)).Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO adherence_events (cycle_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		e.CycleID, string(e.Type), e.At.UnixMilli(), payload,
	)
	if err != nil {
		return ErrAppendFailed.WithContext("event_type", string(e.Type)).Wrap(err)
	}
	return nil
}

// ByCycle implements Store.
func (s *SQLiteStore) ByCycle(ctx context.Context, cycleID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, payload FROM adherence_events WHERE cycle_id = ? ORDER BY id",
		cycleID,
	)
	if err != nil {
		return nil, ErrQueryFailed.Wrap(err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Range implements Store.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, payload FROM adherence_events WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, ErrQueryFailed.Wrap(err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &payload); err != nil {
			return nil, ErrQueryFailed.Wrap(err)
		}
		if err := json.Unmarshal(payload, &e.Event); err != nil {
			return nil, ErrQueryFailed.WithContext("id", e.ID).Wrap(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrQueryFailed.Wrap(err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
