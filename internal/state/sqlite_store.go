package state

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. Every field is a row of the
// schedule_state table so the layout stays readable with the sqlite3 shell.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and initializes) the state database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ErrStoreOpenFailed.WithContext("path", dbPath).Wrap(err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, ErrStoreOpenFailed.WithContext("path", dbPath).Wrap(err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedule_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (*ScheduleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM schedule_state")
	if err != nil {
		return nil, ErrStoreLoadFailed.Wrap(err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, ErrStoreLoadFailed.Wrap(err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, ErrStoreLoadFailed.Wrap(err)
	}
	if len(kv) == 0 {
		return Default(), nil
	}
	return decode(kv)
}

// Save implements Store. All keys are written in one transaction; durability
// is reached before Save returns.
func (s *SQLiteStore) Save(ctx context.Context, st *ScheduleState) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ErrStoreSaveFailed.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO schedule_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if err != nil {
		return ErrStoreSaveFailed.Wrap(err)
	}
	defer stmt.Close()

	for k, v := range encode(st) {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return ErrStoreSaveFailed.WithContext("key", k).Wrap(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ErrStoreSaveFailed.Wrap(err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
