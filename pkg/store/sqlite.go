package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists boxes in a single-table SQLite database so intent
// records survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and if needed initializes) a SQLite-backed store at
// path. The path ":memory:" yields a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %v", err)
	}
	// The chain runtime serializes writers; a single connection avoids
	// SQLITE_BUSY churn from the driver's connection pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS boxes (
		key   BLOB PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize boxes table: %v", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM boxes WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read box: %v", err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(key, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO boxes (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write box: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key []byte) error {
	if _, err := s.db.Exec(`DELETE FROM boxes WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete box: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([][]byte, error) {
	rows, err := s.db.Query(`SELECT key FROM boxes`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boxes: %v", err)
	}
	defer rows.Close()

	var keys [][]byte
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan box key: %v", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
