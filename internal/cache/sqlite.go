package cache

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const createTable = `CREATE TABLE IF NOT EXISTS classifications (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a sqlite3 database file at path.
func OpenSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create classifications table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM classifications WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *sqliteStore) Put(key, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO classifications (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		string(key), value)
	return err
}

func (s *sqliteStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM classifications ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
