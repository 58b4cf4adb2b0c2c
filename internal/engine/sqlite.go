package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps profiles in a single SQLite database, the same layout
// platform key-value storage uses on Android.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			profile    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (profile, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(profile, key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE profile = ? AND key = ?`, profile, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *SQLiteStore) Set(profile, key, val string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (profile, key, value) VALUES (?, ?, ?)
		ON CONFLICT (profile, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, profile, key, val)
	return err
}

func (s *SQLiteStore) Delete(profile string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.Exec(`DELETE FROM kv WHERE profile = ? AND key = ?`, profile, k); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Profiles() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT profile FROM kv ORDER BY profile`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) Dump(profile string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM kv WHERE profile = ?`, profile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrProfileNotFound
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
