// Package store is the persistence collaborator: room documents, the
// participant roster, chat history, the saved playlist and the watch
// history live in a SQLite file. The realtime layer treats every write
// here as best-effort.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open prepares a SQLite database at the given path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			allow_chat INTEGER NOT NULL DEFAULT 1,
			source_url TEXT NOT NULL DEFAULT '',
			source_title TEXT NOT NULL DEFAULT '',
			source_duration REAL NOT NULL DEFAULT 0,
			source_thumbnail TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 0,
			created_by TEXT,
			created_at TIMESTAMP NOT NULL,
			last_active TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS participants (
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			joined_at TIMESTAMP NOT NULL,
			PRIMARY KEY (room_id, user_id),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			sent_at TIMESTAMP NOT NULL,
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS playlist_items (
			room_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			duration REAL NOT NULL DEFAULT 0,
			thumbnail TEXT NOT NULL DEFAULT '',
			added_by TEXT NOT NULL,
			added_at TIMESTAMP NOT NULL,
			PRIMARY KEY (room_id, position),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			played_at TIMESTAMP NOT NULL,
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages(room_id, sent_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_history_room_played ON history(room_id, played_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_active ON rooms(active, last_active DESC);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}
