package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores settings and publish history in a SQLite database.
type SQLite struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLite opens (creating if needed) the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, storeErr("create store directory", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("open sqlite database", path, err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, storeErr("initialize schema", path, err)
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS publish_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		commit_hash TEXT,
		added INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_publish_history_at ON publish_history(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get implements KV.
func (s *SQLite) Get(ctx context.Context, key string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("query value", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, storeErr("decode value", key, err)
	}
	return true, nil
}

// Set implements KV.
func (s *SQLite) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return storeErr("encode value", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, raw, time.Now().UnixMilli(),
	)
	if err != nil {
		return storeErr("write value", key, err)
	}
	return nil
}

// RecordPublish implements History.
func (s *SQLite) RecordPublish(ctx context.Context, rec PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO publish_history (run_id, commit_hash, added, removed, at, error) VALUES (?, ?, ?, ?, ?, ?)",
		rec.RunID, rec.Commit, rec.Added, rec.Removed, rec.At.UnixMilli(), rec.Error,
	)
	if err != nil {
		return storeErr("insert publish record", rec.RunID, err)
	}
	return nil
}

// History implements History, newest first.
func (s *SQLite) History(ctx context.Context, limit int) ([]PublishRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, commit_hash, added, removed, at, error FROM publish_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query publish history: %w", err)
	}
	defer rows.Close()

	var out []PublishRecord
	for rows.Next() {
		var (
			rec        PublishRecord
			commit, ex sql.NullString
			at         int64
		)
		if err := rows.Scan(&rec.RunID, &commit, &rec.Added, &rec.Removed, &at, &ex); err != nil {
			return nil, fmt.Errorf("scan publish record: %w", err)
		}
		rec.Commit, rec.Error = commit.String, ex.String
		rec.At = time.UnixMilli(at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
