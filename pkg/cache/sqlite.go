package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps generations in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at filename.
// If filename is empty, a private in-memory database is used.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps ":memory:" databases intact
	db.SetMaxOpenConns(1)

	statements := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS generations (
			name TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			generation TEXT NOT NULL,
			key TEXT NOT NULL,
			status INTEGER NOT NULL,
			header BLOB,
			body BLOB,
			cached_at INTEGER NOT NULL,
			PRIMARY KEY (generation, key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Open(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO generations (name, created_at) VALUES (?, ?)`,
		name, time.Now().UnixNano())
	if err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return fmt.Errorf("sqlite open generation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM generations ORDER BY name`)
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("sqlite list generations: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			CacheErrors.WithLabelValues("names").Inc()
			return nil, fmt.Errorf("sqlite scan generation: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE name = ?`, name)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("sqlite delete generation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE generation = ?`, name); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("sqlite delete entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("sqlite commit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite rows affected: %w", err)
	}
	if affected > 0 {
		GenerationsDeleted.Inc()
	}
	return affected > 0, nil
}

func (s *SQLiteStore) Match(ctx context.Context, name string, key Key) (*Entry, error) {
	var (
		entry    Entry
		header   []byte
		cachedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, header, body, cached_at FROM entries WHERE generation = ? AND key = ?`,
		name, key.String(),
	).Scan(&entry.StatusCode, &header, &entry.Body, &cachedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			observeMatch(name, ErrCacheMiss)
			return nil, ErrCacheMiss
		}
		observeMatch(name, err)
		return nil, fmt.Errorf("sqlite match: %w", err)
	}

	if len(header) > 0 {
		if err := json.Unmarshal(header, &entry.Header); err != nil {
			observeMatch(name, err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
	}
	entry.CachedAt = time.Unix(0, cachedAt)

	observeMatch(name, nil)
	return &entry, nil
}

func (s *SQLiteStore) Put(ctx context.Context, name string, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	header, err := json.Marshal(entry.Header)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal entry header: %w", err)
	}
	cachedAt := entry.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO generations (name, created_at) VALUES (?, ?)`,
		name, time.Now().UnixNano()); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("sqlite open generation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (generation, key, status, header, body, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		name, key.String(), entry.StatusCode, header, entry.Body, cachedAt.UnixNano()); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("sqlite put entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context, name string) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM entries WHERE generation = ? ORDER BY key`, name)
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("sqlite list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]Key, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			CacheErrors.WithLabelValues("keys").Inc()
			return nil, fmt.Errorf("sqlite scan key: %w", err)
		}
		if k, ok := ParseKey(raw); ok {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
