// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package store persists script save data and run sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Session is one run of a script.
type Session struct {
	ID        uuid.UUID
	Unit      string
	Digest    string
	StartedAt time.Time
	EndedAt   time.Time // zero while running
	Ticks     uint64
	Status    string
}

// Store is a SQLite-backed save store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and runs migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&cache=shared", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open save store: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate save store: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS save_data (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY(namespace, key)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			unit TEXT NOT NULL,
			digest TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL DEFAULT 0,
			ticks INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// --------- Save data ---------

// Put stores value under (namespace, key), replacing any previous value.
func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO save_data(namespace, key, value, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		namespace, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get returns the value under (namespace, key) and whether it exists.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM save_data WHERE namespace=? AND key=?`, namespace, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

// Delete removes (namespace, key) and reports whether it existed.
func (s *Store) Delete(ctx context.Context, namespace, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM save_data WHERE namespace=? AND key=?`, namespace, key)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys lists the keys in namespace in lexical order.
func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM save_data WHERE namespace=? ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

// --------- Sessions ---------

// StartSession records the start of a run and returns its ID.
func (s *Store) StartSession(ctx context.Context, unit, digest string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, unit, digest, started_at) VALUES(?, ?, ?, ?)`,
		id.String(), unit, digest, time.Now().UnixMilli())
	if err != nil {
		return uuid.Nil, fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// EndSession records how a run finished.
func (s *Store) EndSession(ctx context.Context, id uuid.UUID, ticks uint64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at=?, ticks=?, status=? WHERE id=?`,
		time.Now().UnixMilli(), int64(ticks), status, id.String()) // #nosec G115 - tick counts fit in int64
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session: unknown session %s", id)
	}
	return nil
}

// Sessions returns the most recent sessions first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, unit, digest, started_at, ended_at, ticks, status
		 FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Session
	for rows.Next() {
		var (
			sess           Session
			idStr          string
			started, ended int64
			ticks          int64
		)
		if err := rows.Scan(&idStr, &sess.Unit, &sess.Digest, &started, &ended, &ticks, &sess.Status); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("session id %q: %w", idStr, err)
		}
		sess.ID = id
		sess.StartedAt = time.UnixMilli(started)
		if ended > 0 {
			sess.EndedAt = time.UnixMilli(ended)
		}
		sess.Ticks = uint64(ticks) // #nosec G115 - stored from a uint64
		out = append(out, sess)
	}
	return out, rows.Err()
}
