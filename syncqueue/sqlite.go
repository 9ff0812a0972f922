// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage keys within the _sync_storage table.
const (
	queueKey      = "pending_writes"
	checkpointKey = "sync_checkpoint"
)

// SQLiteStorage persists the queue and checkpoint in a SQLite database,
// one serialized value per key. Whole-value replacement keeps the storage
// contract identical to the mobile key-value store the app uses, while WAL
// mode gives cheap durability across process restarts.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage initializes the storage schema on the given database.
// The database handle stays owned by the caller.
func NewSQLiteStorage(db *sql.DB) (*SQLiteStorage, error) {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS _sync_storage (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync storage table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// LoadQueue implements Storage.
func (s *SQLiteStorage) LoadQueue(ctx context.Context) ([]QueuedWrite, error) {
	raw, err := s.load(ctx, queueKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var queue []QueuedWrite
	if err := json.Unmarshal(raw, &queue); err != nil {
		return nil, fmt.Errorf("failed to decode persisted queue: %w", err)
	}
	return queue, nil
}

// SaveQueue implements Storage.
func (s *SQLiteStorage) SaveQueue(ctx context.Context, queue []QueuedWrite) error {
	if queue == nil {
		queue = []QueuedWrite{}
	}
	raw, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return s.save(ctx, queueKey, raw)
}

// LoadCheckpoint implements Storage.
func (s *SQLiteStorage) LoadCheckpoint(ctx context.Context) (*SyncCheckpoint, error) {
	raw, err := s.load(ctx, checkpointKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var cp SyncCheckpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode persisted checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint implements Storage.
func (s *SQLiteStorage) SaveCheckpoint(ctx context.Context, cp *SyncCheckpoint) error {
	if cp == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM _sync_storage WHERE key = ?`, checkpointKey)
		if err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return s.save(ctx, checkpointKey, raw)
}

func (s *SQLiteStorage) load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM _sync_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLiteStorage) save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO _sync_storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
