// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"
	"sync"
)

// Storage is the durable local store the queue lives in. Implementations
// provide atomic whole-value replacement of the serialized queue and of the
// single checkpoint record; serialization of concurrent writers happens one
// level up in QueueStore, so implementations never see interleaved
// read-modify-write cycles. I/O failures must propagate to the caller
// unmodified: a broken durable store stops the pipeline, it never retries
// here.
type Storage interface {
	// LoadQueue returns the full persisted queue (nil when empty).
	LoadQueue(ctx context.Context) ([]QueuedWrite, error)

	// SaveQueue atomically replaces the persisted queue.
	SaveQueue(ctx context.Context, queue []QueuedWrite) error

	// LoadCheckpoint returns the persisted checkpoint, or nil when absent.
	LoadCheckpoint(ctx context.Context) (*SyncCheckpoint, error)

	// SaveCheckpoint atomically replaces the checkpoint. A nil checkpoint
	// clears it.
	SaveCheckpoint(ctx context.Context, cp *SyncCheckpoint) error
}

// MemoryStorage is an in-process Storage used by tests and the demo. It is
// safe for concurrent use.
type MemoryStorage struct {
	mu         sync.Mutex
	queue      []QueuedWrite
	checkpoint *SyncCheckpoint
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// LoadQueue implements Storage.
func (m *MemoryStorage) LoadQueue(ctx context.Context) ([]QueuedWrite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueuedWrite, 0, len(m.queue))
	for i := range m.queue {
		out = append(out, m.queue[i].Clone())
	}
	return out, nil
}

// SaveQueue implements Storage.
func (m *MemoryStorage) SaveQueue(ctx context.Context, queue []QueuedWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]QueuedWrite, 0, len(queue))
	for i := range queue {
		next = append(next, queue[i].Clone())
	}
	m.queue = next
	return nil
}

// LoadCheckpoint implements Storage.
func (m *MemoryStorage) LoadCheckpoint(ctx context.Context) (*SyncCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkpoint == nil {
		return nil, nil
	}
	return m.checkpoint.Clone(), nil
}

// SaveCheckpoint implements Storage.
func (m *MemoryStorage) SaveCheckpoint(ctx context.Context, cp *SyncCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp == nil {
		m.checkpoint = nil
		return nil
	}
	m.checkpoint = cp.Clone()
	return nil
}
