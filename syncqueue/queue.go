// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package syncqueue implements the offline write-sync pipeline for the
// Kitchen Hub app: a durable queue of pending mutations, batch-state upload
// with per-entity conflict reconciliation, exponential-backoff retry with
// failure classification, and a checkpoint that makes an interrupted batch
// safely resumable.
package syncqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// QueueStore owns all persisted queue and checkpoint state. Every mutation
// runs a full read-modify-write cycle against the underlying Storage under
// a single lock, so concurrent callers (UI enqueues racing the worker)
// observe a strictly ordered sequence of cycles with no lost updates.
//
// Storage I/O failures propagate to the caller uncaught; retrying is the
// worker's concern, one level up.
type QueueStore struct {
	storage Storage
	logger  *slog.Logger
	clock   func() time.Time

	lock chan struct{} // one permit; held for each read-modify-write cycle
}

// NewQueueStore creates a queue store over the given durable storage.
// A nil logger falls back to slog.Default().
func NewQueueStore(storage Storage, logger *slog.Logger) *QueueStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &QueueStore{
		storage: storage,
		logger:  logger,
		clock:   time.Now,
		lock:    make(chan struct{}, 1),
	}
	s.lock <- struct{}{}
	return s
}

// acquire takes the single write permit, honoring context cancellation
// while waiting.
func (s *QueueStore) acquire(ctx context.Context) error {
	select {
	case <-s.lock:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *QueueStore) release() {
	s.lock <- struct{}{}
}

// mutate runs one serialized read-modify-write cycle over the queue.
func (s *QueueStore) mutate(ctx context.Context, fn func(queue []QueuedWrite) ([]QueuedWrite, error)) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	queue, err := s.storage.LoadQueue(ctx)
	if err != nil {
		return err
	}
	next, err := fn(queue)
	if err != nil {
		return err
	}
	return s.storage.SaveQueue(ctx, next)
}

// Enqueue appends a pending write for the given target. The stored queue is
// compacted both before and after insertion so redundant entries for the
// same target never accumulate. The returned write is the entry as created;
// compaction may have merged or canceled it in storage.
func (s *QueueStore) Enqueue(ctx context.Context, entityType EntityType, op Op, target Target, payload json.RawMessage) (*QueuedWrite, error) {
	write := QueuedWrite{
		ID:              uuid.New().String(),
		OperationID:     uuid.New().String(),
		EntityType:      entityType,
		Op:              op,
		Target:          target,
		Payload:         append(json.RawMessage(nil), payload...),
		ClientTimestamp: s.clock().UTC(),
		Status:          StatusPending,
	}

	err := s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		queue = Compact(queue)
		queue = append(queue, write.Clone())
		return Compact(queue), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("enqueued write",
		"entityType", entityType, "op", op, "localId", target.LocalID)
	return &write, nil
}

// GetAll returns a snapshot of the full queue. Callers must not feed the
// snapshot back into storage; all mutation goes through this store.
func (s *QueueStore) GetAll(ctx context.Context) ([]QueuedWrite, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.storage.LoadQueue(ctx)
}

// GetByEntityType returns the queued writes targeting one collection.
func (s *QueueStore) GetByEntityType(ctx context.Context, entityType EntityType) ([]QueuedWrite, error) {
	queue, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []QueuedWrite
	for i := range queue {
		if queue[i].EntityType == entityType {
			out = append(out, queue[i])
		}
	}
	return out, nil
}

// GetByTarget returns the queued writes for a single logical entity.
func (s *QueueStore) GetByTarget(ctx context.Context, entityType EntityType, localID string) ([]QueuedWrite, error) {
	queue, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []QueuedWrite
	for i := range queue {
		if queue[i].EntityType == entityType && queue[i].Target.LocalID == localID {
			out = append(out, queue[i])
		}
	}
	return out, nil
}

// Remove deletes a queue entry by its entry ID.
func (s *QueueStore) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		next := queue[:0]
		found := false
		for i := range queue {
			if queue[i].ID == id {
				found = true
				continue
			}
			next = append(next, queue[i])
		}
		if !found {
			return nil, ErrNotFound
		}
		return next, nil
	})
}

// Clear removes every queue entry, dead-lettered ones included.
func (s *QueueStore) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		return nil, nil
	})
}

// Compact collapses redundant entries in storage.
func (s *QueueStore) Compact(ctx context.Context) error {
	return s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		return Compact(queue), nil
	})
}

// IncrementRetry bumps an entry's attempt count, stamps the attempt time,
// and moves it to RETRYING. Returns the updated entry.
func (s *QueueStore) IncrementRetry(ctx context.Context, id string) (*QueuedWrite, error) {
	var updated *QueuedWrite
	err := s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		for i := range queue {
			if queue[i].ID != id {
				continue
			}
			now := s.clock().UTC()
			queue[i].AttemptCount++
			queue[i].LastAttemptAt = &now
			queue[i].Status = StatusRetrying
			w := queue[i].Clone()
			updated = &w
			return queue, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateLastAttempt stamps an entry's last attempt time without changing
// its attempt count.
func (s *QueueStore) UpdateLastAttempt(ctx context.Context, id string) error {
	return s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		for i := range queue {
			if queue[i].ID == id {
				now := s.clock().UTC()
				queue[i].LastAttemptAt = &now
				return queue, nil
			}
		}
		return nil, ErrNotFound
	})
}

// UpdateStatus sets an entry's lifecycle status.
func (s *QueueStore) UpdateStatus(ctx context.Context, id string, status WriteStatus) error {
	return s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		for i := range queue {
			if queue[i].ID == id {
				queue[i].Status = status
				return queue, nil
			}
		}
		return nil, ErrNotFound
	})
}

// MarkFailedPermanent dead-letters an entry. The entry stays in storage so
// the app can surface it; it is excluded from all future eligibility checks.
func (s *QueueStore) MarkFailedPermanent(ctx context.Context, id string, reason string) error {
	err := s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		for i := range queue {
			if queue[i].ID == id {
				queue[i].Status = StatusFailedPermanent
				queue[i].LastError = reason
				return queue, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return err
	}
	s.logger.Error("queue entry dead-lettered", "id", id, "reason", reason)
	return nil
}

// RetryFailed resets all dead-lettered entries to PENDING with a fresh
// attempt count, for user-driven manual retry. Returns how many were reset.
func (s *QueueStore) RetryFailed(ctx context.Context) (int, error) {
	count := 0
	err := s.mutate(ctx, func(queue []QueuedWrite) ([]QueuedWrite, error) {
		for i := range queue {
			if queue[i].Status == StatusFailedPermanent {
				queue[i].Status = StatusPending
				queue[i].AttemptCount = 0
				queue[i].LastAttemptAt = nil
				queue[i].LastError = ""
				count++
			}
		}
		return queue, nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("reset dead-lettered entries for retry", "count", count)
	}
	return count, nil
}

// Stats is a point-in-time summary of the queue, for sync badges and
// support tooling.
type Stats struct {
	Total           int
	Pending         int
	Retrying        int
	FailedPermanent int
}

// Stats returns queue counters by status.
func (s *QueueStore) Stats(ctx context.Context) (Stats, error) {
	queue, err := s.GetAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(queue)}
	for i := range queue {
		switch queue[i].Status {
		case StatusPending:
			st.Pending++
		case StatusRetrying:
			st.Retrying++
		case StatusFailedPermanent:
			st.FailedPermanent++
		}
	}
	return st, nil
}

// Checkpoint returns the persisted sync checkpoint, or nil when none exists.
func (s *QueueStore) Checkpoint(ctx context.Context) (*SyncCheckpoint, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.storage.LoadCheckpoint(ctx)
}

// SaveCheckpoint replaces the persisted checkpoint.
func (s *QueueStore) SaveCheckpoint(ctx context.Context, cp *SyncCheckpoint) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.storage.SaveCheckpoint(ctx, cp)
}

// MarkCheckpointAttempt refreshes the attempt timestamp of the current
// checkpoint, keeping its request ID and in-flight set intact. A missing
// checkpoint is not an error; there is simply nothing to mark.
func (s *QueueStore) MarkCheckpointAttempt(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	cp, err := s.storage.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}
	cp.AttemptedAt = s.clock().UTC()
	return s.storage.SaveCheckpoint(ctx, cp)
}

// ConfirmCheckpointOperations removes acknowledged operation IDs from the
// in-flight set. Once the set drains the checkpoint is cleared entirely.
func (s *QueueStore) ConfirmCheckpointOperations(ctx context.Context, operationIDs []string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	cp, err := s.storage.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}

	confirmed := make(map[string]bool, len(operationIDs))
	for _, id := range operationIDs {
		confirmed[id] = true
	}
	remaining := cp.InFlightOperationIDs[:0]
	for _, id := range cp.InFlightOperationIDs {
		if !confirmed[id] {
			remaining = append(remaining, id)
		}
	}
	cp.InFlightOperationIDs = remaining

	if len(cp.InFlightOperationIDs) == 0 {
		return s.storage.SaveCheckpoint(ctx, nil)
	}
	return s.storage.SaveCheckpoint(ctx, cp)
}

// ClearCheckpoint removes the persisted checkpoint.
func (s *QueueStore) ClearCheckpoint(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.storage.SaveCheckpoint(ctx, nil)
}
