// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultCheckpointTTL bounds how long an in-flight checkpoint is trusted.
// Past this window a checkpoint is stale and gets cleared rather than
// reconciled.
const DefaultCheckpointTTL = 5 * time.Minute

// CheckpointManager brackets the remote sync call with a durable marker of
// the operation IDs believed sent, making a batch resumable across process
// restarts. Operation IDs are assigned at enqueue time and stable across
// retries, so re-submitting a batch under the same request ID is safe for
// the server to deduplicate.
type CheckpointManager struct {
	store  *QueueStore
	ttl    time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

// NewCheckpointManager creates a manager. ttl <= 0 falls back to
// DefaultCheckpointTTL.
func NewCheckpointManager(store *QueueStore, ttl time.Duration, logger *slog.Logger) *CheckpointManager {
	if ttl <= 0 {
		ttl = DefaultCheckpointTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointManager{
		store:  store,
		ttl:    ttl,
		logger: logger,
		clock:  time.Now,
	}
}

// Begin records a checkpoint for a batch about to be sent and returns it.
// If an unexpired checkpoint exists, its request ID is reused: the previous
// attempt's outcome is unknown and the server must be able to recognize the
// resend. The in-flight set always reflects the current batch, since the
// queue may have been mutated since the earlier attempt.
func (m *CheckpointManager) Begin(ctx context.Context, operationIDs []string) (*SyncCheckpoint, error) {
	now := m.clock().UTC()

	cp, err := m.store.Checkpoint(ctx)
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.Expired(now) {
		m.logger.Warn("clearing stale sync checkpoint", "requestId", cp.RequestID)
		cp = nil
	}

	requestID := uuid.New().String()
	if cp != nil {
		requestID = cp.RequestID
	}

	next := &SyncCheckpoint{
		RequestID:            requestID,
		InFlightOperationIDs: append([]string(nil), operationIDs...),
		TTLMs:                m.ttl.Milliseconds(),
		AttemptedAt:          now,
	}
	if err := m.store.SaveCheckpoint(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Confirm acknowledges operation IDs whose outcome is now known. The
// checkpoint clears itself once the in-flight set drains.
func (m *CheckpointManager) Confirm(ctx context.Context, operationIDs []string) error {
	return m.store.ConfirmCheckpointOperations(ctx, operationIDs)
}

// Clear drops the checkpoint entirely, e.g. when the server responded with
// a definite rejection and nothing was applied.
func (m *CheckpointManager) Clear(ctx context.Context) error {
	return m.store.ClearCheckpoint(ctx)
}

// ReconcileOnStart inspects checkpoint state left over from a previous
// process. An expired checkpoint is cleared. An unexpired one with
// unconfirmed operations means a batch may have partially succeeded
// server-side; it is kept so the next Begin reuses its request ID and the
// server can deduplicate, instead of assuming either success or failure.
// Returns the surviving checkpoint, if any.
func (m *CheckpointManager) ReconcileOnStart(ctx context.Context) (*SyncCheckpoint, error) {
	cp, err := m.store.Checkpoint(ctx)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, nil
	}

	now := m.clock().UTC()
	if cp.Expired(now) {
		m.logger.Warn("dropping expired sync checkpoint from previous run",
			"requestId", cp.RequestID, "inFlight", len(cp.InFlightOperationIDs))
		if err := m.store.ClearCheckpoint(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	m.logger.Info("unconfirmed sync checkpoint found, batch outcome unknown",
		"requestId", cp.RequestID, "inFlight", len(cp.InFlightOperationIDs))
	return cp, nil
}
