// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yairabf/KithchenHub-sub001/syncwire"
)

// ResultHandler reconciles the server's per-entity conflict report back
// onto the queue: conflicted entries are kept for a backed-off retry (or
// dead-lettered once attempts run out), everything else is removed as
// confirmed. Entity types with at least one confirmed write trigger a cache
// invalidation signal so reads pick up server-resolved state.
type ResultHandler struct {
	store       *QueueStore
	invalidator CacheInvalidator
	maxAttempts int
	logger      *slog.Logger
}

// NewResultHandler creates a handler. A nil invalidator discards signals;
// maxAttempts <= 0 falls back to DefaultMaxAttempts.
func NewResultHandler(store *QueueStore, invalidator CacheInvalidator, maxAttempts int, logger *slog.Logger) *ResultHandler {
	if invalidator == nil {
		invalidator = NopInvalidator
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultHandler{
		store:       store,
		invalidator: invalidator,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Apply processes the sync response for the entries that were actually sent.
// Deferred and malformed entries must not be passed here; they were never
// part of the request.
func (h *ResultHandler) Apply(ctx context.Context, sent []QueuedWrite, resp *syncwire.SyncResponse) error {
	conflicted := make(map[string]string, len(resp.Conflicts)) // entity id -> reason
	for _, c := range resp.Conflicts {
		conflicted[c.ID] = c.Reason
	}

	invalidate := map[EntityType]bool{}
	for i := range sent {
		w := &sent[i]

		reason, isConflict := conflictFor(w, conflicted)
		if !isConflict {
			if err := h.store.Remove(ctx, w.ID); err != nil {
				return fmt.Errorf("failed to remove confirmed write %s: %w", w.ID, err)
			}
			invalidate[w.EntityType] = true
			continue
		}

		updated, err := h.store.IncrementRetry(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("failed to increment retry for %s: %w", w.ID, err)
		}
		if updated.AttemptCount >= h.maxAttempts {
			msg := fmt.Sprintf("conflict not resolved after %d attempts: %s", updated.AttemptCount, reason)
			if err := h.store.MarkFailedPermanent(ctx, w.ID, msg); err != nil {
				return fmt.Errorf("failed to dead-letter %s: %w", w.ID, err)
			}
			continue
		}
		h.logger.Debug("sync conflict, keeping for retry",
			"entityType", w.EntityType, "localId", w.Target.LocalID,
			"attempt", updated.AttemptCount, "reason", reason)
	}

	for entityType := range invalidate {
		h.invalidator.Invalidate(entityType)
	}
	return nil
}

// conflictFor matches a sent write against the conflict report by either of
// its identifiers.
func conflictFor(w *QueuedWrite, conflicted map[string]string) (string, bool) {
	if w.Target.ServerID != "" {
		if reason, ok := conflicted[w.Target.ServerID]; ok {
			return reason, true
		}
	}
	if reason, ok := conflicted[w.Target.LocalID]; ok {
		return reason, true
	}
	return "", false
}
