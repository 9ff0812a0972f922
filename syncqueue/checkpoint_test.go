// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBeginReusesUnexpiredRequestID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := NewCheckpointManager(store, time.Minute, testLogger())

	first, err := m.Begin(ctx, []string{"op-1", "op-2"})
	require.NoError(t, err)
	require.NotEmpty(t, first.RequestID)

	// A second attempt before the first is confirmed reuses the request ID
	// but carries the current batch, which may have shrunk or grown.
	second, err := m.Begin(ctx, []string{"op-1", "op-3"})
	require.NoError(t, err)
	require.Equal(t, first.RequestID, second.RequestID)
	require.Equal(t, []string{"op-1", "op-3"}, second.InFlightOperationIDs)
}

func TestBeginRotatesRequestIDAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := NewCheckpointManager(store, time.Minute, testLogger())

	first, err := m.Begin(ctx, []string{"op-1"})
	require.NoError(t, err)

	m.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	second, err := m.Begin(ctx, []string{"op-1"})
	require.NoError(t, err)
	require.NotEqual(t, first.RequestID, second.RequestID,
		"a stale checkpoint must not pin the request ID forever")
}

func TestBeginAfterConfirmStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := NewCheckpointManager(store, time.Minute, testLogger())

	first, err := m.Begin(ctx, []string{"op-1"})
	require.NoError(t, err)
	require.NoError(t, m.Confirm(ctx, []string{"op-1"}))

	second, err := m.Begin(ctx, []string{"op-2"})
	require.NoError(t, err)
	require.NotEqual(t, first.RequestID, second.RequestID)
}

func TestReconcileOnStartClearsExpiredCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveCheckpoint(ctx, &SyncCheckpoint{
		RequestID:            "req-old",
		InFlightOperationIDs: []string{"op-1"},
		TTLMs:                1000,
		AttemptedAt:          time.Now().UTC().Add(-time.Hour),
	}))

	m := NewCheckpointManager(store, time.Minute, testLogger())
	cp, err := m.ReconcileOnStart(ctx)
	require.NoError(t, err)
	require.Nil(t, cp)

	stored, err := store.Checkpoint(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestReconcileOnStartKeepsFreshCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveCheckpoint(ctx, &SyncCheckpoint{
		RequestID:            "req-live",
		InFlightOperationIDs: []string{"op-1", "op-2"},
		TTLMs:                time.Minute.Milliseconds(),
		AttemptedAt:          time.Now().UTC(),
	}))

	m := NewCheckpointManager(store, time.Minute, testLogger())
	cp, err := m.ReconcileOnStart(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	require.Equal(t, "req-live", cp.RequestID)

	// The next Begin must resend under the surviving request ID.
	next, err := m.Begin(ctx, []string{"op-1", "op-2"})
	require.NoError(t, err)
	require.Equal(t, "req-live", next.RequestID)
}

func TestReconcileOnStartNoCheckpoint(t *testing.T) {
	ctx := context.Background()
	m := NewCheckpointManager(newTestStore(t), time.Minute, testLogger())

	cp, err := m.ReconcileOnStart(ctx)
	require.NoError(t, err)
	require.Nil(t, cp)
}
