// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"context"

	"github.com/yairabf/KithchenHub-sub001/syncwire"
)

// RemoteSync is the batch-state sync endpoint. Any non-2xx outcome or
// connectivity failure surfaces as an error from the taxonomy in errors.go;
// a nil error means the response is a structurally valid reconciliation
// report.
type RemoteSync interface {
	Sync(ctx context.Context, req *syncwire.BatchSyncRequest) (*syncwire.SyncResponse, error)
}

// NetworkMonitor answers whether the device currently has connectivity.
// Push-based wakeups are an application-layer optimization; the worker only
// needs polling.
type NetworkMonitor interface {
	Online() bool
}

// OnlineFunc adapts a function to the NetworkMonitor interface.
type OnlineFunc func() bool

// Online implements NetworkMonitor.
func (f OnlineFunc) Online() bool { return f() }

// AlwaysOnline is the default network monitor.
var AlwaysOnline NetworkMonitor = OnlineFunc(func() bool { return true })

// CacheInvalidator receives "entity type changed" notifications after a
// successful sync so read paths can refresh and pick up server-assigned
// identifiers.
type CacheInvalidator interface {
	Invalidate(entityType EntityType)
}

// InvalidateFunc adapts a function to the CacheInvalidator interface.
type InvalidateFunc func(entityType EntityType)

// Invalidate implements CacheInvalidator.
func (f InvalidateFunc) Invalidate(entityType EntityType) { f(entityType) }

// NopInvalidator discards invalidation signals.
var NopInvalidator CacheInvalidator = InvalidateFunc(func(EntityType) {})
