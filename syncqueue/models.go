// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"encoding/json"
	"time"
)

// EntityType tags which domain collection a queued write targets.
type EntityType string

const (
	EntityRecipe       EntityType = "recipes"
	EntityShoppingList EntityType = "shoppingLists"
	EntityShoppingItem EntityType = "shoppingItems"
	EntityChore        EntityType = "chores"
)

// Op is the kind of mutation a queued write represents.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// WriteStatus is the lifecycle state of a queued write.
type WriteStatus string

const (
	StatusPending         WriteStatus = "PENDING"
	StatusRetrying        WriteStatus = "RETRYING"
	StatusFailedPermanent WriteStatus = "FAILED_PERMANENT"
)

// Target identifies the entity a write applies to. LocalID is assigned by
// the client at creation time and never changes; ServerID appears once the
// server has acknowledged the entity's creation.
type Target struct {
	LocalID  string `json:"localId"`
	ServerID string `json:"serverId,omitempty"`
}

// RemoteID returns the identifier the server knows the entity by: the
// server-assigned ID when present, the client-assigned one otherwise.
func (t Target) RemoteID() string {
	if t.ServerID != "" {
		return t.ServerID
	}
	return t.LocalID
}

// QueuedWrite is a pending local mutation. Payload is the entity's full
// current-state snapshot, not a diff; the server reconciles by state.
type QueuedWrite struct {
	ID              string          `json:"id"`
	OperationID     string          `json:"operationId"`
	EntityType      EntityType      `json:"entityType"`
	Op              Op              `json:"op"`
	Target          Target          `json:"target"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ClientTimestamp time.Time       `json:"clientTimestamp"`
	AttemptCount    int             `json:"attemptCount"`
	LastAttemptAt   *time.Time      `json:"lastAttemptAt,omitempty"`
	Status          WriteStatus     `json:"status"`
	LastError       string          `json:"lastError,omitempty"`
}

// Key returns the compaction key: at most one live entry may exist per key.
func (w *QueuedWrite) Key() TargetKey {
	return TargetKey{EntityType: w.EntityType, LocalID: w.Target.LocalID}
}

// Clone returns an independent copy of the write.
func (w *QueuedWrite) Clone() QueuedWrite {
	out := *w
	if w.Payload != nil {
		out.Payload = append(json.RawMessage(nil), w.Payload...)
	}
	if w.LastAttemptAt != nil {
		t := *w.LastAttemptAt
		out.LastAttemptAt = &t
	}
	return out
}

// TargetKey groups queued writes that address the same logical entity.
type TargetKey struct {
	EntityType EntityType
	LocalID    string
}

// SyncCheckpoint marks an in-flight batch sync attempt. It survives process
// restarts so that a batch interrupted between "sent" and "confirmed" is
// never blindly assumed to have failed.
type SyncCheckpoint struct {
	RequestID            string    `json:"requestId"`
	InFlightOperationIDs []string  `json:"inFlightOperationIds"`
	TTLMs                int64     `json:"ttlMs"`
	AttemptedAt          time.Time `json:"attemptedAt"`
}

// Expired reports whether the checkpoint has outlived its TTL.
func (c *SyncCheckpoint) Expired(now time.Time) bool {
	return now.After(c.AttemptedAt.Add(time.Duration(c.TTLMs) * time.Millisecond))
}

// Clone returns an independent copy of the checkpoint.
func (c *SyncCheckpoint) Clone() *SyncCheckpoint {
	out := *c
	out.InFlightOperationIDs = append([]string(nil), c.InFlightOperationIDs...)
	return &out
}
