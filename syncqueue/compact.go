// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"sort"
)

// Compact collapses redundant operations so that at most one live entry
// remains per target. It is a pure function: the input is not modified.
//
// Reduction rules, applied left-to-right by client timestamp within each
// (entityType, localId) group:
//
//   - create then delete: both cancel, the entity never reached the server
//   - create then update(s): a single create with the latest payload
//   - update then update: the latest update wins
//   - update then delete: the delete wins, only final state matters
//   - delete then create: kept as two independent entries (recreate of an
//     already-synced entity; the delete must reach the server first)
//
// Dead-lettered entries pass through untouched: they are retained for
// diagnostics and never merged with live writes.
func Compact(queue []QueuedWrite) []QueuedWrite {
	if len(queue) <= 1 {
		return append([]QueuedWrite(nil), queue...)
	}

	// Remember input positions so the output ordering is deterministic.
	var dead []indexed
	groups := make(map[TargetKey][]indexed)
	var keys []TargetKey
	for i := range queue {
		entry := indexed{w: queue[i].Clone(), pos: i}
		if entry.w.Status == StatusFailedPermanent {
			dead = append(dead, entry)
			continue
		}
		key := entry.w.Key()
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], entry)
	}

	var out []indexed
	out = append(out, dead...)
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].w.ClientTimestamp.Before(group[j].w.ClientTimestamp)
		})
		out = append(out, reduceGroup(group)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].w.ClientTimestamp.Equal(out[j].w.ClientTimestamp) {
			return out[i].w.ClientTimestamp.Before(out[j].w.ClientTimestamp)
		}
		return out[i].pos < out[j].pos
	})

	result := make([]QueuedWrite, 0, len(out))
	for _, entry := range out {
		result = append(result, entry.w)
	}
	return result
}

// reduceGroup folds one target's entries, oldest first.
func reduceGroup(group []indexed) []indexed {
	var out []indexed
	for _, next := range group {
		if len(out) == 0 {
			out = append(out, next)
			continue
		}
		top := &out[len(out)-1]

		switch {
		case top.w.Op == OpCreate && next.w.Op == OpDelete:
			// Never reached the server; nothing to sync.
			out = out[:len(out)-1]

		case top.w.Op == OpCreate && next.w.Op == OpUpdate:
			merged := next
			merged.w.Op = OpCreate
			out[len(out)-1] = merged

		case top.w.Op == OpDelete && next.w.Op == OpCreate:
			// Recreate after a synced delete stays a separate operation.
			out = append(out, next)

		default:
			// update+update, update+delete, and degenerate repeats all
			// collapse to the latest entry.
			out[len(out)-1] = next
		}
	}
	return out
}

// indexed pairs a queue entry with its original position. Declared at
// package scope so reduceGroup can share it with Compact.
type indexed struct {
	w   QueuedWrite
	pos int
}
