// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"encoding/json"
	"log/slog"

	"github.com/yairabf/KithchenHub-sub001/syncwire"
)

// BuildResult is the outcome of assembling a batch request from the ready
// set. Entries excluded from the request stay in the queue untouched:
// deferred items wait for their parent list, malformed entries wait for
// manual inspection.
type BuildResult struct {
	Request   *syncwire.BatchSyncRequest
	Included  []QueuedWrite
	Deferred  []QueuedWrite
	Malformed []QueuedWrite
}

// PayloadBuilder turns ready queue entries into the wire payload the batch
// endpoint expects. The worker applies backoff filtering before calling
// Build; this component never re-filters by eligibility.
type PayloadBuilder struct {
	logger *slog.Logger
}

// NewPayloadBuilder creates a builder. A nil logger falls back to
// slog.Default().
func NewPayloadBuilder(logger *slog.Logger) *PayloadBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayloadBuilder{logger: logger}
}

// Build groups the ready set by target, keeps the latest state per target
// (a defensive re-application of compaction semantics), and transforms each
// survivor into its typed DTO. A malformed payload is logged and excluded
// rather than aborting the whole batch. Shopping items whose parent list is
// not part of the same ready set are deferred, since the wire contract
// nests items under lists.
func (b *PayloadBuilder) Build(requestID string, ready []QueuedWrite) *BuildResult {
	result := &BuildResult{
		Request: &syncwire.BatchSyncRequest{RequestID: requestID},
	}

	survivors := latestPerTarget(ready)

	// First pass: everything except shopping items, collecting the lists
	// present in this batch so items can nest under them.
	type pendingList struct {
		write QueuedWrite
		dto   syncwire.ShoppingListUpload
	}
	var lists []pendingList
	listIndex := map[string]int{} // any known identifier -> lists index
	var items []QueuedWrite

	for _, w := range survivors {
		if w.Op == OpDelete {
			result.Request.Deletions = append(result.Request.Deletions, syncwire.DeletionUpload{
				Type: deletionType(w.EntityType),
				ID:   w.Target.RemoteID(),
			})
			result.Included = append(result.Included, w)
			continue
		}

		switch w.EntityType {
		case EntityRecipe:
			var dto syncwire.RecipeUpload
			if !b.decode(w, &dto, func() error {
				dto.ID = w.Target.RemoteID()
				return syncwire.ValidateRecipe(&dto)
			}, result) {
				continue
			}
			result.Request.Recipes = append(result.Request.Recipes, dto)
			result.Included = append(result.Included, w)

		case EntityShoppingList:
			var dto syncwire.ShoppingListUpload
			if !b.decode(w, &dto, func() error {
				dto.ID = w.Target.RemoteID()
				return syncwire.ValidateList(&dto)
			}, result) {
				continue
			}
			idx := len(lists)
			lists = append(lists, pendingList{write: w, dto: dto})
			listIndex[w.Target.LocalID] = idx
			if w.Target.ServerID != "" {
				listIndex[w.Target.ServerID] = idx
			}
			listIndex[dto.ID] = idx

		case EntityChore:
			var dto syncwire.ChoreUpload
			if !b.decode(w, &dto, func() error {
				dto.ID = w.Target.RemoteID()
				return syncwire.ValidateChore(&dto)
			}, result) {
				continue
			}
			result.Request.Chores = append(result.Request.Chores, dto)
			result.Included = append(result.Included, w)

		case EntityShoppingItem:
			items = append(items, w)

		default:
			b.logger.Warn("unknown entity type in queue, skipping",
				"entityType", w.EntityType, "localId", w.Target.LocalID)
			result.Malformed = append(result.Malformed, w)
		}
	}

	// Second pass: nest items under their parent list or defer orphans.
	for _, w := range items {
		var dto syncwire.ShoppingItemUpload
		if !b.decode(w, &dto, func() error {
			dto.ID = w.Target.RemoteID()
			return syncwire.ValidateItem(&dto)
		}, result) {
			continue
		}

		idx, ok := listIndex[dto.ListID]
		if !ok {
			b.logger.Debug("deferring orphaned shopping item until its list syncs",
				"itemId", dto.ID, "listId", dto.ListID)
			result.Deferred = append(result.Deferred, w)
			continue
		}
		lists[idx].dto.Items = append(lists[idx].dto.Items, dto)
		result.Included = append(result.Included, w)
	}

	for _, l := range lists {
		result.Request.Lists = append(result.Request.Lists, l.dto)
		result.Included = append(result.Included, l.write)
	}

	return result
}

// decode unmarshals and validates one entry's payload. On failure the entry
// is recorded as malformed and false is returned.
func (b *PayloadBuilder) decode(w QueuedWrite, dst any, validate func() error, result *BuildResult) bool {
	if err := json.Unmarshal(w.Payload, dst); err != nil {
		b.logger.Warn("malformed queue payload, excluding from batch",
			"entityType", w.EntityType, "localId", w.Target.LocalID, "error", err)
		result.Malformed = append(result.Malformed, w)
		return false
	}
	if err := validate(); err != nil {
		b.logger.Warn("queue payload failed validation, excluding from batch",
			"entityType", w.EntityType, "localId", w.Target.LocalID, "error", err)
		result.Malformed = append(result.Malformed, w)
		return false
	}
	return true
}

// latestPerTarget re-applies compaction semantics over the ready set so
// each target contributes at most one entry, carrying its latest state.
// The one exception compaction allows, a recreate queued behind the delete
// of an already-synced entity, is resolved by sending only the delete now;
// the recreate stays queued until the delete has landed.
func latestPerTarget(ready []QueuedWrite) []QueuedWrite {
	compacted := Compact(ready) // already ordered by client timestamp
	seen := make(map[TargetKey]bool, len(compacted))
	out := make([]QueuedWrite, 0, len(compacted))
	for i := range compacted {
		key := compacted[i].Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, compacted[i])
	}
	return out
}

func deletionType(e EntityType) string {
	switch e {
	case EntityRecipe:
		return syncwire.DeletionTypeRecipe
	case EntityShoppingList:
		return syncwire.DeletionTypeList
	case EntityShoppingItem:
		return syncwire.DeletionTypeItem
	case EntityChore:
		return syncwire.DeletionTypeChore
	default:
		return string(e)
	}
}
