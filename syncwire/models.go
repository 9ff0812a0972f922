// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncwire

// REST/JSON models for the batch-state sync endpoint.
// The client sends the full current state of every dirty entity; the server
// reconciles by timestamp/version and reports per-entity conflicts back.

// Sync response status constants
const (
	StatusSynced  = "synced"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Conflict type constants
const (
	ConflictTypeRecipe = "recipe"
	ConflictTypeList   = "list"
	ConflictTypeChore  = "chore"
)

// Deletion type constants (mirror the conflict types, plus standalone items)
const (
	DeletionTypeRecipe = "recipe"
	DeletionTypeList   = "list"
	DeletionTypeItem   = "item"
	DeletionTypeChore  = "chore"
)

// BatchSyncRequest represents a batch-state sync request.
// Every array is optional; absent arrays mean "nothing dirty of that kind".
// The request ID is stable across retries of the same batch so the server
// can deduplicate a resend after a mid-flight crash.
type BatchSyncRequest struct {
	RequestID string               `json:"requestId,omitempty"`
	Recipes   []RecipeUpload       `json:"recipes,omitempty" validate:"dive"`
	Lists     []ShoppingListUpload `json:"lists,omitempty" validate:"dive"`
	Chores    []ChoreUpload        `json:"chores,omitempty" validate:"dive"`
	Deletions []DeletionUpload     `json:"deletions,omitempty" validate:"dive"`
}

// IsEmpty reports whether the request carries no state at all.
func (r *BatchSyncRequest) IsEmpty() bool {
	return len(r.Recipes) == 0 && len(r.Lists) == 0 && len(r.Chores) == 0 && len(r.Deletions) == 0
}

// RecipeUpload is the wire shape of a recipe's current state.
type RecipeUpload struct {
	ID           string   `json:"id" validate:"required"`
	Title        string   `json:"title" validate:"required"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// ShoppingListUpload is the wire shape of a shopping list's current state.
// Dirty items ride nested under their parent list.
type ShoppingListUpload struct {
	ID    string               `json:"id" validate:"required"`
	Name  string               `json:"name" validate:"required"`
	Color string               `json:"color,omitempty"`
	Items []ShoppingItemUpload `json:"items,omitempty" validate:"dive"`
}

// ShoppingItemUpload is the wire shape of a shopping item's current state.
// ListID ties the item to its parent list; the server contract nests items
// under lists, so an item is only uploadable alongside its parent.
type ShoppingItemUpload struct {
	ID       string `json:"id" validate:"required"`
	ListID   string `json:"listId" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Checked  bool   `json:"isChecked"`
}

// ChoreUpload is the wire shape of a chore's current state.
type ChoreUpload struct {
	ID         string `json:"id" validate:"required"`
	Title      string `json:"title" validate:"required"`
	AssigneeID string `json:"assigneeId,omitempty"`
	DueDate    string `json:"dueDate,omitempty"`
	Completed  *bool  `json:"isCompleted,omitempty"`
}

// DeletionUpload asks the server to remove an entity.
type DeletionUpload struct {
	Type string `json:"type" validate:"required,oneof=recipe list item chore"`
	ID   string `json:"id" validate:"required"`
}

// SyncResponse represents the server's reconciliation report.
type SyncResponse struct {
	Status    string         `json:"status"` // "synced", "partial", "failed"
	Conflicts []SyncConflict `json:"conflicts,omitempty"`
}

// SyncConflict identifies a single entity the server refused to apply.
type SyncConflict struct {
	Type   string `json:"type"` // "recipe", "list", "chore"
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
