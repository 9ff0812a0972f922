// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRecipe(t *testing.T) {
	require.NoError(t, ValidateRecipe(&RecipeUpload{ID: "r1", Title: "Pasta"}))
	require.Error(t, ValidateRecipe(&RecipeUpload{Title: "Pasta"}), "id is required")
	require.Error(t, ValidateRecipe(&RecipeUpload{ID: "r1"}), "title is required")
}

func TestValidateItem(t *testing.T) {
	require.NoError(t, ValidateItem(&ShoppingItemUpload{ID: "i1", ListID: "l1", Name: "Milk", Quantity: 2}))
	require.Error(t, ValidateItem(&ShoppingItemUpload{ID: "i1", Name: "Milk"}), "listId is required")
	require.Error(t, ValidateItem(&ShoppingItemUpload{ID: "i1", ListID: "l1", Name: "Milk", Quantity: -1}))
}

func TestValidateListDivesIntoItems(t *testing.T) {
	list := &ShoppingListUpload{
		ID:   "l1",
		Name: "Groceries",
		Items: []ShoppingItemUpload{
			{ID: "i1", ListID: "l1", Name: "Milk", Quantity: 1},
		},
	}
	require.NoError(t, ValidateList(list))

	list.Items[0].Name = ""
	require.Error(t, ValidateList(list), "a bad nested item fails the list")
}

func TestValidateChore(t *testing.T) {
	require.NoError(t, ValidateChore(&ChoreUpload{ID: "c1", Title: "Dishes"}))
	require.Error(t, ValidateChore(&ChoreUpload{ID: "c1"}))
}

func TestValidateRequestDeletionTypes(t *testing.T) {
	req := &BatchSyncRequest{
		RequestID: "req-1",
		Deletions: []DeletionUpload{{Type: DeletionTypeRecipe, ID: "r1"}},
	}
	require.NoError(t, ValidateRequest(req))

	req.Deletions[0].Type = "household"
	require.Error(t, ValidateRequest(req), "deletion type is a closed set")
}

func TestBatchSyncRequestIsEmpty(t *testing.T) {
	require.True(t, (&BatchSyncRequest{RequestID: "req-1"}).IsEmpty())
	require.False(t, (&BatchSyncRequest{Chores: []ChoreUpload{{ID: "c1", Title: "Dishes"}}}).IsEmpty())
	require.False(t, (&BatchSyncRequest{Deletions: []DeletionUpload{{Type: "chore", ID: "c1"}}}).IsEmpty())
}
