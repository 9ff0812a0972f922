// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncwire

import (
	"github.com/go-playground/validator/v10"
)

// Single validator instance shared by all payload checks.
var validate = validator.New()

// ValidateRecipe checks that a recipe snapshot is well-formed for upload.
func ValidateRecipe(r *RecipeUpload) error {
	return validate.Struct(r)
}

// ValidateList checks that a shopping list snapshot (including any nested
// items) is well-formed for upload.
func ValidateList(l *ShoppingListUpload) error {
	return validate.Struct(l)
}

// ValidateItem checks that a standalone shopping item snapshot is
// well-formed. Items are validated individually before nesting because a
// malformed item must be excluded without discarding its parent list.
func ValidateItem(i *ShoppingItemUpload) error {
	return validate.Struct(i)
}

// ValidateChore checks that a chore snapshot is well-formed for upload.
func ValidateChore(c *ChoreUpload) error {
	return validate.Struct(c)
}

// ValidateRequest checks a fully assembled batch request.
func ValidateRequest(req *BatchSyncRequest) error {
	return validate.Struct(req)
}
