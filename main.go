// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🍳 KitchenHub Sync - Offline Write Queue for Household Apps")
	fmt.Println("===========================================================")
	fmt.Println()
	fmt.Println("KitchenHub Sync keeps kitchen edits (recipes, shopping lists, chores)")
	fmt.Println("durable while the device is offline and drains them to the household hub")
	fmt.Println("as batched state uploads with retry, backoff, and conflict handling.")
	fmt.Println()

	fmt.Println("📦 Packages:")
	fmt.Println()
	fmt.Println("  syncqueue/ - durable pending-write queue, compaction, backoff,")
	fmt.Println("               payload builder, sync worker, checkpoints")
	fmt.Println("  syncwire/  - wire DTOs, payload validation, demo JWT tokens")
	fmt.Println()

	fmt.Println("📚 Available Examples:")
	fmt.Println()
	fmt.Println("1. 🥘 Kitchen Demo (examples/kitchen_demo/)")
	fmt.Println("   End-to-end offline editing session against an in-process mock hub")
	fmt.Println("   Features: SQLite-backed queue, coalesced edits, conflict retry,")
	fmt.Println("   request deduplication via durable checkpoints")
	fmt.Println("   Run: cd examples/kitchen_demo && go run .")
	fmt.Println()
}
