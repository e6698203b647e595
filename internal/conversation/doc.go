// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the message list of the active conversation.
//
// A turn reserves a user slot and an in-flight assistant slot. Deltas append
// to the in-flight slot until the turn is finalized or rolled back; rollback
// is an exact inverse of the reservation, so a failed request never leaves
// an empty reply behind.
//
//	turn, _ := store.AppendTurn("tell me a story")
//	store.ApplyDelta("Once upon a time", nil)
//	store.FinalizeTurn(false)
package conversation
