// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one turn half with role, content, attachments and annotations
//   - Annotations: source agent and safety checks attached by the server
//   - SafetyCheck, RiskLevel: outcome of a server-side content check
//   - ConversationSummary: directory entry (id, title, last update)
//
// Messages are value types; use Clone or CloneMessages before handing
// them across goroutines so annotation maps are not shared.
package model
