// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across morpheus.
//
//   - AtomicWriteFile: crash-safe file writes for config and tokens
//   - TruncateRunes, TruncateWidth: UTF-8 and column aware truncation
//   - OneLine: whitespace collapsing for list previews
package util
