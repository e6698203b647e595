// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package directory lists, loads, renames and deletes server-side
// conversations.
//
// Client speaks the REST endpoints; Directory layers the sorted summary
// list and an LRU of fetched message lists on top of it.
package directory
