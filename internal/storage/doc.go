// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local state database.
//
// State lives in a single SQLite file (default ~/.morpheus/state.db)
// holding a key/value table. It only records client-side pointers such as
// the active conversation; transcripts stay on the server.
package storage
