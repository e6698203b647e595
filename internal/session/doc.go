// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists which conversation the user was in.
//
// The coordinator saves an ActiveState after every completed reply and on
// conversation switches, and loads it at startup so the previous
// conversation reopens. Signing out clears it.
//
//	kv, _ := storage.OpenKV(path)
//	store := session.NewKVStore(kv)
//	st, ok, err := store.Load(ctx)
package session
