// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio requests narration for finished replies and decides which
// replies qualify. Playback is left to external players.
package audio
