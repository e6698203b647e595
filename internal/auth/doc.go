// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies bearer tokens to the chat, directory and audio
// clients.
//
// Signing in happens elsewhere; this package only reads the resulting
// token from MORPHEUS_TOKEN or ~/.morpheus/token, rejects JWTs that have
// visibly expired, and notices when the token file disappears.
package auth
