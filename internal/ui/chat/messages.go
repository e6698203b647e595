// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/morpheus-tui/internal/commands"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// updateMsg means the coordinator changed and the view should re-read its
// snapshot.
type updateMsg struct{}

// restoredMsg reports the startup load of the previous conversation.
type restoredMsg struct {
	ok  bool
	err error
}

// commandResultMsg carries the outcome of a slash command, which may have
// made network calls.
type commandResultMsg struct {
	input string
	res   commands.Result
	err   error
}

// turnDoneMsg is sent when a reply the view started finishes.
type turnDoneMsg struct {
	err error
}
