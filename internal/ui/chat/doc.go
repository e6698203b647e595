// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the full-screen chat view.

The view owns no conversation state. It renders coordinator snapshots and
forwards input back to the coordinator:

  - Enter sends the input, or runs it as a slash command through the
    shared commands registry.
  - Esc stops a reply in progress; the partial text stays.
  - Tab completes commands and conversation numbers.

Coordinator change notifications arrive on arbitrary goroutines. They are
folded into at most DefaultMaxFPS redraws per second (streaming.go) so a
fast stream does not flood the terminal.

Finished replies are rendered as markdown with glamour; a reply that is
still streaming is shown as plain text with a cursor.

# Usage

	err := chat.Run(ctx, chat.Options{
		Coordinator: coord,
		Markdown:    true,
	})
*/
package chat
