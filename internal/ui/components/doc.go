// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the reusable pieces of the full-screen chat view.

Each component is a plain struct with setters and a View method returning a
rendered string; none of them own a Bubble Tea update loop.

  - Header (header.go) - title bar with brand, conversation title and state.
  - StatusBar (statusbar.go) - bottom bar with state, last error and shortcuts.
  - CompletionPopup (completion.go) - slash command completion list.

All styling comes from the styles package so the components follow the
active theme.
*/
package components
