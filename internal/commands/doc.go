// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the
// line-mode REPL and the full-screen chat view.
//
// # Key Types
//
//   - Registry: Command registry with all available commands
//   - Handler: Executes a command against an Env
//   - Invocation: one input line split into command and arguments
//   - Completer: Tab completion for commands and arguments
//
// # Built-in Commands
//
//   - /new, /list, /switch, /rename, /delete: manage conversations
//   - /edit: rewrite the last message and regenerate the reply
//   - /stop: stop the reply in progress
//   - /audio: request narration for a reply
//   - /help, /quit
//
// # Usage
//
//	reg := commands.NewRegistry()
//	res, err := reg.Execute(ctx, &commands.Env{Controller: coord}, "/switch 2")
package commands
