// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the morpheus command line.
//
// The command tree is built with cobra. Every command shares the persistent
// flags in Options and builds its collaborators through NewApp, so the
// line-mode and full-screen front ends drive the same coordinator.
//
// # Commands
//
//   - (none), tui: full-screen chat
//   - chat: line-mode chat with history (liner)
//   - ask: one message, reply streamed to stdout
//   - conversations list|show|rename|delete|recover
//   - audio: narrate a reply, optionally download it
//   - signin, signout: manage the stored bearer token
//   - config show|get|set|keys|path
//   - version
//
// # Output and exit codes
//
// Commands that support --json write a JSONResponse envelope to stdout,
// errors included. Exit codes are listed in errors.go; scripts can rely on
// ExitAuth for an expired or missing token and ExitNetwork for an
// unreachable server.
//
// # Usage
//
//	os.Exit(cli.Execute(os.Args[1:]))
package cli
