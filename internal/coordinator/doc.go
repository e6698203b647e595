// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coordinator drives a conversation from user input to a finished
// reply.
//
// The Coordinator moves between three states:
//
//	Idle --Submit--> Sending --stream opened--> Streaming --done--> Idle
//
// Only one reply may be in progress; Submit while busy fails with ErrBusy
// and changes nothing. A reply that fails is rolled back so the transcript
// looks exactly as it did before Submit. Stop keeps whatever text already
// arrived. Switching conversations cancels the active reply first.
//
// Once a reply completes it is classified for narration, the active
// conversation is saved, and the conversation list is refreshed in the
// background.
package coordinator
