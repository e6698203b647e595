// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"context"
	"errors"

	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/stream"
)

// =============================================================================
// STATE
// =============================================================================

// State is the coordinator's position in a request/reply exchange.
type State int

const (
	// StateIdle accepts new input.
	StateIdle State = iota
	// StateSending has a request out and no response yet.
	StateSending
	// StateStreaming is receiving reply text.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage rejects a submit with no text. Nothing changes.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy rejects a submit while a reply is in progress or a
	// conversation is loading. Nothing changes.
	ErrBusy = errors.New("a reply is already in progress")

	// ErrSuperseded is returned by a load or audio request whose result
	// was discarded because the user moved on.
	ErrSuperseded = errors.New("superseded by a newer action")

	// ErrAudioDisabled is returned when no audio client is configured.
	ErrAudioDisabled = errors.New("audio generation is disabled")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Streamer opens streaming chat sessions.
type Streamer interface {
	Open(ctx context.Context, req stream.Request, token string) (*stream.Session, error)
}

// Directory is the remote conversation list.
type Directory interface {
	List(ctx context.Context) ([]model.ConversationSummary, error)
	Summaries() []model.ConversationSummary
	Lookup(id string) (model.ConversationSummary, bool)
	Upsert(s model.ConversationSummary)
	FetchMessages(ctx context.Context, id string) ([]model.Message, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	Recover(ctx context.Context) (int, error)
	Invalidate(id string)
}

// AudioGenerator requests narration for a reply.
type AudioGenerator interface {
	Generate(ctx context.Context, token, text string) (string, error)
}

// Classifier decides whether a finished reply is eligible for narration.
type Classifier interface {
	Eligible(msg model.Message) bool
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a consistent copy of everything a view needs to render.
type Snapshot struct {
	State          State
	Loading        bool
	ConversationID string
	Title          string
	Messages       []model.Message
	Conversations  []model.ConversationSummary
	LastError      error
}

// DisplayTitle returns the title or the placeholder for a new conversation.
func (s Snapshot) DisplayTitle() string {
	return model.ConversationSummary{Title: s.Title}.DisplayTitle()
}

// Busy reports whether new input would be rejected.
func (s Snapshot) Busy() bool {
	return s.State != StateIdle || s.Loading
}
