// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"context"

	"github.com/jeranaias/morpheus-tui/internal/conversation"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/stream"
)

// Turn is one submitted message and its reply. It is owned by the
// coordinator; callers only observe it.
type Turn struct {
	id     uint64
	slots  conversation.Turn
	cancel context.CancelFunc
	done   chan struct{}

	// restore is the transcript before an edit; a failed regeneration
	// puts it back.
	restore []model.Message

	// Guarded by the coordinator's mutex.
	session *stream.Session
	err     error
}

// UserOrdinal is the ordinal of the submitted message.
func (t *Turn) UserOrdinal() int { return t.slots.UserOrdinal }

// AssistantOrdinal is the ordinal of the reply.
func (t *Turn) AssistantOrdinal() int { return t.slots.AssistantOrdinal }

// Done is closed once the turn has been finalized, stopped, or rolled back.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Err reports how the turn ended: nil on success, an ErrCancelled match when
// stopped, otherwise the failure that rolled it back. Valid after Done.
func (t *Turn) Err() error {
	<-t.done
	return t.err
}

// Wait blocks until the turn ends or ctx is done.
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
