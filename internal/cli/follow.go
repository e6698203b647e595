// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"

	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// follower prints a reply as it streams in. It is woken by coordinator
// updates and reads the transcript instead of the raw stream, so what it
// prints is exactly what the store holds.
type follower struct {
	coord  *coordinator.Coordinator
	notify chan struct{}
}

func newFollower(c *coordinator.Coordinator) *follower {
	f := &follower{coord: c, notify: make(chan struct{}, 1)}
	c.OnUpdate(f.poke)
	return f
}

func (f *follower) poke() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Follow writes the reply of turn to w as it grows, and returns the final
// message once the turn ends. A failed turn is rolled back, so the zero
// Message comes back with its error; a stopped one keeps its partial text.
func (f *follower) Follow(ctx context.Context, turn *coordinator.Turn, w io.Writer) (model.Message, error) {
	ordinal := turn.AssistantOrdinal()
	written := 0

	flush := func() model.Message {
		msg, ok := messageAt(f.coord.Messages(), ordinal)
		if !ok {
			return model.Message{}
		}
		if len(msg.Content) > written {
			_, _ = io.WriteString(w, msg.Content[written:])
			written = len(msg.Content)
		}
		return msg
	}

	for {
		select {
		case <-f.notify:
			flush()
		case <-turn.Done():
			return flush(), turn.Err()
		case <-ctx.Done():
			return flush(), ctx.Err()
		}
	}
}

// Wait blocks until turn ends and returns the final message.
func (f *follower) Wait(ctx context.Context, turn *coordinator.Turn) (model.Message, error) {
	return f.Follow(ctx, turn, io.Discard)
}

func messageAt(msgs []model.Message, ordinal int) (model.Message, bool) {
	for _, m := range msgs {
		if m.Ordinal == ordinal {
			return m, true
		}
	}
	return model.Message{}, false
}
