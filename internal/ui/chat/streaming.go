// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// =============================================================================
// REDRAW PUMP
// =============================================================================

// DefaultMaxFPS caps redraws while a reply streams in.
const DefaultMaxFPS = 30

// updatePump turns coordinator change notifications into at most maxFPS
// updateMsgs per second. Notifications that arrive while a frame is
// pending are folded into it; the view always re-reads the full snapshot,
// so nothing is lost.
type updatePump struct {
	notify  chan struct{}
	limiter *rate.Limiter
}

func newUpdatePump(maxFPS int) *updatePump {
	if maxFPS <= 0 || maxFPS > 120 {
		maxFPS = DefaultMaxFPS
	}
	return &updatePump{
		notify:  make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(maxFPS)), 1),
	}
}

// poke never blocks; it is called from coordinator goroutines.
func (p *updatePump) poke() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// wait returns a command that delivers the next updateMsg. It must be
// re-armed after every updateMsg. It returns nil once ctx is done.
func (p *updatePump) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-p.notify:
		case <-ctx.Done():
			return nil
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil
		}
		select {
		case <-p.notify:
		default:
		}
		return updateMsg{}
	}
}
