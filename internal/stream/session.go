// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// DELTA
// =============================================================================

// Metadata identifies the server-side conversation a stream belongs to.
type Metadata struct {
	ConversationID    string
	ConversationTitle string
}

// Delta is one increment of an assistant reply.
type Delta struct {
	Text        string
	Metadata    *Metadata
	Annotations *model.Annotations
}

// Empty reports whether the delta carries nothing at all.
func (d Delta) Empty() bool {
	return d.Text == "" && d.Metadata == nil && d.Annotations == nil
}

// DeltaFromRecord converts a decoded record into a delta. Newline-terminated
// literal lines get their newline back so plain-text replies keep their
// line breaks.
func DeltaFromRecord(rec Record) Delta {
	if rec.Literal() {
		text := rec.Text
		if rec.Terminated {
			text += "\n"
		}
		return Delta{Text: text}
	}

	d := Delta{Text: rec.Text}
	if rec.Data.ConversationID != "" || rec.Data.ConversationTitle != "" {
		d.Metadata = &Metadata{
			ConversationID:    rec.Data.ConversationID,
			ConversationTitle: rec.Data.ConversationTitle,
		}
	}
	if rec.Data.Agent != "" || len(rec.Checks) > 0 {
		d.Annotations = &model.Annotations{
			SourceAgent:  rec.Data.Agent,
			SafetyChecks: rec.Checks,
		}
	}
	return d
}

// =============================================================================
// SESSION
// =============================================================================

// Session is a single in-flight streaming response. Deltas are delivered in
// arrival order to exactly one consumer, through Events or Each.
type Session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	body      io.ReadCloser
	events    chan Delta
	done      chan struct{}
	requestID string
	log       zerolog.Logger

	cancelled  atomic.Bool
	cancelOnce sync.Once

	// sendMu orders a delta send against Cancel draining the buffer.
	sendMu sync.Mutex

	mu        sync.Mutex
	err       error
	anomalies int
}

func newSession(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, buffer int, requestID string, log zerolog.Logger) *Session {
	return &Session{
		ctx:       ctx,
		cancel:    cancel,
		body:      body,
		events:    make(chan Delta, buffer),
		done:      make(chan struct{}),
		requestID: requestID,
		log:       log,
	}
}

// RequestID returns the X-Request-ID sent with the request.
func (s *Session) RequestID() string { return s.requestID }

// Events returns the delta channel. It is closed when the session finishes,
// after which Err reports the outcome. Cancel discards deltas still
// buffered, so nothing is received after Cancel returns; a receive already
// in progress on another goroutine may still win one, and readers that
// race Cancel should check Cancelled.
func (s *Session) Events() <-chan Delta { return s.events }

// Done is closed exactly once when the session has finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns nil after a clean end of stream, an ErrCancelled match after
// Cancel, or the failure that ended the stream. It is only meaningful once
// Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Anomalies returns the number of malformed JSON lines seen.
func (s *Session) Anomalies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anomalies
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Cancel aborts the request and stops delivery. Safe to call any number of
// times, from any goroutine, before or after the session finishes.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() {
		select {
		case <-s.done:
			// Finished already; keep the recorded outcome.
			return
		default:
		}
		s.cancelled.Store(true)
		s.cancel()
		_ = s.body.Close()

		s.sendMu.Lock()
		defer s.sendMu.Unlock()
		for {
			select {
			case _, ok := <-s.events:
				if !ok {
					return
				}
			default:
				return
			}
		}
	})
}

// Each calls fn synchronously for every delta until the stream ends and
// returns Err. fn is never invoked after Cancel.
func (s *Session) Each(fn func(Delta)) error {
	for d := range s.events {
		if s.cancelled.Load() {
			continue
		}
		fn(d)
	}
	return s.Err()
}

// Wait blocks until the session finishes and returns Err.
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Session) pump() {
	reader := NewReader(s.body, s.log)
	var err error

	defer func() {
		s.mu.Lock()
		s.err = err
		s.anomalies = reader.Anomalies()
		s.mu.Unlock()

		close(s.events)
		close(s.done)
		s.cancel()
		_ = s.body.Close()

		ev := s.log.Debug().Int("anomalies", reader.Anomalies())
		if err != nil {
			ev = ev.AnErr("error", err)
		}
		ev.Msg("stream finished")
	}()

	for {
		rec, rerr := reader.Next()
		if rerr == io.EOF {
			if s.aborted() {
				err = s.cancelErr()
			}
			return
		}
		if rerr != nil {
			if s.aborted() {
				err = s.cancelErr()
			} else {
				err = chaterr.Wrap(chaterr.KindStreamUnavailable, "stream interrupted", rerr)
			}
			return
		}

		d := DeltaFromRecord(rec)
		if d.Empty() {
			continue
		}

		if !s.send(d) {
			err = s.cancelErr()
			return
		}
	}
}

// send delivers d unless the session was aborted first.
func (s *Session) send(d Delta) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.aborted() {
		return false
	}
	select {
	case s.events <- d:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) aborted() bool {
	return s.cancelled.Load() || s.ctx.Err() != nil
}

func (s *Session) cancelErr() error {
	if s.cancelled.Load() {
		return chaterr.ErrCancelled
	}
	return chaterr.Wrap(chaterr.KindCancelled, "stream cancelled", s.ctx.Err())
}
