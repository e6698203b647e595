// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/morpheus-tui/internal/auth"
	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/conversation"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/session"
	"github.com/jeranaias/morpheus-tui/internal/stream"
)

// DefaultRefreshTimeout bounds background directory refreshes.
const DefaultRefreshTimeout = 30 * time.Second

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the coordinator to its collaborators. Streamer, Directory
// and Tokens are required.
type Options struct {
	Streamer   Streamer
	Directory  Directory
	Tokens     auth.TokenSource
	State      session.Store
	Audio      AudioGenerator
	Classifier Classifier

	// AutoAudio requests narration as soon as an eligible reply completes.
	AutoAudio bool

	RefreshTimeout time.Duration
	Logger         zerolog.Logger
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator owns the active conversation. Every mutation goes through its
// mutex; stream deltas are applied by one consumer goroutine per turn and
// dropped once that turn is no longer current.
type Coordinator struct {
	opts  Options
	log   zerolog.Logger
	store *conversation.Store

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	convID  string
	title   string
	turn    *Turn
	turnSeq uint64
	loadSeq uint64
	loading bool
	lastErr error
	closed  bool

	lmu       sync.Mutex
	listeners []func()
}

// New creates a coordinator with an empty conversation.
func New(opts Options) (*Coordinator, error) {
	if opts.Streamer == nil {
		return nil, errors.New("coordinator: streamer is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("coordinator: directory is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("coordinator: token source is required")
	}
	if opts.State == nil {
		opts.State = session.NewMemoryStore()
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		opts:   opts,
		log:    opts.Logger.With().Str("component", "coordinator").Logger(),
		store:  conversation.NewStore(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Close stops any active turn and waits for background work to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	stopped := c.detachLocked(chaterr.ErrCancelled, true)
	c.mu.Unlock()
	c.release(stopped)

	c.cancel()
	c.bg.Wait()
}

// OnUpdate registers fn to be called after every visible state change.
// Callbacks run on the goroutine that made the change and must not block.
func (c *Coordinator) OnUpdate(fn func()) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, fn)
	c.lmu.Unlock()
}

func (c *Coordinator) changed() {
	c.lmu.Lock()
	listeners := append([]func(){}, c.listeners...)
	c.lmu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Snapshot returns a consistent copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:          c.state,
		Loading:        c.loading,
		ConversationID: c.convID,
		Title:          c.title,
		Messages:       c.store.Messages(),
		Conversations:  c.opts.Directory.Summaries(),
		LastError:      c.lastErr,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConversationID returns the active conversation id, empty until the server
// has assigned one.
func (c *Coordinator) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convID
}

// LastError returns the error that ended the most recent failed action.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearError dismisses the last error.
func (c *Coordinator) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.changed()
}

// Messages returns a copy of the transcript.
func (c *Coordinator) Messages() []model.Message {
	return c.store.Messages()
}

// =============================================================================
// TURNS
// =============================================================================

// Submit sends text as a new user message. Empty text and a busy
// coordinator are rejected without changing anything.
func (c *Coordinator) Submit(text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if err := c.acceptingLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	slots, err := c.store.AppendTurn(text)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	t, err := c.startLocked(slots, text, nil)
	c.mu.Unlock()

	c.changed()
	return t, err
}

// Edit rewrites the latest user message and regenerates the reply. Every
// message after it is discarded first. If the regenerated reply fails the
// transcript from before the edit is restored, original reply included.
// Stopping the regeneration keeps the edit.
func (c *Coordinator) Edit(ordinal int, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, chaterr.New(chaterr.KindNotEditable, "cannot edit while a reply is streaming")
	}
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	before := c.store.Messages()
	if err := c.store.ReplaceMessage(ordinal, text); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	slots, err := c.store.ResumeTurn()
	if err != nil {
		c.store.LoadConversation(before)
		c.mu.Unlock()
		return nil, err
	}
	t, err := c.startLocked(slots, text, before)
	c.mu.Unlock()

	c.changed()
	return t, err
}

func (c *Coordinator) acceptingLocked() error {
	if c.closed {
		return chaterr.ErrCancelled
	}
	if c.state != StateIdle || c.loading {
		return ErrBusy
	}
	return nil
}

// startLocked moves to Sending and opens the stream in the background. A
// missing credential rolls the reserved turn back before anything is sent.
// restore is the pre-edit transcript, nil for a plain submit.
func (c *Coordinator) startLocked(slots conversation.Turn, text string, restore []model.Message) (*Turn, error) {
	token, err := c.opts.Tokens.Token()
	if err != nil {
		c.undoLocked(restore)
		c.lastErr = err
		return nil, err
	}

	c.turnSeq++
	ctx, cancel := context.WithCancel(c.ctx)
	t := &Turn{
		id:     c.turnSeq,
		slots:   slots,
		cancel:  cancel,
		done:    make(chan struct{}),
		restore: restore,
	}
	c.turn = t
	c.state = StateSending
	c.lastErr = nil

	req := stream.Request{Message: text, ConversationID: c.convID}
	c.log.Debug().Uint64("turn", t.id).Str("conversation", req.ConversationID).Msg("sending")
	go c.run(ctx, t, req, token)
	return t, nil
}

func (c *Coordinator) run(ctx context.Context, t *Turn, req stream.Request, token string) {
	s, err := c.opts.Streamer.Open(ctx, req, token)
	if err != nil {
		c.finish(t, err)
		return
	}

	c.mu.Lock()
	if c.turn != t {
		c.mu.Unlock()
		s.Cancel()
		return
	}
	t.session = s
	c.state = StateStreaming
	c.mu.Unlock()
	c.changed()

	for d := range s.Events() {
		c.apply(t, d)
	}
	<-s.Done()
	if n := s.Anomalies(); n > 0 {
		c.log.Debug().Int("anomalies", n).Str("request_id", s.RequestID()).Msg("stream had undecodable records")
	}
	c.finish(t, s.Err())
}

func (c *Coordinator) apply(t *Turn, d stream.Delta) {
	c.mu.Lock()
	if c.turn != t {
		c.mu.Unlock()
		return
	}

	var retrofitted bool
	if md := d.Metadata; md != nil {
		retrofitted = c.retrofitLocked(*md)
	}
	if d.Text != "" || d.Annotations != nil {
		if err := c.store.ApplyDelta(d.Text, d.Annotations); err != nil {
			c.log.Warn().Err(err).Uint64("turn", t.id).Msg("dropping delta")
		}
	}
	summary := model.ConversationSummary{ID: c.convID, Title: c.title, UpdatedAt: time.Now()}
	c.mu.Unlock()

	if retrofitted && summary.ID != "" {
		c.opts.Directory.Upsert(summary)
	}
	c.changed()
}

// retrofitLocked records a conversation id or title the server reported
// mid-stream. The first value seen wins; later ones are ignored.
func (c *Coordinator) retrofitLocked(md stream.Metadata) bool {
	var changed bool
	if md.ConversationID != "" {
		switch {
		case c.convID == "":
			c.convID = md.ConversationID
			changed = true
			c.log.Info().Str("conversation", c.convID).Msg("conversation id assigned")
		case c.convID != md.ConversationID:
			c.log.Debug().Str("have", c.convID).Str("got", md.ConversationID).Msg("ignoring conflicting conversation id")
		}
	}
	if md.ConversationTitle != "" && c.title == "" {
		c.title = md.ConversationTitle
		changed = true
	}
	return changed
}

// finish ends t with the stream's terminal error. It is a no-op if t was
// already stopped or superseded.
func (c *Coordinator) finish(t *Turn, err error) {
	c.mu.Lock()
	if c.turn != t {
		c.mu.Unlock()
		return
	}
	c.turn = nil
	c.state = StateIdle
	t.err = err

	var (
		ordinal  = t.slots.AssistantOrdinal
		eligible bool
		active   session.ActiveState
	)
	if err == nil {
		c.store.FinalizeTurn(false)
		if msg, ok := c.store.Message(ordinal); ok && c.opts.Classifier != nil {
			eligible = c.opts.Classifier.Eligible(msg)
			if merr := c.store.MarkAudioEligible(ordinal, eligible); merr != nil {
				c.log.Warn().Err(merr).Int("ordinal", ordinal).Msg("could not flag reply")
			}
		}
		active = session.ActiveState{ConversationID: c.convID, Title: c.title, UpdatedAt: time.Now()}
	} else {
		c.undoLocked(t.restore)
		c.lastErr = err
		c.log.Warn().Err(err).Uint64("turn", t.id).Str("kind", chaterr.KindOf(err).String()).Msg("turn failed")
	}
	c.mu.Unlock()
	t.cancel()

	if err == nil && active.ConversationID != "" {
		c.persist(active)
	}
	close(t.done)
	c.changed()

	if err != nil {
		return
	}
	if active.ConversationID != "" {
		c.opts.Directory.Invalidate(active.ConversationID)
		c.refreshInBackground()
	}
	if eligible && c.opts.AutoAudio && c.opts.Audio != nil {
		c.background(func(ctx context.Context) {
			if _, err := c.GenerateAudio(ctx, ordinal); err != nil && !errors.Is(err, ErrSuperseded) {
				c.log.Warn().Err(err).Int("ordinal", ordinal).Msg("automatic narration failed")
			}
		})
	}
}

// undoLocked removes a failed turn, or puts back the pre-edit transcript.
func (c *Coordinator) undoLocked(restore []model.Message) {
	if restore != nil {
		c.store.LoadConversation(restore)
		return
	}
	_ = c.store.RollbackTurn()
}

// Stop cancels the active turn, keeping whatever text already arrived. A
// reply that never received any text is removed. It reports whether a turn
// was stopped.
//
// The server stores the turn before it streams, so a kept partial reply
// gets the same bookkeeping as a completed one: the active pointer is
// saved, the cached transcript is dropped and the list is refreshed.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	t := c.detachLocked(chaterr.ErrCancelled, true)
	var active session.ActiveState
	if t != nil {
		if _, kept := c.store.Message(t.slots.AssistantOrdinal); kept && c.convID != "" {
			active = session.ActiveState{ConversationID: c.convID, Title: c.title, UpdatedAt: time.Now()}
		}
	}
	c.mu.Unlock()
	if t == nil {
		return false
	}
	c.release(t)

	if active.ConversationID != "" {
		c.persist(active)
		c.opts.Directory.Invalidate(active.ConversationID)
		c.refreshInBackground()
	}
	c.changed()
	return true
}

// detachLocked makes the active turn non-current so no further deltas are
// applied. With keep set the partial reply survives; otherwise the caller
// is about to replace the transcript anyway.
func (c *Coordinator) detachLocked(reason error, keep bool) *Turn {
	t := c.turn
	if t == nil {
		return nil
	}
	c.turn = nil
	c.state = StateIdle
	t.err = reason
	if keep {
		c.store.FinalizeTurn(true)
	} else {
		_ = c.store.RollbackTurn()
	}
	return t
}

// release aborts the network side of a detached turn and wakes its waiters.
func (c *Coordinator) release(t *Turn) {
	if t == nil {
		return
	}
	t.cancel()
	c.mu.Lock()
	s := t.session
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
	close(t.done)
	c.log.Debug().Uint64("turn", t.id).Msg("turn stopped")
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation stops any active turn and starts an empty conversation.
func (c *Coordinator) NewConversation() {
	c.mu.Lock()
	t := c.detachLocked(chaterr.ErrCancelled, false)
	c.loadSeq++
	c.loading = false
	c.store.Reset()
	c.convID = ""
	c.title = ""
	c.lastErr = nil
	c.mu.Unlock()

	c.release(t)
	c.clearPersisted()
	c.changed()
}

// SwitchConversation cancels any active turn and loads conversation id. If
// the server no longer knows the id, one recovery pass is attempted before
// the failure is surfaced.
func (c *Coordinator) SwitchConversation(ctx context.Context, id string) error {
	if id == "" {
		return chaterr.New(chaterr.KindNotFound, "no conversation selected")
	}

	c.mu.Lock()
	t := c.detachLocked(chaterr.ErrCancelled, false)
	c.loadSeq++
	seq := c.loadSeq
	c.loading = true
	c.mu.Unlock()
	c.release(t)
	c.changed()

	msgs, err := c.loadWithRecovery(ctx, id)

	c.mu.Lock()
	if c.loadSeq != seq {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.loading = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.changed()
		return err
	}
	c.store.LoadConversation(msgs)
	c.convID = id
	c.title = ""
	if s, ok := c.opts.Directory.Lookup(id); ok {
		c.title = s.Title
	}
	c.lastErr = nil
	active := session.ActiveState{ConversationID: id, Title: c.title, UpdatedAt: time.Now()}
	c.mu.Unlock()

	c.persist(active)
	c.changed()
	return nil
}

// loadWithRecovery fetches id, and on NotFound runs the recovery endpoint
// once. Only if it repaired something is the list refreshed and the fetch
// retried, exactly once.
func (c *Coordinator) loadWithRecovery(ctx context.Context, id string) ([]model.Message, error) {
	msgs, err := c.opts.Directory.FetchMessages(ctx, id)
	if err == nil || !chaterr.IsNotFound(err) {
		return msgs, err
	}

	log := c.log.With().Str("conversation", id).Logger()
	log.Warn().Msg("conversation not found, attempting recovery")

	recovered, rerr := c.opts.Directory.Recover(ctx)
	if rerr != nil {
		log.Warn().Err(rerr).Msg("recovery failed")
		return nil, err
	}
	if recovered <= 0 {
		return nil, err
	}
	if _, lerr := c.opts.Directory.List(ctx); lerr != nil {
		log.Warn().Err(lerr).Msg("refresh after recovery failed")
	}
	msgs, err = c.opts.Directory.FetchMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("after recovering %d conversations: %w", recovered, err)
	}
	return msgs, nil
}

// Restore reopens the conversation that was active when the client last
// exited. A pointer to a conversation the server no longer has is dropped
// and the client starts fresh.
func (c *Coordinator) Restore(ctx context.Context) (bool, error) {
	st, ok, err := c.opts.State.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load session state: %w", err)
	}
	if !ok {
		return false, nil
	}

	err = c.SwitchConversation(ctx, st.ConversationID)
	switch {
	case err == nil:
		return true, nil
	case chaterr.IsNotFound(err):
		c.log.Warn().Str("conversation", st.ConversationID).Msg("saved conversation is gone, starting fresh")
		c.NewConversation()
		return false, nil
	default:
		return false, err
	}
}

// Refresh reloads the conversation list.
func (c *Coordinator) Refresh(ctx context.Context) ([]model.ConversationSummary, error) {
	list, err := c.opts.Directory.List(ctx)
	c.changed()
	return list, err
}

// Rename retitles a conversation on the server.
func (c *Coordinator) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is empty")
	}
	if err := c.opts.Directory.Rename(ctx, id, title); err != nil {
		return err
	}

	c.mu.Lock()
	var active session.ActiveState
	if id == c.convID {
		c.title = title
		active = session.ActiveState{ConversationID: id, Title: title, UpdatedAt: time.Now()}
	}
	c.mu.Unlock()

	if !active.IsZero() {
		c.persist(active)
	}
	c.changed()
	return nil
}

// Delete removes a conversation on the server. Deleting the active
// conversation starts a new one.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if err := c.opts.Directory.Delete(ctx, id); err != nil {
		return err
	}
	if c.ConversationID() == id {
		c.NewConversation()
		return nil
	}
	c.changed()
	return nil
}

// SignOut stops any active turn, forgets the active conversation and clears
// the persisted pointer. Removing the credential itself is the caller's job.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mu.Lock()
	t := c.detachLocked(chaterr.ErrCancelled, false)
	c.loadSeq++
	c.loading = false
	c.store.Reset()
	c.convID = ""
	c.title = ""
	c.lastErr = nil
	c.mu.Unlock()

	c.release(t)
	err := c.opts.State.Clear(ctx)
	c.changed()
	return err
}

// =============================================================================
// AUDIO
// =============================================================================

// GenerateAudio requests narration for the assistant message at ordinal and
// attaches the returned id. A message that already has audio returns its
// existing id. The id is discarded if the transcript changed meanwhile.
func (c *Coordinator) GenerateAudio(ctx context.Context, ordinal int) (string, error) {
	if c.opts.Audio == nil {
		return "", ErrAudioDisabled
	}

	c.mu.Lock()
	msg, ok := c.store.Message(ordinal)
	gen := c.store.Generation()
	convID := c.convID
	c.mu.Unlock()

	switch {
	case !ok:
		return "", conversation.ErrOrdinal
	case !msg.IsAssistant():
		return "", errors.New("only replies can be narrated")
	case msg.IsStreaming:
		return "", conversation.ErrTurnInFlight
	case msg.HasAudio():
		return msg.Attachments.AudioRef, nil
	case msg.IsEmpty():
		return "", errors.New("reply is empty")
	}

	token, err := c.opts.Tokens.Token()
	if err != nil {
		return "", err
	}
	id, err := c.opts.Audio.Generate(ctx, token, msg.Content)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	current, ok := c.store.Message(ordinal)
	if c.store.Generation() != gen || !ok || current.Content != msg.Content {
		c.mu.Unlock()
		return id, ErrSuperseded
	}
	err = c.store.AttachAudio(ordinal, id)
	c.mu.Unlock()
	if err != nil {
		return id, err
	}

	if convID != "" {
		c.opts.Directory.Invalidate(convID)
	}
	c.log.Info().Str("audio_id", id).Int("ordinal", ordinal).Msg("narration attached")
	c.changed()
	return id, nil
}

// =============================================================================
// BACKGROUND WORK
// =============================================================================

func (c *Coordinator) background(fn func(ctx context.Context)) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.RefreshTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Coordinator) refreshInBackground() {
	c.background(func(ctx context.Context) {
		if _, err := c.opts.Directory.List(ctx); err != nil {
			c.log.Debug().Err(err).Msg("background refresh failed")
			return
		}
		c.changed()
	})
}

func (c *Coordinator) persist(active session.ActiveState) {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RefreshTimeout)
	defer cancel()
	if err := c.opts.State.Save(ctx, active); err != nil {
		c.log.Warn().Err(err).Msg("could not save session state")
	}
}

func (c *Coordinator) clearPersisted() {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RefreshTimeout)
	defer cancel()
	if err := c.opts.State.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("could not clear session state")
	}
}
