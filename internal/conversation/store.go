// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTurnInFlight is returned when a turn is started while another is open.
	ErrTurnInFlight = errors.New("a reply is still streaming")

	// ErrNoTurn is returned when a delta or rollback has no open turn.
	ErrNoTurn = errors.New("no reply in flight")

	// ErrOrdinal is returned for an ordinal outside the conversation.
	ErrOrdinal = errors.New("message ordinal out of range")
)

// =============================================================================
// TURN
// =============================================================================

// Turn identifies the slots reserved for one request/reply exchange.
type Turn struct {
	UserOrdinal      int
	AssistantOrdinal int

	// Resumed is set when the user slot already existed (edit-and-regenerate),
	// so rolling back removes only the assistant slot.
	Resumed bool
}

// =============================================================================
// STORE
// =============================================================================

// Store is the ordered message list of the active conversation. At most one
// assistant message is in flight at a time. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []model.Message

	inflight *Turn
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	pending  strings.Builder
	received bool

	generation uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// AppendTurn reserves a user slot holding userText followed by an empty
// in-flight assistant slot.
func (s *Store) AppendTurn(userText string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		return Turn{}, ErrTurnInFlight
	}

	user := model.NewUserMessage(userText)
	user.Ordinal = len(s.messages)
	s.messages = append(s.messages, user)

	return s.openAssistantLocked(user.Ordinal, false), nil
}

// ResumeTurn reserves only an assistant slot after the last message, which
// must be a user message. Used to regenerate a reply after an edit.
func (s *Store) ResumeTurn() (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		return Turn{}, ErrTurnInFlight
	}
	n := len(s.messages)
	if n == 0 || !s.messages[n-1].IsUser() {
		return Turn{}, chaterr.New(chaterr.KindNotEditable, "no user message to answer")
	}
	return s.openAssistantLocked(n-1, true), nil
}

func (s *Store) openAssistantLocked(userOrdinal int, resumed bool) Turn {
	asst := model.NewAssistantMessage()
	asst.Ordinal = len(s.messages)
	s.messages = append(s.messages, asst)

	s.pending.Reset()
	s.received = false
	s.inflight = &Turn{
		UserOrdinal:      userOrdinal,
		AssistantOrdinal: asst.Ordinal,
		Resumed:          resumed,
	}
	return *s.inflight
}

// ApplyDelta appends text to the in-flight reply and merges annotations into
// it. Content is only ever appended.
func (s *Store) ApplyDelta(text string, ann *model.Annotations) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil {
		return ErrNoTurn
	}
	if text != "" {
		s.pending.WriteString(text)
		s.received = true
	}
	if ann != nil {
		s.messages[s.inflight.AssistantOrdinal].Annotations.Merge(*ann)
	}
	return nil
}

// FinalizeTurn closes the in-flight reply. When failed is true and no text
// ever arrived, the turn is rolled back instead and true is returned. A
// failed turn that did receive text keeps it as a partial reply.
func (s *Store) FinalizeTurn(failed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil {
		return false
	}
	if failed && !s.received {
		s.rollbackLocked()
		return true
	}

	msg := &s.messages[s.inflight.AssistantOrdinal]
	msg.Content = s.pending.String()
	msg.IsStreaming = false
	msg.Timestamp = time.Now()
	s.clearInflightLocked()
	return false
}

// RollbackTurn removes every slot reserved by the open turn, restoring the
// store to its state before AppendTurn or ResumeTurn.
func (s *Store) RollbackTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil {
		return ErrNoTurn
	}
	s.rollbackLocked()
	return nil
}

func (s *Store) rollbackLocked() {
	cut := s.inflight.AssistantOrdinal
	if !s.inflight.Resumed {
		cut = s.inflight.UserOrdinal
	}
	clear(s.messages[cut:])
	s.messages = s.messages[:cut]
	s.clearInflightLocked()
}

func (s *Store) clearInflightLocked() {
	s.inflight = nil
	s.pending.Reset()
	s.received = false
}

// ReplaceMessage rewrites the latest user message and discards everything
// after it. It fails with a NotEditable error, leaving the store untouched,
// if ordinal is not the latest user message or a reply is in flight.
func (s *Store) ReplaceMessage(ordinal int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		return chaterr.New(chaterr.KindNotEditable, "cannot edit while a reply is streaming")
	}
	if ordinal < 0 || ordinal >= len(s.messages) {
		return chaterr.Wrap(chaterr.KindNotEditable, "cannot edit message", ErrOrdinal)
	}
	if ordinal != s.lastUserLocked() {
		return chaterr.New(chaterr.KindNotEditable, "only the most recent message you sent can be edited")
	}

	s.messages[ordinal].Content = content
	s.messages[ordinal].Timestamp = time.Now()
	clear(s.messages[ordinal+1:])
	s.messages = s.messages[:ordinal+1]
	return nil
}

// LoadConversation replaces the whole list, keeping the given order and
// renumbering ordinals from zero. Any in-flight turn is discarded.
func (s *Store) LoadConversation(msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]model.Message, len(msgs))
	for i, m := range msgs {
		m = m.Clone()
		m.Ordinal = i
		m.IsStreaming = false
		s.messages[i] = m
	}
	s.clearInflightLocked()
	s.generation++
}

// Reset empties the store.
func (s *Store) Reset() {
	s.LoadConversation(nil)
}

// Generation changes every time the list is replaced wholesale.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// =============================================================================
// QUERIES
// =============================================================================

// Messages returns a copy of every message. The in-flight reply carries the
// text received so far.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := model.CloneMessages(s.messages)
	if s.inflight != nil {
		out[s.inflight.AssistantOrdinal].Content = s.pending.String()
	}
	return out
}

// Message returns a copy of the message at ordinal.
func (s *Store) Message(ordinal int) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ordinal < 0 || ordinal >= len(s.messages) {
		return model.Message{}, false
	}
	m := s.messages[ordinal].Clone()
	if s.inflight != nil && ordinal == s.inflight.AssistantOrdinal {
		m.Content = s.pending.String()
	}
	return m, true
}

// Len returns the number of messages, including an in-flight reply.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// InFlight returns the open turn, if any.
func (s *Store) InFlight() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.inflight == nil {
		return Turn{}, false
	}
	return *s.inflight, true
}

// Received reports whether the open turn has received any text.
func (s *Store) Received() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight != nil && s.received
}

// LastUserOrdinal returns the ordinal of the most recent user message, or -1.
func (s *Store) LastUserOrdinal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUserLocked()
}

func (s *Store) lastUserLocked() int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].IsUser() {
			return i
		}
	}
	return -1
}

// =============================================================================
// AUDIO
// =============================================================================

// MarkAudioEligible flags a finalized assistant message for narration.
func (s *Store) MarkAudioEligible(ordinal int, eligible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.settledAssistantLocked(ordinal)
	if err != nil {
		return err
	}
	m.AudioEligible = eligible
	return nil
}

// AttachAudio binds generated narration to an assistant message.
func (s *Store) AttachAudio(ordinal int, audioID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.settledAssistantLocked(ordinal)
	if err != nil {
		return err
	}
	m.Attachments.AudioRef = audioID
	return nil
}

func (s *Store) settledAssistantLocked(ordinal int) (*model.Message, error) {
	if ordinal < 0 || ordinal >= len(s.messages) {
		return nil, ErrOrdinal
	}
	if s.inflight != nil && ordinal == s.inflight.AssistantOrdinal {
		return nil, ErrTurnInFlight
	}
	m := &s.messages[ordinal]
	if !m.IsAssistant() {
		return nil, errors.New("message is not an assistant reply")
	}
	return m, nil
}
