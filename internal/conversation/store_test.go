// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

func seeded(t *testing.T, pairs ...string) *Store {
	t.Helper()
	s := NewStore()
	for i := 0; i+1 < len(pairs); i += 2 {
		_, err := s.AppendTurn(pairs[i])
		require.NoError(t, err)
		require.NoError(t, s.ApplyDelta(pairs[i+1], nil))
		require.False(t, s.FinalizeTurn(false))
	}
	return s
}

func assertDense(t *testing.T, msgs []model.Message) {
	t.Helper()
	for i, m := range msgs {
		assert.Equal(t, i, m.Ordinal, "ordinal at index %d", i)
	}
}

// =============================================================================
// TURN LIFECYCLE TESTS
// =============================================================================

func TestStore_AppendApplyFinalize(t *testing.T) {
	s := NewStore()
	turn, err := s.AppendTurn("tell me a story")
	require.NoError(t, err)
	assert.Equal(t, Turn{UserOrdinal: 0, AssistantOrdinal: 1}, turn)

	require.NoError(t, s.ApplyDelta("Once upon", nil))
	require.NoError(t, s.ApplyDelta(" a time", &model.Annotations{SourceAgent: "storyteller"}))

	live, ok := s.Message(1)
	require.True(t, ok)
	assert.Equal(t, "Once upon a time", live.Content)
	assert.True(t, live.IsStreaming)

	assert.False(t, s.FinalizeTurn(false))
	_, inflight := s.InFlight()
	assert.False(t, inflight)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assertDense(t, msgs)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Once upon a time", msgs[1].Content)
	assert.Equal(t, "storyteller", msgs[1].Annotations.SourceAgent)
	assert.False(t, msgs[1].IsStreaming)
}

func TestStore_SecondTurnRejectedWhileInFlight(t *testing.T) {
	s := NewStore()
	_, err := s.AppendTurn("one")
	require.NoError(t, err)

	_, err = s.AppendTurn("two")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.Equal(t, 2, s.Len())
}

func TestStore_ApplyDeltaWithoutTurn(t *testing.T) {
	assert.ErrorIs(t, NewStore().ApplyDelta("x", nil), ErrNoTurn)
}

func TestStore_RollbackIsInverse(t *testing.T) {
	s := seeded(t, "hi", "hello")
	before := s.Messages()

	_, err := s.AppendTurn("again")
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta("partial", nil))
	require.NoError(t, s.RollbackTurn())

	assert.Equal(t, before, s.Messages())
	assert.ErrorIs(t, s.RollbackTurn(), ErrNoTurn)
}

func TestStore_FailedEmptyTurnRollsBack(t *testing.T) {
	s := seeded(t, "hi", "hello")

	_, err := s.AppendTurn("again")
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta("", &model.Annotations{SourceAgent: "coach"}))

	assert.True(t, s.FinalizeTurn(true))
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assertDense(t, msgs)
}

func TestStore_FailedPartialTurnKeepsContent(t *testing.T) {
	s := NewStore()
	_, err := s.AppendTurn("story please")
	require.NoError(t, err)
	require.NoError(t, s.ApplyDelta("Once upon", nil))

	assert.False(t, s.FinalizeTurn(true))
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Once upon", msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
}

func TestStore_AnnotationsMergeByKey(t *testing.T) {
	s := NewStore()
	_, err := s.AppendTurn("q")
	require.NoError(t, err)

	require.NoError(t, s.ApplyDelta("a", &model.Annotations{SafetyChecks: map[string]model.SafetyCheck{
		"safety": {Passed: true, RiskLevel: model.RiskLow},
	}}))
	require.NoError(t, s.ApplyDelta("b", &model.Annotations{SafetyChecks: map[string]model.SafetyCheck{
		"safety":  {Passed: false, RiskLevel: model.RiskHigh},
		"privacy": {Passed: true},
	}}))
	s.FinalizeTurn(false)

	m, _ := s.Message(1)
	assert.Equal(t, "ab", m.Content)
	assert.Len(t, m.Annotations.SafetyChecks, 2)
	assert.False(t, m.Annotations.SafetyChecks["safety"].Passed)
}

// =============================================================================
// EDIT TESTS
// =============================================================================

func TestStore_ReplaceLatestUserMessage(t *testing.T) {
	s := seeded(t, "first", "reply one", "second", "reply two")

	require.NoError(t, s.ReplaceMessage(2, "second, edited"))
	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "second, edited", msgs[2].Content)

	turn, err := s.ResumeTurn()
	require.NoError(t, err)
	assert.Equal(t, Turn{UserOrdinal: 2, AssistantOrdinal: 3, Resumed: true}, turn)

	// Rolling back a resumed turn keeps the edited user message.
	require.NoError(t, s.RollbackTurn())
	assert.Equal(t, msgs, s.Messages())
}

func TestStore_ReplaceRejected(t *testing.T) {
	tests := []struct {
		name    string
		ordinal int
		open    bool
	}{
		{"earlier user message", 0, false},
		{"assistant message", 3, false},
		{"out of range", 9, false},
		{"negative", -1, false},
		{"reply in flight", 2, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := seeded(t, "first", "reply one", "second", "reply two")
			if tc.open {
				require.NoError(t, s.ReplaceMessage(2, "second"))
				_, err := s.ResumeTurn()
				require.NoError(t, err)
			}
			before := s.Messages()

			err := s.ReplaceMessage(tc.ordinal, "changed")
			assert.ErrorIs(t, err, chaterr.ErrNotEditable)
			assert.Equal(t, before, s.Messages())
		})
	}
}

func TestStore_ResumeNeedsTrailingUserMessage(t *testing.T) {
	s := seeded(t, "q", "a")
	_, err := s.ResumeTurn()
	assert.ErrorIs(t, err, chaterr.ErrNotEditable)
}

// =============================================================================
// LOAD AND AUDIO TESTS
// =============================================================================

func TestStore_LoadRenumbersAndDiscardsTurn(t *testing.T) {
	s := NewStore()
	_, err := s.AppendTurn("pending")
	require.NoError(t, err)
	gen := s.Generation()

	s.LoadConversation([]model.Message{
		{Ordinal: 7, Role: model.RoleUser, Content: "a"},
		{Ordinal: 3, Role: model.RoleAssistant, Content: "b", IsStreaming: true},
	})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assertDense(t, msgs)
	assert.Equal(t, "a", msgs[0].Content)
	assert.False(t, msgs[1].IsStreaming)
	_, inflight := s.InFlight()
	assert.False(t, inflight)
	assert.NotEqual(t, gen, s.Generation())

	s.Reset()
	assert.Zero(t, s.Len())
}

func TestStore_AudioAttachments(t *testing.T) {
	s := seeded(t, "tell me a story", "Once upon a time")

	require.NoError(t, s.MarkAudioEligible(1, true))
	require.NoError(t, s.AttachAudio(1, "aud-1"))
	m, _ := s.Message(1)
	assert.True(t, m.AudioEligible)
	assert.Equal(t, "aud-1", m.Attachments.AudioRef)

	assert.Error(t, s.AttachAudio(0, "aud-2"))
	assert.ErrorIs(t, s.AttachAudio(5, "aud-2"), ErrOrdinal)
}

func TestStore_ConcurrentReadsDuringStreaming(t *testing.T) {
	s := NewStore()
	_, err := s.AppendTurn("q")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.ApplyDelta("x", nil)
		}
	}()
	for i := 0; i < 200; i++ {
		_ = s.Messages()
	}
	wg.Wait()

	s.FinalizeTurn(false)
	m, _ := s.Message(1)
	assert.Len(t, m.Content, 200)
}
