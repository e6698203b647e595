// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// FAKE COORDINATOR
// =============================================================================

type fakeCoord struct {
	mu        sync.Mutex
	snap      coordinator.Snapshot
	submitted []string
	submitErr error
	stopped   int
	newConv   int
	restored  int
	cleared   int
	listeners []func()
}

func (f *fakeCoord) Snapshot() coordinator.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeCoord) set(fn func(s *coordinator.Snapshot)) {
	f.mu.Lock()
	fn(&f.snap)
	listeners := f.listeners
	f.mu.Unlock()
	for _, l := range listeners {
		l()
	}
}

func (f *fakeCoord) OnUpdate(fn func()) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *fakeCoord) Submit(text string) (*coordinator.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, text)
	return nil, nil
}

func (f *fakeCoord) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap.State == coordinator.StateIdle {
		return false
	}
	f.stopped++
	f.snap.State = coordinator.StateIdle
	return true
}

func (f *fakeCoord) NewConversation() {
	f.mu.Lock()
	f.newConv++
	f.snap.Messages = nil
	f.snap.ConversationID = ""
	f.mu.Unlock()
}

func (f *fakeCoord) Restore(context.Context) (bool, error) {
	f.mu.Lock()
	f.restored++
	f.mu.Unlock()
	return false, nil
}

func (f *fakeCoord) ClearError() {
	f.mu.Lock()
	f.cleared++
	f.snap.LastError = nil
	f.mu.Unlock()
}

func (f *fakeCoord) Refresh(context.Context) ([]model.ConversationSummary, error) {
	return f.Snapshot().Conversations, nil
}

func (f *fakeCoord) SwitchConversation(context.Context, string) error { return nil }
func (f *fakeCoord) Rename(context.Context, string, string) error { return nil }
func (f *fakeCoord) Delete(context.Context, string) error { return nil }
func (f *fakeCoord) Edit(int, string) (*coordinator.Turn, error) { return nil, nil }
func (f *fakeCoord) GenerateAudio(context.Context, int) (string, error) { return "a1", nil }

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, f *fakeCoord) Model {
	t.Helper()
	m := New(context.Background(), Options{Coordinator: f, Theme: "dark"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(m Model, s string) Model {
	m, _ = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func keyMsg(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

// =============================================================================
// TESTS
// =============================================================================

func TestSubmit_SendsTextAndClearsInput(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	m = typeText(m, "tell me a story")
	m, _ = send(m, keyMsg(tea.KeyEnter))

	assert.Equal(t, []string{"tell me a story"}, f.submitted)
	assert.Empty(t, m.input.Value())
}

func TestSubmit_BlankInputIgnored(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	m = typeText(m, "   ")
	_, cmd := send(m, keyMsg(tea.KeyEnter))

	assert.Nil(t, cmd)
	assert.Empty(t, f.submitted)
}

func TestSubmit_BusyKeepsInputAndShowsNotice(t *testing.T) {
	f := &fakeCoord{submitErr: coordinator.ErrBusy}
	m := newTestModel(t, f)

	m = typeText(m, "again")
	m, _ = send(m, keyMsg(tea.KeyEnter))

	assert.Equal(t, "again", m.input.Value())
	assert.Contains(t, m.View(), "wait for the reply")
}

func TestSubmit_FailureKeepsInputAndShowsError(t *testing.T) {
	f := &fakeCoord{}
	f.submitErr = chaterr.ErrUnauthorized
	f.snap.LastError = chaterr.ErrUnauthorized
	m := newTestModel(t, f)

	m = typeText(m, "hello")
	m, _ = send(m, keyMsg(tea.KeyEnter))

	assert.Equal(t, "hello", m.input.Value())
	assert.Contains(t, m.View(), "Unauthorized")
}

func TestSlashCommand_RunsThroughRegistry(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	m = typeText(m, "/help")
	m, cmd := send(m, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Empty(t, f.submitted)

	msg := cmd()
	res, ok := msg.(commandResultMsg)
	require.True(t, ok)
	require.NoError(t, res.err)

	m, _ = send(m, msg)
	assert.Contains(t, m.output, "/switch")
}

func TestSlashCommand_QuitEndsProgram(t *testing.T) {
	m := newTestModel(t, &fakeCoord{})

	m = typeText(m, "/quit")
	m, cmd := send(m, keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)

	_, quit := send(m, cmd())
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
}

func TestSlashCommand_UnknownRestoresInput(t *testing.T) {
	m := newTestModel(t, &fakeCoord{})

	m = typeText(m, "/nope")
	m, cmd := send(m, keyMsg(tea.KeyEnter))
	m, _ = send(m, cmd())

	assert.Equal(t, "/nope", m.input.Value())
	assert.Contains(t, m.View(), "Error:")
}

func TestEsc_StopsReplyInProgress(t *testing.T) {
	f := &fakeCoord{}
	f.snap.State = coordinator.StateStreaming
	m := newTestModel(t, f)

	m, _ = send(m, keyMsg(tea.KeyEsc))
	assert.Equal(t, 1, f.stopped)
}

func TestEsc_ClearsErrorWhenIdle(t *testing.T) {
	f := &fakeCoord{}
	f.snap.LastError = chaterr.ErrStreamUnavailable
	m := newTestModel(t, f)
	m, _ = send(m, updateMsg{})

	m, _ = send(m, keyMsg(tea.KeyEsc))
	assert.Equal(t, 1, f.cleared)
}

func TestCtrlC_StopsWhenBusyQuitsWhenIdle(t *testing.T) {
	f := &fakeCoord{}
	f.snap.State = coordinator.StateSending
	m := newTestModel(t, f)

	m, cmd := send(m, keyMsg(tea.KeyCtrlC))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, f.stopped)

	m, _ = send(m, updateMsg{})
	_, cmd = send(m, keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestCtrlN_StartsNewConversation(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	send(m, keyMsg(tea.KeyCtrlN))
	assert.Equal(t, 1, f.newConv)
}

func TestTab_CompletesSingleCommand(t *testing.T) {
	m := newTestModel(t, &fakeCoord{})

	m = typeText(m, "/sw")
	m, _ = send(m, keyMsg(tea.KeyTab))

	assert.Equal(t, "/switch ", m.input.Value())
	assert.False(t, m.completion.Visible)
}

func TestTab_CyclesConversationNumbers(t *testing.T) {
	f := &fakeCoord{}
	f.snap.Conversations = []model.ConversationSummary{
		{ID: "c1", Title: "Fox stories"},
		{ID: "c2", Title: "Recipes"},
	}
	m := newTestModel(t, f)

	m = typeText(m, "/switch ")
	m, _ = send(m, keyMsg(tea.KeyTab))
	require.True(t, m.completion.Visible)
	assert.Contains(t, m.View(), "Fox stories")

	m, _ = send(m, keyMsg(tea.KeyTab))
	assert.Equal(t, "/switch 1 ", m.input.Value())
	m, _ = send(m, keyMsg(tea.KeyTab))
	assert.Equal(t, "/switch 2 ", m.input.Value())
}

func TestUpdate_RendersTranscriptFromSnapshot(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	f.set(func(s *coordinator.Snapshot) {
		s.Title = "Fox stories"
		s.ConversationID = "c1"
		s.Messages = []model.Message{
			{Ordinal: 1, Role: model.RoleUser, Content: "a fox story please"},
			{
				Ordinal:       2,
				Role:          model.RoleAssistant,
				Content:       "Once upon a time",
				Annotations:   model.Annotations{SourceAgent: "storyteller"},
				AudioEligible: true,
			},
		}
	})
	m, _ = send(m, updateMsg{})

	view := m.View()
	assert.Contains(t, view, "Fox stories")
	assert.Contains(t, view, "a fox story please")
	assert.Contains(t, view, "Once upon a time")
	assert.Contains(t, view, "(storyteller)")
	assert.Contains(t, view, "/audio 2")
}

func TestUpdate_StreamingReplyShowsSpinnerUntilText(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	f.set(func(s *coordinator.Snapshot) {
		s.State = coordinator.StateSending
		s.Messages = []model.Message{
			{Ordinal: 1, Role: model.RoleUser, Content: "hi"},
			{Ordinal: 2, Role: model.RoleAssistant, IsStreaming: true},
		}
	})
	m, _ = send(m, updateMsg{})
	assert.Contains(t, m.View(), "thinking")
	assert.Contains(t, m.View(), "sending")

	f.set(func(s *coordinator.Snapshot) {
		s.State = coordinator.StateStreaming
		s.Messages[1].Content = "Hel"
	})
	m, _ = send(m, updateMsg{})
	assert.Contains(t, m.View(), "Hel")
	assert.NotContains(t, m.View(), "thinking")
}

func TestTurnDone_CancelledShowsStopped(t *testing.T) {
	m := newTestModel(t, &fakeCoord{})
	m, _ = send(m, turnDoneMsg{err: chaterr.ErrCancelled})
	assert.Contains(t, m.View(), "stopped")
}

func TestInit_RestoresPreviousConversation(t *testing.T) {
	f := &fakeCoord{}
	m := New(context.Background(), Options{Coordinator: f, Theme: "dark"})

	msg := m.startup()()
	assert.Equal(t, restoredMsg{}, msg)
	assert.Equal(t, 1, f.restored)
}

func TestInit_StartupNew(t *testing.T) {
	f := &fakeCoord{}
	m := New(context.Background(), Options{Coordinator: f, Theme: "dark", Startup: StartupNew})

	m.startup()()
	assert.Equal(t, 1, f.newConv)
	assert.Zero(t, f.restored)
}

func TestUpdatePump_CoalescesNotifications(t *testing.T) {
	p := newUpdatePump(1000)
	for i := 0; i < 50; i++ {
		p.poke()
	}

	assert.Equal(t, updateMsg{}, p.wait(context.Background())())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Nil(t, p.wait(ctx)(), "pending pokes should have been folded into one frame")
}

func TestUpdatePump_CoordinatorPokesWakeView(t *testing.T) {
	f := &fakeCoord{}
	m := newTestModel(t, f)

	f.set(func(s *coordinator.Snapshot) { s.Title = "changed" })
	assert.Equal(t, updateMsg{}, m.pump.wait(context.Background())())
}

func TestMarkdownCache_SkipsStreamingAndUserMessages(t *testing.T) {
	c := newMarkdownCache(true, "dark")

	_, ok := c.render(model.Message{Role: model.RoleAssistant, Content: "x", IsStreaming: true}, 80)
	assert.False(t, ok)
	_, ok = c.render(model.Message{Role: model.RoleUser, Content: "x"}, 80)
	assert.False(t, ok)

	out, ok := c.render(model.Message{Ordinal: 2, Role: model.RoleAssistant, Content: "**bold**"}, 80)
	require.True(t, ok)
	assert.Contains(t, out, "bold")
	assert.Len(t, c.entries, 1)
}
