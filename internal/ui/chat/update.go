// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/commands"
	"github.com/jeranaias/morpheus-tui/internal/coordinator"
)

// =============================================================================
// INIT
// =============================================================================

// Init loads the first conversation and starts the redraw pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.pump.wait(m.ctx),
		m.startup(),
	)
}

func (m Model) startup() tea.Cmd {
	coord, ctx, opts := m.coord, m.ctx, m.opts
	return func() tea.Msg {
		switch opts.Startup {
		case StartupNew:
			coord.NewConversation()
			return restoredMsg{}
		case StartupSwitch:
			err := coord.SwitchConversation(ctx, opts.ConversationID)
			return restoredMsg{ok: err == nil, err: err}
		default:
			ok, err := coord.Restore(ctx)
			return restoredMsg{ok: ok, err: err}
		}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshTranscript(true)
		return m, nil

	case updateMsg:
		m.sync()
		return m, m.pump.wait(m.ctx)

	case restoredMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("could not reopen conversation")
			m.notice = "could not reopen the last conversation"
		}
		m.sync()
		return m, nil

	case commandResultMsg:
		return m.handleCommandResult(msg)

	case turnDoneMsg:
		if chaterr.IsCancelled(msg.err) {
			m.notice = "stopped"
		}
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.State == coordinator.StateSending {
			m.refreshTranscript(false)
		}
		return m, cmd

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.completion.Visible && m.input.Value() != before {
		m.refreshCompletions()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// sync pulls a fresh snapshot and redraws the transcript.
func (m *Model) sync() {
	m.snap = m.coord.Snapshot()
	m.refreshTranscript(false)
}

// =============================================================================
// KEYS
// =============================================================================

// handleKey processes keys the view owns. Unhandled keys go to the input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keys.Interrupt):
		if m.snap.Busy() && m.coord.Stop() {
			return nil, true
		}
		return tea.Quit, true

	case key.Matches(msg, m.keys.Stop):
		switch {
		case m.completion.Visible:
			m.completion.Clear()
		case m.coord.Stop():
		case m.output != "" || m.snap.LastError != nil || m.notice != "":
			m.output, m.notice = "", ""
			m.coord.ClearError()
			m.refreshTranscript(false)
		}
		return nil, true

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.resize(m.width, m.height)
		return nil, true

	case key.Matches(msg, m.keys.New):
		m.coord.NewConversation()
		m.output, m.notice = "", ""
		return nil, true

	case key.Matches(msg, m.keys.Complete):
		m.complete(false)
		return nil, true

	case key.Matches(msg, m.keys.Prev):
		m.complete(true)
		return nil, true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return nil, true

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return nil, true

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return nil, true

	case key.Matches(msg, m.keys.Submit):
		return m.submit(), true
	}
	return nil, false
}

// submit sends the input as a message or runs it as a slash command.
func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.completion.Clear()
	m.output, m.notice = "", ""

	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}

	turn, err := m.coord.Submit(text)
	switch {
	case errors.Is(err, coordinator.ErrBusy):
		m.notice = "wait for the reply to finish, or press esc to stop it"
		return nil
	case errors.Is(err, coordinator.ErrEmptyMessage):
		return nil
	case err != nil:
		// The coordinator reports it through the snapshot; keep the text
		// so it can be resent.
		m.sync()
		return nil
	}
	m.input.Reset()
	m.sync()
	m.viewport.GotoBottom()
	return waitTurn(m.ctx, turn)
}

func (m *Model) runCommand(input string) tea.Cmd {
	ctx, reg, env := m.ctx, m.registry, m.env
	return func() tea.Msg {
		res, err := reg.Execute(ctx, env, input)
		return commandResultMsg{input: input, res: res, err: err}
	}
}

func (m Model) handleCommandResult(msg commandResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.output = "Error: " + msg.err.Error()
		if errors.Is(msg.err, commands.ErrUnknownCommand) {
			m.input.SetValue(msg.input)
		}
	} else {
		m.output = msg.res.Text
	}
	if msg.res.Quit {
		return m, tea.Quit
	}
	m.sync()
	m.viewport.GotoBottom()
	if msg.res.Turn != nil {
		return m, waitTurn(m.ctx, msg.res.Turn)
	}
	return m, nil
}

func waitTurn(ctx context.Context, t *coordinator.Turn) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		return turnDoneMsg{err: t.Wait(ctx)}
	}
}

// =============================================================================
// COMPLETION
// =============================================================================

// complete opens the popup, or cycles it when already open. A single
// candidate is accepted straight away.
func (m *Model) complete(backward bool) {
	if m.completion.Visible {
		if backward {
			m.completion.Prev()
		} else {
			m.completion.Next()
		}
		m.input.SetValue(m.completion.Accept())
		m.input.CursorEnd()
		return
	}

	input := m.input.Value()
	list := m.completer.Complete(input, -1)
	if len(list) == 0 {
		return
	}
	m.completion.Update(input, list)
	if len(list) == 1 {
		m.input.SetValue(m.completion.Accept())
		m.input.CursorEnd()
		m.completion.Clear()
		return
	}
	m.completion.Selected = -1
}

func (m *Model) refreshCompletions() {
	input := m.input.Value()
	list := m.completer.Complete(input, -1)
	if len(list) == 0 {
		m.completion.Clear()
		return
	}
	m.completion.Update(input, list)
	m.completion.Selected = -1
}
