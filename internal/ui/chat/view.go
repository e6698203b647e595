// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/model"
	"github.com/jeranaias/morpheus-tui/internal/ui/styles"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	statusHeight = 1
	// input area: textarea rows plus the rounded border
	inputChrome = 2
)

// resize lays the widgets out for a width x height terminal.
func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.ready = true
	m.theme.SetSize(width, height)
	m.header.SetWidth(width)
	m.status.SetWidth(width)
	m.popup.SetWidth(min(60, width-4))
	m.input.SetWidth(width - 4)

	used := headerHeight + statusHeight + m.input.Height() + inputChrome
	if m.showHelp {
		used += lipgloss.Height(m.help.View(m.keys))
	}
	vh := height - used
	if vh < 1 {
		vh = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.help.Width = width
}

// refreshTranscript re-renders the transcript into the viewport. The view
// follows the bottom unless the user scrolled up.
func (m *Model) refreshTranscript(force bool) {
	follow := force || m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	m.header.SetTitle(m.snap.DisplayTitle())
	m.header.Count = len(m.snap.Conversations)

	parts := []string{m.header.View(), m.viewport.View()}
	if popup := m.renderCompletionPopup(); popup != "" {
		parts = append(parts, popup)
	}
	parts = append(parts, m.theme.InputContainer.Width(m.width-2).Render(m.input.View()))
	if m.showHelp {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts, m.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderCompletionPopup() string {
	if !m.completion.Visible {
		return ""
	}
	m.popup.SetCompletions(m.completion.Completions)
	m.popup.SetSelected(m.completion.Selected)
	return m.popup.View()
}

func (m Model) renderStatus() string {
	m.status.State = stateLabel(m.snap)
	m.status.Busy = m.snap.Busy()
	m.status.Err = m.snap.LastError
	m.status.Notice = m.notice
	return m.status.View()
}

func stateLabel(s coordinator.Snapshot) string {
	if s.Loading {
		return "loading"
	}
	return s.State.String()
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	var b strings.Builder

	if len(m.snap.Messages) == 0 && !m.snap.Loading {
		b.WriteString(m.theme.SystemMessage.Render("New conversation. Say something, or type /help."))
		b.WriteString("\n")
	}

	for _, msg := range m.snap.Messages {
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}

	if m.output != "" {
		b.WriteString(m.theme.SystemMessage.Width(width - 2).Render(m.output))
		b.WriteString("\n")
	}
	if m.snap.LastError != nil {
		b.WriteString(m.theme.ErrorMessage.Width(width - 2).Render(styles.StatusIndicators.Error + " " + m.snap.LastError.Error()))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	var b strings.Builder

	label := m.theme.UserLabel.Render(msg.Role.DisplayName())
	if msg.IsAssistant() {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		if agent := msg.Annotations.SourceAgent; agent != "" {
			label += " " + m.theme.AgentBadge.Render("("+agent+")")
		}
	}
	b.WriteString(m.theme.Timestamp.Render(fmt.Sprintf("#%d ", msg.Ordinal)) + label)
	if msg.HasAudio() {
		b.WriteString(" " + m.theme.AudioBadge.Render(styles.StatusIndicators.Audio+" "+m.audioLink(msg.Attachments.AudioRef)))
	} else if msg.AudioEligible {
		b.WriteString(" " + m.theme.Muted.Render(fmt.Sprintf("%s /audio %d", styles.StatusIndicators.Audio, msg.Ordinal)))
	}
	b.WriteString("\n")

	switch {
	case msg.IsStreaming && msg.Content == "":
		b.WriteString(m.theme.MessageBody.Render(m.spinner.View() + " thinking"))
	case msg.IsStreaming:
		b.WriteString(m.theme.MessageBody.Width(width - 2).Render(msg.Content + m.theme.Cursor.Render("_")))
	default:
		if out, ok := m.md.render(msg, width-2); ok {
			b.WriteString(strings.TrimRight(out, "\n"))
		} else {
			b.WriteString(m.theme.MessageBody.Width(width - 2).Render(msg.Content))
		}
	}

	if m.opts.ShowSafety {
		if badges := m.theme.SafetyBadges(msg.Annotations); badges != "" {
			b.WriteString("\n  " + badges)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) audioLink(id string) string {
	if m.opts.AudioURL == nil {
		return id
	}
	return m.theme.Link.Render(m.opts.AudioURL(id))
}
