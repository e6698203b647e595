// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/ui/styles"
	"github.com/jeranaias/morpheus-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is one key hint in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line: state on the left, then the last error or
// a notice, shortcuts on the right.
type StatusBar struct {
	State     string
	Busy      bool
	Err       error
	Notice    string
	Shortcuts []Shortcut
	Width     int
	theme     *styles.Theme
}

// NewStatusBar creates an empty status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		State: "idle",
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the status bar. Shortcuts are dropped from the right when
// the message needs the room.
func (s *StatusBar) View() string {
	width := s.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2

	state := s.theme.StateIdle.Render(styles.StatusIndicators.Success + " " + s.State)
	if s.Busy {
		state = s.theme.StateBusy.Render(styles.StatusIndicators.Info + " " + s.State)
	}

	msg := ""
	switch {
	case s.Err != nil:
		text := s.Err.Error()
		if k := chaterr.KindOf(s.Err); k != chaterr.KindUnknown {
			text = k.String() + ": " + text
		}
		msg = lipgloss.NewStyle().Foreground(styles.Rose).Render(styles.StatusIndicators.Error + " " + util.OneLine(text))
	case s.Notice != "":
		msg = s.theme.Muted.Render(util.OneLine(s.Notice))
	}

	shortcuts := s.shortcuts(inner - lipgloss.Width(state) - lipgloss.Width(msg) - 4)

	room := inner - lipgloss.Width(state) - lipgloss.Width(shortcuts) - 2
	if lipgloss.Width(msg) > room {
		msg = lipgloss.NewStyle().MaxWidth(room).Render(msg)
	}
	left := state
	if msg != "" {
		left += "  " + msg
	}
	gap := inner - lipgloss.Width(left) - lipgloss.Width(shortcuts)
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Width(width).MaxWidth(width).Render(left + strings.Repeat(" ", gap) + shortcuts)
}

// shortcuts renders as many hints as fit in room.
func (s *StatusBar) shortcuts(room int) string {
	var parts []string
	used := 0
	for _, sc := range s.Shortcuts {
		part := s.theme.ShortcutKey.Render(sc.Key) + " " + s.theme.ShortcutDesc.Render(sc.Desc)
		w := lipgloss.Width(part)
		if len(parts) > 0 {
			w += 2
		}
		if used+w > room {
			break
		}
		parts = append(parts, part)
		used += w
	}
	return strings.Join(parts, "  ")
}
