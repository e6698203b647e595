// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/morpheus-tui/internal/model"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderBrand lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	SystemMessage  lipgloss.Style
	ErrorMessage   lipgloss.Style
	Cursor         lipgloss.Style
	Timestamp      lipgloss.Style
	AudioBadge     lipgloss.Style
	AgentBadge     lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputHint      lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StateIdle    lipgloss.Style
	StateBusy    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Completion popup
	CompletionPopup    lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style

	Muted lipgloss.Style
	Link  lipgloss.Style
}

// NewTheme creates a theme for the detected terminal. name may be "dark",
// "light" or "auto".
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()
	switch strings.ToLower(name) {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(UserLabelFg)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(AssistantLabelFg)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.SystemMessage = lipgloss.NewStyle().
		Foreground(SystemFg).
		Italic(true).
		PaddingLeft(2)

	t.ErrorMessage = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true).
		PaddingLeft(2)

	t.Cursor = lipgloss.NewStyle().
		Foreground(Purple).
		Blink(true)

	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.AudioBadge = lipgloss.NewStyle().Foreground(Emerald)
	t.AgentBadge = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputHint = lipgloss.NewStyle().Foreground(TextMuted)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StateIdle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StateBusy = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.CompletionPopup = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.CompletionItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.CompletionSelected = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Link = lipgloss.NewStyle().Foreground(LinkColor).Underline(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// SafetyBadges renders one badge per flagged safety check in name order.
// Checks that are not flagged are omitted.
func (t *Theme) SafetyBadges(ann model.Annotations) string {
	var badges []string
	for _, name := range ann.CheckNames() {
		c := ann.SafetyChecks[name]
		if !c.Flagged() {
			continue
		}
		label := fmt.Sprintf("%s %s:%s", StatusIndicators.Warning, name, c.RiskLevel)
		badges = append(badges, lipgloss.NewStyle().Foreground(RiskColor(c.RiskLevel)).Render(label))
	}
	return strings.Join(badges, " ")
}
