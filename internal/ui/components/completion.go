// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/morpheus-tui/internal/commands"
	"github.com/jeranaias/morpheus-tui/internal/ui/styles"
	"github.com/jeranaias/morpheus-tui/internal/util"
)

// =============================================================================
// COMPLETION POPUP COMPONENT
// =============================================================================

const valueColumn = 20

// CompletionPopup displays a popup with completion suggestions.
type CompletionPopup struct {
	completions []commands.Completion
	selected    int
	maxVisible  int
	width       int
	theme       *styles.Theme
}

// NewCompletionPopup creates a new completion popup.
func NewCompletionPopup(theme *styles.Theme) *CompletionPopup {
	return &CompletionPopup{
		maxVisible: 8,
		width:      50,
		theme:      theme,
	}
}

// SetCompletions sets the completions to display.
func (c *CompletionPopup) SetCompletions(completions []commands.Completion) {
	c.completions = completions
	c.selected = 0
}

// SetSelected sets the selected index. Out of range values are ignored.
func (c *CompletionPopup) SetSelected(index int) {
	if index < 0 || index >= len(c.completions) {
		return
	}
	c.selected = index
}

// SetWidth sets the popup width.
func (c *CompletionPopup) SetWidth(width int) {
	if width < valueColumn+10 {
		width = valueColumn + 10
	}
	c.width = width
}

// SetMaxVisible sets the maximum number of visible completions.
func (c *CompletionPopup) SetMaxVisible(max int) {
	if max > 0 {
		c.maxVisible = max
	}
}

// visibleRange keeps the selected item inside a scrolling window.
func (c *CompletionPopup) visibleRange() (int, int) {
	n := len(c.completions)
	if n <= c.maxVisible {
		return 0, n
	}
	start := c.selected - c.maxVisible/2
	if start < 0 {
		start = 0
	}
	end := start + c.maxVisible
	if end > n {
		end = n
		start = end - c.maxVisible
	}
	return start, end
}

// View renders the completion popup.
func (c *CompletionPopup) View() string {
	if len(c.completions) == 0 {
		return ""
	}

	start, end := c.visibleRange()
	items := make([]string, 0, end-start+1)
	for i := start; i < end; i++ {
		items = append(items, c.renderItem(c.completions[i], i == c.selected))
	}
	if hidden := len(c.completions) - (end - start); hidden > 0 {
		items = append(items, c.theme.Muted.Render("  "+strconv.Itoa(hidden)+" more, Tab to cycle"))
	}

	return c.theme.CompletionPopup.
		Width(c.width).
		MaxWidth(c.width + 2).
		Render(strings.Join(items, "\n"))
}

func (c *CompletionPopup) renderItem(comp commands.Completion, selected bool) string {
	value := comp.Display
	if value == "" {
		value = comp.Value
	}
	value = util.TruncateWidth(value, valueColumn-1)
	desc := util.TruncateWidth(comp.Description, c.width-valueColumn-4)

	indicator := "  "
	style := c.theme.CompletionItem
	if selected {
		indicator = "> "
		style = c.theme.CompletionSelected
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		style.Render(indicator),
		style.Width(valueColumn).Render(value),
		c.theme.Muted.Render(desc),
	)
}

// ViewCompact renders a single-line hint such as "Tab: 3 completions".
func (c *CompletionPopup) ViewCompact() string {
	switch len(c.completions) {
	case 0:
		return ""
	case 1:
		value := c.completions[0].Display
		if value == "" {
			value = c.completions[0].Value
		}
		return c.theme.InputHint.Render("Tab: complete \"" + value + "\"")
	default:
		return c.theme.InputHint.Render("Tab: " + strconv.Itoa(len(c.completions)) + " completions")
	}
}
