// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/morpheus-tui/internal/ui/styles"
	"github.com/jeranaias/morpheus-tui/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the one-line title bar.
type Header struct {
	Brand string
	Title string
	// Count is the number of conversations in the directory, shown on
	// wide layouts.
	Count int
	Width int
	theme *styles.Theme
}

// NewHeader creates a header with the default brand.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Brand: "morpheus",
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetTitle updates the conversation title.
func (h *Header) SetTitle(title string) {
	h.Title = title
}

// View renders the header. The title is truncated before the brand is.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2

	brand := h.theme.HeaderBrand.Render("< " + h.Brand + " >")
	right := ""
	if h.Count > 0 && width >= 60 {
		right = h.theme.Muted.Render(fmt.Sprintf("%d conversations", h.Count))
	}

	room := inner - lipgloss.Width(brand) - lipgloss.Width(right) - 2
	title := h.theme.HeaderTitle.Render(util.TruncateWidth(h.Title, room))

	gap := inner - lipgloss.Width(brand) - lipgloss.Width(title) - lipgloss.Width(right) - 1
	if gap < 1 {
		gap = 1
	}
	line := brand + " " + title + lipgloss.NewStyle().Width(gap).Render("") + right
	return h.theme.Header.Width(width).MaxWidth(width).Render(line)
}
