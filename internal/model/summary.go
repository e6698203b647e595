// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTitle is shown for conversations the server has not named yet.
const DefaultTitle = "New conversation"

// ConversationSummary is a directory entry for a server-side conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the title or a placeholder when it is blank.
func (s ConversationSummary) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// FormatAge renders UpdatedAt relative to now, e.g. "5m ago".
func (s ConversationSummary) FormatAge(now time.Time) string {
	if s.UpdatedAt.IsZero() {
		return "-"
	}
	d := now.Sub(s.UpdatedAt)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h ago"
	case d < 7*24*time.Hour:
		return strconv.Itoa(int(d.Hours()/24)) + "d ago"
	default:
		return s.UpdatedAt.Format("Jan 2")
	}
}

