// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Attachments holds side-channel artifacts bound to a message.
type Attachments struct {
	// AudioRef identifies generated narration for the message, if any.
	AudioRef string `json:"audio_ref,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Ordinal is the zero-based position within the conversation.
	Ordinal   int       `json:"ordinal"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	Attachments Attachments `json:"attachments"`
	Annotations Annotations `json:"annotations"`

	// Not persisted
	IsStreaming   bool `json:"-"`
	AudioEligible bool `json:"-"`
}

// NewUserMessage creates a user message with the current timestamp.
func NewUserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message marked as streaming.
func NewAssistantMessage() Message {
	return Message{
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// IsUser reports whether the message was sent by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// IsAssistant reports whether the message was produced by the assistant.
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }

// IsEmpty reports whether the message has no visible content.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// HasAudio reports whether narration has been attached.
func (m Message) HasAudio() bool {
	return m.Attachments.AudioRef != ""
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Annotations = m.Annotations.Clone()
	return m
}

// Preview returns a single-line preview of the content truncated to maxLen runes.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if maxLen <= 0 || len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// WordCount returns the number of whitespace-separated words in the content.
func (m Message) WordCount() int {
	return len(strings.Fields(m.Content))
}

// CloneMessages deep-copies a slice of messages.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
