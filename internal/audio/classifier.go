// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jeranaias/morpheus-tui/internal/model"
)

// DefaultRole is the agent whose replies are narrated.
const DefaultRole = "storyteller"

// DefaultMarkers are the phrases the keyword fallback looks for.
var DefaultMarkers = []string{"once upon a time", "bedtime story", "the end", "happily ever after"}

// Classifier decides whether a finished reply should get narration.
type Classifier struct {
	// Role is compared against Annotations.SourceAgent.
	Role string

	// KeywordFallback enables content matching for untagged replies.
	// Deprecated: servers tag storyteller replies explicitly.
	KeywordFallback bool
	MinWords        int
	Markers         []string
}

// NewClassifier creates a classifier for role. An empty role uses DefaultRole.
func NewClassifier(role string, keywordFallback bool, minWords int) *Classifier {
	if role == "" {
		role = DefaultRole
	}
	if minWords <= 0 {
		minWords = 80
	}
	return &Classifier{
		Role:            role,
		KeywordFallback: keywordFallback,
		MinWords:        minWords,
		Markers:         DefaultMarkers,
	}
}

// Eligible reports whether msg should be narrated. Only finished assistant
// replies qualify.
func (c *Classifier) Eligible(msg model.Message) bool {
	if !msg.IsAssistant() || msg.IsStreaming || msg.IsEmpty() {
		return false
	}

	// Casers keep state between calls.
	fold := cases.Fold()
	agent := msg.Annotations.SourceAgent
	if agent != "" {
		return fold.String(agent) == fold.String(c.Role)
	}
	if !c.KeywordFallback || msg.WordCount() < c.MinWords {
		return false
	}

	content := fold.String(msg.Content)
	for _, m := range c.Markers {
		if strings.Contains(content, fold.String(m)) {
			return true
		}
	}
	return false
}
