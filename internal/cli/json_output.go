// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for scripting.
//
// Every command that supports --json wraps its result in the same envelope
// so callers can check "success" without knowing the command.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/morpheus-tui/internal/model"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	// Command is the command that produced the response
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// AskData is returned by ask.
type AskData struct {
	ConversationID string             `json:"conversation_id,omitempty"`
	Title          string             `json:"title,omitempty"`
	Reply          string             `json:"reply"`
	Agent          string             `json:"agent,omitempty"`
	AudioEligible  bool               `json:"audio_eligible"`
	AudioID        string             `json:"audio_id,omitempty"`
	Annotations    *model.Annotations `json:"annotations,omitempty"`
	DurationMs     int64              `json:"duration_ms"`
}

// ConversationListData is returned by conversations list.
type ConversationListData struct {
	Conversations []model.ConversationSummary `json:"conversations"`
}

// ConversationData is returned by conversations show.
type ConversationData struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Messages []model.Message `json:"messages"`
}

// RecoverData is returned by conversations recover.
type RecoverData struct {
	Recovered int `json:"recovered"`
}

// AudioData is returned by audio.
type AudioData struct {
	AudioID string `json:"audio_id"`
	URL     string `json:"url"`
	File    string `json:"file,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
}

// VersionData is returned by version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
