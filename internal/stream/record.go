// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"

	"github.com/jeranaias/morpheus-tui/internal/model"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// RecordKind tags how a line was decoded.
type RecordKind int

const (
	// KindLiteral is a line taken verbatim as text.
	KindLiteral RecordKind = iota
	// KindStructured is a line parsed as a JSON record.
	KindStructured
)

func (k RecordKind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "literal"
}

// RecordData is the metadata payload a structured record may carry.
type RecordData struct {
	ConversationID    string
	ConversationTitle string
	Agent             string
}

// IsZero reports whether no field is set.
func (d RecordData) IsZero() bool {
	return d == RecordData{}
}

// Record is one decoded line of the stream.
type Record struct {
	Kind RecordKind
	Text string

	// Terminated reports whether the line ended in a newline. Only a
	// flushed residual is unterminated.
	Terminated bool

	// Structured records only.
	Data   RecordData
	Checks map[string]model.SafetyCheck

	// Anomaly is set on a literal record whose line looked like JSON but
	// did not parse.
	Anomaly bool
}

// Literal reports whether the record is plain text.
func (r Record) Literal() bool { return r.Kind == KindLiteral }

// =============================================================================
// WIRE PARSING
// =============================================================================

type wireData struct {
	ConversationID    string `json:"conversation_id"`
	ConversationTitle string `json:"conversation_title"`
	Agent             string `json:"agent"`
}

// parseStructured decodes line as a structured record. The second result is
// false when the line is not a structured record; the third reports a
// malformed JSON object.
func parseStructured(line []byte) (Record, bool, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, false, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Record{}, false, true
	}

	rec := Record{Kind: KindStructured}
	raw, hasText := fields["text"]
	if hasText {
		if err := json.Unmarshal(raw, &rec.Text); err != nil {
			// {"text": 42} is someone else's JSON; show it as is.
			return Record{}, false, false
		}
	}

	data, hasData := fields["data"]
	if !hasData {
		data, hasData = fields["metadata"]
	}
	if hasData {
		rec.Data = decodeData(data)
	}
	if agent, ok := fields["agent"]; ok && rec.Data.Agent == "" {
		_ = json.Unmarshal(agent, &rec.Data.Agent)
	}

	checks, hasChecks := fields["responsible_ai_checks"]
	annotations, hasAnnotations := fields["annotations"]
	if hasAnnotations {
		var ann struct {
			Agent  string          `json:"agent"`
			Checks json.RawMessage `json:"responsible_ai_checks"`
		}
		if json.Unmarshal(annotations, &ann) == nil {
			if ann.Agent != "" {
				rec.Data.Agent = ann.Agent
			}
			if !hasChecks && len(ann.Checks) > 0 {
				checks, hasChecks = ann.Checks, true
			}
		}
	}
	if hasChecks {
		rec.Checks = decodeChecks(checks)
	}

	if !hasText && !hasData && !hasChecks && !hasAnnotations {
		return Record{}, false, false
	}
	return rec, true, false
}

func decodeData(raw json.RawMessage) RecordData {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return RecordData{}
	}
	var d RecordData
	str := func(keys ...string) string {
		for _, k := range keys {
			var s string
			if v, ok := fields[k]; ok && json.Unmarshal(v, &s) == nil && s != "" {
				return s
			}
		}
		return ""
	}
	d.ConversationID = str("conversation_id", "conversationId")
	d.ConversationTitle = str("conversation_title", "conversationTitle", "title")
	d.Agent = str("agent")
	return d
}

// decodeChecks keeps every entry that decodes; malformed entries are skipped.
func decodeChecks(raw json.RawMessage) map[string]model.SafetyCheck {
	var entries map[string]json.RawMessage
	if json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	out := make(map[string]model.SafetyCheck, len(entries))
	for name, v := range entries {
		var c model.SafetyCheck
		if json.Unmarshal(v, &c) == nil {
			out[name] = c
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
