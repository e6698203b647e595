// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// =============================================================================
// RISK LEVEL
// =============================================================================

// RiskLevel grades the outcome of a safety check.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// ParseRiskLevel maps a wire value to a RiskLevel. Unrecognised values yield
// RiskUnknown rather than an error.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	case "critical":
		return RiskCritical
	default:
		return RiskUnknown
	}
}

// String returns the wire form of the level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the level as its string form.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts any string; unknown levels decode to RiskUnknown.
func (r *RiskLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*r = RiskUnknown
		return nil
	}
	*r = ParseRiskLevel(s)
	return nil
}

// =============================================================================
// SAFETY CHECKS
// =============================================================================

// SafetyCheck is the outcome of one server-side content check.
type SafetyCheck struct {
	Passed      bool      `json:"passed"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Category    string    `json:"category,omitempty"`
	Message     string    `json:"message,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Flagged reports whether the check failed or carries elevated risk.
func (c SafetyCheck) Flagged() bool {
	return !c.Passed || c.RiskLevel >= RiskHigh
}

// =============================================================================
// ANNOTATIONS
// =============================================================================

// Annotations carries metadata the server attaches to an assistant reply.
type Annotations struct {
	// SourceAgent names the agent that produced the reply, e.g. "storyteller".
	SourceAgent  string                 `json:"source_agent,omitempty"`
	SafetyChecks map[string]SafetyCheck `json:"safety_checks,omitempty"`
}

// IsZero reports whether no annotation has been set.
func (a Annotations) IsZero() bool {
	return a.SourceAgent == "" && len(a.SafetyChecks) == 0
}

// Merge folds other into a. A non-empty SourceAgent in other overwrites;
// safety checks merge by key with other's value winning.
func (a *Annotations) Merge(other Annotations) {
	if other.SourceAgent != "" {
		a.SourceAgent = other.SourceAgent
	}
	if len(other.SafetyChecks) == 0 {
		return
	}
	if a.SafetyChecks == nil {
		a.SafetyChecks = make(map[string]SafetyCheck, len(other.SafetyChecks))
	}
	for k, v := range other.SafetyChecks {
		a.SafetyChecks[k] = v
	}
}

// Clone returns a deep copy.
func (a Annotations) Clone() Annotations {
	out := Annotations{SourceAgent: a.SourceAgent}
	if a.SafetyChecks != nil {
		out.SafetyChecks = make(map[string]SafetyCheck, len(a.SafetyChecks))
		for k, v := range a.SafetyChecks {
			if v.Suggestions != nil {
				v.Suggestions = append([]string(nil), v.Suggestions...)
			}
			out.SafetyChecks[k] = v
		}
	}
	return out
}

// CheckNames returns the safety check keys in sorted order.
func (a Annotations) CheckNames() []string {
	names := make([]string, 0, len(a.SafetyChecks))
	for k := range a.SafetyChecks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flagged returns the names of checks that did not pass cleanly.
func (a Annotations) Flagged() []string {
	var out []string
	for _, name := range a.CheckNames() {
		if a.SafetyChecks[name].Flagged() {
			out = append(out, name)
		}
	}
	return out
}
