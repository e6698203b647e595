// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ANNOTATION MERGE TESTS
// =============================================================================

func TestAnnotations_MergeLaterAgentWins(t *testing.T) {
	a := Annotations{SourceAgent: "coordinator"}
	a.Merge(Annotations{SourceAgent: "storyteller"})
	assert.Equal(t, "storyteller", a.SourceAgent)

	a.Merge(Annotations{})
	assert.Equal(t, "storyteller", a.SourceAgent, "empty agent must not clear")
}

func TestAnnotations_MergeChecksByKey(t *testing.T) {
	var a Annotations
	a.Merge(Annotations{SafetyChecks: map[string]SafetyCheck{
		"toxicity": {Passed: true, RiskLevel: RiskLow},
		"pii":      {Passed: true, RiskLevel: RiskLow},
	}})
	a.Merge(Annotations{SafetyChecks: map[string]SafetyCheck{
		"toxicity": {Passed: false, RiskLevel: RiskHigh},
	}})

	require.Len(t, a.SafetyChecks, 2)
	assert.False(t, a.SafetyChecks["toxicity"].Passed)
	assert.True(t, a.SafetyChecks["pii"].Passed)
	assert.Equal(t, []string{"toxicity"}, a.Flagged())
}

func TestAnnotations_CloneIsDeep(t *testing.T) {
	a := Annotations{SafetyChecks: map[string]SafetyCheck{
		"bias": {Passed: true, Suggestions: []string{"x"}},
	}}
	b := a.Clone()
	b.SafetyChecks["bias"] = SafetyCheck{}
	assert.True(t, a.SafetyChecks["bias"].Passed)
}

// =============================================================================
// RISK LEVEL TESTS
// =============================================================================

func TestRiskLevel_UnknownValuesTolerated(t *testing.T) {
	var c SafetyCheck
	err := json.Unmarshal([]byte(`{"passed":true,"risk_level":"apocalyptic"}`), &c)
	require.NoError(t, err)
	assert.Equal(t, RiskUnknown, c.RiskLevel)

	err = json.Unmarshal([]byte(`{"passed":false,"risk_level":"HIGH"}`), &c)
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, c.RiskLevel)
	assert.True(t, c.Flagged())
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Preview(t *testing.T) {
	m := Message{Content: "once upon\na time there was"}
	assert.Equal(t, "once upon a time there was", m.Preview(0))
	assert.Equal(t, "once up...", m.Preview(10))
}

func TestSummary_DisplayTitleAndAge(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := ConversationSummary{UpdatedAt: now.Add(-5 * time.Minute)}
	assert.Equal(t, DefaultTitle, s.DisplayTitle())
	assert.Equal(t, "5m ago", s.FormatAge(now))
	assert.Equal(t, "-", ConversationSummary{}.FormatAge(now))
}
