// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/morpheus-tui/internal/model"
)

func TestRiskColor(t *testing.T) {
	assert.Equal(t, Emerald, RiskColor(model.RiskLow))
	assert.Equal(t, Amber, RiskColor(model.RiskMedium))
	assert.Equal(t, Rose, RiskColor(model.RiskHigh))
	assert.Equal(t, Rose, RiskColor(model.RiskCritical))
	assert.Equal(t, TextMuted, RiskColor(model.RiskUnknown))
}

func TestRenderHelpersKeepIndicators(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{RenderSuccess("saved"), "[OK] saved"},
		{RenderError("failed"), "[X] failed"},
		{RenderWarning("careful"), "[!] careful"},
		{RenderInfo("note"), "[i] note"},
	}
	for _, tc := range tests {
		if !strings.Contains(tc.got, tc.want) {
			t.Errorf("rendered %q does not contain %q", tc.got, tc.want)
		}
	}
}

func TestNewTheme_ExplicitBackground(t *testing.T) {
	assert.True(t, NewTheme("dark").IsDark)
	assert.False(t, NewTheme("light").IsDark)
}

func TestLayoutMode(t *testing.T) {
	th := NewTheme("dark")
	th.SetSize(40, 20)
	assert.Equal(t, LayoutNarrow, th.GetLayoutMode())
	th.SetSize(80, 20)
	assert.Equal(t, LayoutMedium, th.GetLayoutMode())
	th.SetSize(120, 20)
	assert.Equal(t, LayoutWide, th.GetLayoutMode())
}

func TestSafetyBadges(t *testing.T) {
	th := NewTheme("dark")
	ann := model.Annotations{SafetyChecks: map[string]model.SafetyCheck{
		"violence": {Passed: false, RiskLevel: model.RiskHigh},
		"bias":     {Passed: true, RiskLevel: model.RiskLow},
	}}

	out := th.SafetyBadges(ann)
	assert.Contains(t, out, "violence:high")
	assert.NotContains(t, out, "bias")
	assert.Empty(t, th.SafetyBadges(model.Annotations{}))
}
