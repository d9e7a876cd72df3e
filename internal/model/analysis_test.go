package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpactLevelOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, ImpactCritical.MoreSevereThan(ImpactHigh))
	assert.True(t, ImpactHigh.MoreSevereThan(ImpactModerate))
	assert.True(t, ImpactModerate.MoreSevereThan(ImpactLow))
	assert.True(t, ImpactLow.MoreSevereThan(ImpactUnset))
	assert.False(t, ImpactModerate.MoreSevereThan(ImpactModerate))
	assert.False(t, ImpactLow.MoreSevereThan(ImpactCritical))

	// Unknown values never win.
	assert.False(t, ImpactLevel("catastrophic").MoreSevereThan(ImpactLow))
}

func TestParseImpactLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ImpactLevel
		ok   bool
	}{
		{"low", ImpactLow, true},
		{"moderate", ImpactModerate, true},
		{"high", ImpactHigh, true},
		{"critical", ImpactCritical, true},
		{"", ImpactUnset, false},
		{"severe", ImpactUnset, false},
		{"HIGH", ImpactUnset, false},
	}
	for _, tt := range tests {
		got, ok := ParseImpactLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestParseImpactCategory(t *testing.T) {
	t.Parallel()

	got, ok := ParseImpactCategory("public_health")
	assert.True(t, ok)
	assert.Equal(t, CategoryPublicHealth, got)

	got, ok = ParseImpactCategory("weather")
	assert.False(t, ok)
	assert.Equal(t, CategoryUnset, got)
}

func TestParseRelevanceLevel(t *testing.T) {
	t.Parallel()

	got, ok := ParseRelevanceLevel("high")
	assert.True(t, ok)
	assert.Equal(t, RelevanceHigh, got)

	// critical is not a relevance level even though it is an impact level.
	got, ok = ParseRelevanceLevel("critical")
	assert.False(t, ok)
	assert.Equal(t, RelevanceUnset, got)
}

func TestAnalysisNormalize(t *testing.T) {
	t.Parallel()

	var a Analysis
	a.Normalize()

	assert.NotNil(t, a.KeyPoints)
	assert.NotNil(t, a.PublicHealthImpacts.DirectEffects)
	assert.NotNil(t, a.PublicHealthImpacts.VulnerablePopulations)
	assert.NotNil(t, a.LocalGovImpacts.Fiscal)
	assert.NotNil(t, a.EconomicImpacts.LongTermImpact)
	assert.NotNil(t, a.EnvironmentalImpacts)
	assert.NotNil(t, a.ResourceNeeds)

	// Existing content is untouched.
	a = Analysis{
		KeyPoints:          []KeyPoint{{Point: "expands rural clinics", ImpactType: "positive"}},
		RecommendedActions: []string{"brief the county health board"},
	}
	a.Normalize()
	assert.Len(t, a.KeyPoints, 1)
	assert.Equal(t, []string{"brief the county health board"}, a.RecommendedActions)
}

func TestAnalysisEmpty(t *testing.T) {
	t.Parallel()

	var a Analysis
	assert.True(t, a.Empty())

	a.Summary = "imposes new reporting duties on municipal utilities"
	assert.False(t, a.Empty())

	a = Analysis{KeyPoints: []KeyPoint{{Point: "funding shift"}}}
	assert.False(t, a.Empty())
}
