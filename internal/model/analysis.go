package model

import (
	"encoding/json"
	"time"
)

// ImpactLevel describes how severe a bill's projected impact is.
type ImpactLevel string

const (
	ImpactUnset    ImpactLevel = "unset"
	ImpactLow      ImpactLevel = "low"
	ImpactModerate ImpactLevel = "moderate"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// impactRank orders impact levels for severity comparison. Unknown values
// rank below low so they never win a merge.
var impactRank = map[ImpactLevel]int{
	ImpactUnset:    0,
	ImpactLow:      1,
	ImpactModerate: 2,
	ImpactHigh:     3,
	ImpactCritical: 4,
}

// Rank returns the severity rank of the level, 0 for unrecognized values.
func (l ImpactLevel) Rank() int {
	return impactRank[l]
}

// MoreSevereThan reports whether l is strictly more severe than other.
func (l ImpactLevel) MoreSevereThan(other ImpactLevel) bool {
	return l.Rank() > other.Rank()
}

// ParseImpactLevel maps a model-produced string to an ImpactLevel,
// returning ImpactUnset and false for unrecognized input.
func ParseImpactLevel(s string) (ImpactLevel, bool) {
	switch ImpactLevel(s) {
	case ImpactLow, ImpactModerate, ImpactHigh, ImpactCritical:
		return ImpactLevel(s), true
	}
	return ImpactUnset, false
}

// RelevanceLevel describes how relevant a bill is to the configured region.
type RelevanceLevel string

const (
	RelevanceUnset    RelevanceLevel = "unset"
	RelevanceLow      RelevanceLevel = "low"
	RelevanceModerate RelevanceLevel = "moderate"
	RelevanceHigh     RelevanceLevel = "high"
)

// ParseRelevanceLevel maps a model-produced string to a RelevanceLevel,
// returning RelevanceUnset and false for unrecognized input.
func ParseRelevanceLevel(s string) (RelevanceLevel, bool) {
	switch RelevanceLevel(s) {
	case RelevanceLow, RelevanceModerate, RelevanceHigh:
		return RelevanceLevel(s), true
	}
	return RelevanceUnset, false
}

// ImpactCategory is the dominant analysis dimension for a bill.
type ImpactCategory string

const (
	CategoryUnset          ImpactCategory = "unset"
	CategoryPublicHealth   ImpactCategory = "public_health"
	CategoryLocalGov       ImpactCategory = "local_gov"
	CategoryEconomic       ImpactCategory = "economic"
	CategoryEnvironmental  ImpactCategory = "environmental"
	CategoryEducation      ImpactCategory = "education"
	CategoryInfrastructure ImpactCategory = "infrastructure"
)

// ParseImpactCategory maps a model-produced string to an ImpactCategory,
// returning CategoryUnset and false for unrecognized input.
func ParseImpactCategory(s string) (ImpactCategory, bool) {
	switch ImpactCategory(s) {
	case CategoryPublicHealth, CategoryLocalGov, CategoryEconomic,
		CategoryEnvironmental, CategoryEducation, CategoryInfrastructure:
		return ImpactCategory(s), true
	}
	return CategoryUnset, false
}

// KeyPoint is a single notable finding with its polarity.
type KeyPoint struct {
	Point      string `json:"point"`
	ImpactType string `json:"impact_type"`
}

// PublicHealthImpacts groups health-related findings.
type PublicHealthImpacts struct {
	DirectEffects         []string `json:"direct_effects"`
	IndirectEffects       []string `json:"indirect_effects"`
	FundingImpact         []string `json:"funding_impact"`
	VulnerablePopulations []string `json:"vulnerable_populations"`
}

// LocalGovImpacts groups local-government findings.
type LocalGovImpacts struct {
	Administrative []string `json:"administrative"`
	Fiscal         []string `json:"fiscal"`
	Implementation []string `json:"implementation"`
}

// EconomicImpacts groups economic findings.
type EconomicImpacts struct {
	DirectCosts     []string `json:"direct_costs"`
	EconomicEffects []string `json:"economic_effects"`
	Benefits        []string `json:"benefits"`
	LongTermImpact  []string `json:"long_term_impact"`
}

// ImpactSummary is the overall assessment of a bill.
type ImpactSummary struct {
	PrimaryCategory   ImpactCategory `json:"primary_category"`
	ImpactLevel       ImpactLevel    `json:"impact_level"`
	RelevanceToRegion RelevanceLevel `json:"relevance_to_region"`
}

// Analysis is the structured result of analyzing a bill. The field set is
// fixed; extra properties in model output are dropped during decoding.
type Analysis struct {
	Summary               string              `json:"summary"`
	KeyPoints             []KeyPoint          `json:"key_points"`
	PublicHealthImpacts   PublicHealthImpacts `json:"public_health_impacts"`
	LocalGovImpacts       LocalGovImpacts     `json:"local_government_impacts"`
	EconomicImpacts       EconomicImpacts     `json:"economic_impacts"`
	EnvironmentalImpacts  []string            `json:"environmental_impacts"`
	EducationImpacts      []string            `json:"education_impacts"`
	InfrastructureImpacts []string            `json:"infrastructure_impacts"`
	RecommendedActions    []string            `json:"recommended_actions"`
	ImmediateActions      []string            `json:"immediate_actions"`
	ResourceNeeds         []string            `json:"resource_needs"`
	ImpactSummary         ImpactSummary       `json:"impact_summary"`
}

// Normalize replaces nil list fields with empty slices so that serialized
// analyses never contain nulls where callers expect arrays.
func (a *Analysis) Normalize() {
	fill := func(s *[]string) {
		if *s == nil {
			*s = []string{}
		}
	}
	if a.KeyPoints == nil {
		a.KeyPoints = []KeyPoint{}
	}
	fill(&a.PublicHealthImpacts.DirectEffects)
	fill(&a.PublicHealthImpacts.IndirectEffects)
	fill(&a.PublicHealthImpacts.FundingImpact)
	fill(&a.PublicHealthImpacts.VulnerablePopulations)
	fill(&a.LocalGovImpacts.Administrative)
	fill(&a.LocalGovImpacts.Fiscal)
	fill(&a.LocalGovImpacts.Implementation)
	fill(&a.EconomicImpacts.DirectCosts)
	fill(&a.EconomicImpacts.EconomicEffects)
	fill(&a.EconomicImpacts.Benefits)
	fill(&a.EconomicImpacts.LongTermImpact)
	fill(&a.EnvironmentalImpacts)
	fill(&a.EducationImpacts)
	fill(&a.InfrastructureImpacts)
	fill(&a.RecommendedActions)
	fill(&a.ImmediateActions)
	fill(&a.ResourceNeeds)
}

// Empty reports whether the analysis carries no usable content.
func (a *Analysis) Empty() bool {
	return a.Summary == "" && len(a.KeyPoints) == 0
}

// AnalysisRecord is a persisted, version-chained analysis of one bill.
// Records are immutable once written; a re-analysis always creates a new
// record with Version = max(existing)+1.
type AnalysisRecord struct {
	ID                string          `json:"id"`
	BillID            string          `json:"bill_id"`
	Version           int             `json:"version"`
	PreviousVersionID *string         `json:"previous_version_id,omitempty"`
	AnalysisDate      time.Time       `json:"analysis_date"`
	ModelVersion      string          `json:"model_version"`
	Analysis          Analysis        `json:"analysis"`
	Raw               json.RawMessage `json:"raw,omitempty"`
	Validated         bool            `json:"validated"`
}
