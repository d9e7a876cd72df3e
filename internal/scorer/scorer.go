// Package scorer derives 0-100 priority scores from a completed bill
// analysis. Scores feed triage queues; they are advisory and are locked
// once a human marks a bill's priority as manually reviewed.
package scorer

import (
	"time"

	"github.com/sells-group/legis-analyzer/internal/model"
)

// impactScore maps an impact level to a base 0-100 score.
var impactScore = map[model.ImpactLevel]int{
	model.ImpactLow:      25,
	model.ImpactModerate: 50,
	model.ImpactHigh:     75,
	model.ImpactCritical: 100,
}

// relevanceMultiplier discounts scores for bills with low relevance to the
// region the advisory group serves.
var relevanceMultiplier = map[model.RelevanceLevel]float64{
	model.RelevanceLow:      0.7,
	model.RelevanceModerate: 0.85,
	model.RelevanceHigh:     1.0,
}

const (
	primaryCategoryBoost  = 1.5
	secondaryCategoryDrag = 0.8
	impactDetailBonus     = 10
)

// Derive computes health and local-government relevance scores from the
// analysis and returns a Priority ready to upsert. Deterministic for a
// fixed analysis.
func Derive(billID string, a model.Analysis) model.Priority {
	base := float64(impactScore[a.ImpactSummary.ImpactLevel])
	mult, ok := relevanceMultiplier[a.ImpactSummary.RelevanceToRegion]
	if !ok {
		mult = relevanceMultiplier[model.RelevanceLow]
	}

	health := base * mult
	localGov := base * mult

	switch a.ImpactSummary.PrimaryCategory {
	case model.CategoryPublicHealth:
		health *= primaryCategoryBoost
		localGov *= secondaryCategoryDrag
	case model.CategoryLocalGov:
		localGov *= primaryCategoryBoost
		health *= secondaryCategoryDrag
	}

	if hasPublicHealthDetail(a.PublicHealthImpacts) {
		health += impactDetailBonus
	}
	if hasLocalGovDetail(a.LocalGovImpacts) {
		localGov += impactDetailBonus
	}

	healthScore := clamp(int(health))
	localGovScore := clamp(int(localGov))

	return model.Priority{
		BillID:            billID,
		HealthRelevance:   healthScore,
		LocalGovRelevance: localGovScore,
		OverallPriority:   (healthScore + localGovScore) / 2,
		AutoCategorized:   true,
		AutoCategories:    categories(a),
		UpdatedAt:         time.Now().UTC(),
	}
}

func hasPublicHealthDetail(ph model.PublicHealthImpacts) bool {
	return len(ph.DirectEffects) > 0 || len(ph.IndirectEffects) > 0 ||
		len(ph.FundingImpact) > 0 || len(ph.VulnerablePopulations) > 0
}

func hasLocalGovDetail(lg model.LocalGovImpacts) bool {
	return len(lg.Administrative) > 0 || len(lg.Fiscal) > 0 || len(lg.Implementation) > 0
}

// categories lists every impact dimension the analysis touched, with the
// primary category first.
func categories(a model.Analysis) []string {
	var cats []string
	seen := map[string]struct{}{}
	add := func(c string) {
		if c == "" || c == string(model.CategoryUnset) {
			return
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		cats = append(cats, c)
	}

	add(string(a.ImpactSummary.PrimaryCategory))
	if hasPublicHealthDetail(a.PublicHealthImpacts) {
		add(string(model.CategoryPublicHealth))
	}
	if hasLocalGovDetail(a.LocalGovImpacts) {
		add(string(model.CategoryLocalGov))
	}
	if len(a.EconomicImpacts.DirectCosts) > 0 || len(a.EconomicImpacts.EconomicEffects) > 0 ||
		len(a.EconomicImpacts.Benefits) > 0 || len(a.EconomicImpacts.LongTermImpact) > 0 {
		add(string(model.CategoryEconomic))
	}
	if len(a.EnvironmentalImpacts) > 0 {
		add(string(model.CategoryEnvironmental))
	}
	if len(a.EducationImpacts) > 0 {
		add(string(model.CategoryEducation))
	}
	if len(a.InfrastructureImpacts) > 0 {
		add(string(model.CategoryInfrastructure))
	}
	return cats
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
