package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/legis-analyzer/internal/model"
)

const (
	maxSummaryChars     = 2000
	maxKeyPoints        = 15
	maxFlatListItems    = 10
	maxSubCategoryItems = 8
	maxRecommendedItems = 8
	maxOtherActionItems = 5
)

// Merge combines an incoming per-chunk result into the running cumulative
// result. Field-by-field, deterministic, order-dependent: the base result
// generally wins, except the impact summary, where the strictly more severe
// impact level replaces the base wholesale.
func Merge(base, incoming model.Analysis) model.Analysis {
	merged := base

	merged.Summary = capSummary(strings.TrimSpace(base.Summary + " " + incoming.Summary))

	merged.KeyPoints = mergeKeyPoints(base.KeyPoints, incoming.KeyPoints)

	merged.PublicHealthImpacts = model.PublicHealthImpacts{
		DirectEffects:         mergeList(base.PublicHealthImpacts.DirectEffects, incoming.PublicHealthImpacts.DirectEffects, maxSubCategoryItems),
		IndirectEffects:       mergeList(base.PublicHealthImpacts.IndirectEffects, incoming.PublicHealthImpacts.IndirectEffects, maxSubCategoryItems),
		FundingImpact:         mergeList(base.PublicHealthImpacts.FundingImpact, incoming.PublicHealthImpacts.FundingImpact, maxSubCategoryItems),
		VulnerablePopulations: mergeList(base.PublicHealthImpacts.VulnerablePopulations, incoming.PublicHealthImpacts.VulnerablePopulations, maxSubCategoryItems),
	}
	merged.LocalGovImpacts = model.LocalGovImpacts{
		Administrative: mergeList(base.LocalGovImpacts.Administrative, incoming.LocalGovImpacts.Administrative, maxSubCategoryItems),
		Fiscal:         mergeList(base.LocalGovImpacts.Fiscal, incoming.LocalGovImpacts.Fiscal, maxSubCategoryItems),
		Implementation: mergeList(base.LocalGovImpacts.Implementation, incoming.LocalGovImpacts.Implementation, maxSubCategoryItems),
	}
	merged.EconomicImpacts = model.EconomicImpacts{
		DirectCosts:     mergeList(base.EconomicImpacts.DirectCosts, incoming.EconomicImpacts.DirectCosts, maxSubCategoryItems),
		EconomicEffects: mergeList(base.EconomicImpacts.EconomicEffects, incoming.EconomicImpacts.EconomicEffects, maxSubCategoryItems),
		Benefits:        mergeList(base.EconomicImpacts.Benefits, incoming.EconomicImpacts.Benefits, maxSubCategoryItems),
		LongTermImpact:  mergeList(base.EconomicImpacts.LongTermImpact, incoming.EconomicImpacts.LongTermImpact, maxSubCategoryItems),
	}

	merged.EnvironmentalImpacts = mergeRecentList(base.EnvironmentalImpacts, incoming.EnvironmentalImpacts, maxFlatListItems)
	merged.EducationImpacts = mergeRecentList(base.EducationImpacts, incoming.EducationImpacts, maxFlatListItems)
	merged.InfrastructureImpacts = mergeRecentList(base.InfrastructureImpacts, incoming.InfrastructureImpacts, maxFlatListItems)

	merged.RecommendedActions = mergeList(base.RecommendedActions, incoming.RecommendedActions, maxRecommendedItems)
	merged.ImmediateActions = mergeList(base.ImmediateActions, incoming.ImmediateActions, maxOtherActionItems)
	merged.ResourceNeeds = mergeList(base.ResourceNeeds, incoming.ResourceNeeds, maxOtherActionItems)

	if incoming.ImpactSummary.ImpactLevel.MoreSevereThan(base.ImpactSummary.ImpactLevel) {
		merged.ImpactSummary = incoming.ImpactSummary
	}

	return merged
}

func mergeKeyPoints(base, incoming []model.KeyPoint) []model.KeyPoint {
	merged := make([]model.KeyPoint, len(base))
	copy(merged, base)
	seen := make(map[string]struct{}, len(base))
	for _, kp := range base {
		seen[kp.Point] = struct{}{}
	}
	for _, kp := range incoming {
		if len(merged) >= maxKeyPoints {
			break
		}
		if _, dup := seen[kp.Point]; dup {
			continue
		}
		seen[kp.Point] = struct{}{}
		merged = append(merged, kp)
	}
	return merged
}

// mergeList unions incoming into base up to limit entries. Base entries are
// never evicted: once the cap is reached, further incoming entries are
// dropped. Used for the nested impact sub-categories and action lists.
func mergeList(base, incoming []string, limit int) []string {
	merged := make([]string, len(base))
	copy(merged, base)
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		if len(merged) >= limit {
			break
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

// mergeRecentList unions incoming into base, keeping the most recently
// unioned entries when over the cap. Used only for the flat impact-tag
// lists, where later chunks carry the document's closing material.
func mergeRecentList(base, incoming []string, limit int) []string {
	merged := make([]string, len(base))
	copy(merged, base)
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}

// capSummary enforces the hard summary length cap: the truncated form,
// ellipsis included, never exceeds maxSummaryChars bytes. The cut backs up
// to a rune boundary so multibyte characters are never bisected.
func capSummary(s string) string {
	if len(s) <= maxSummaryChars {
		return s
	}
	cut := maxSummaryChars - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// chunkPhrases are chunk-referential phrases that read oddly once per-chunk
// results are merged into one record.
var chunkPhrases = []string{
	"in this section",
	"in this portion of the document",
	"in this part of the bill",
	"as mentioned earlier",
	"as noted in previous sections",
	"as discussed in the previous section",
	"continuing from the previous section",
	"this section of the bill",
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// PostProcess cleans the cumulative summary after all chunks are merged:
// strips chunk-referential phrases, collapses whitespace runs, and enforces
// the hard summary cap.
func PostProcess(a *model.Analysis) {
	summary := a.Summary
	for _, phrase := range chunkPhrases {
		summary = stripPhrase(summary, phrase)
	}
	summary = whitespaceRunRe.ReplaceAllString(summary, " ")
	a.Summary = capSummary(strings.TrimSpace(summary))
}

// stripPhrase removes every case-insensitive occurrence of phrase. Folding
// is ASCII-only so match offsets stay valid byte offsets into s; full
// Unicode lowering can change byte lengths and mis-slice the summary.
func stripPhrase(s, phrase string) string {
	for {
		idx := strings.Index(lowerASCII(s), phrase)
		if idx < 0 {
			return s
		}
		s = s[:idx] + s[idx+len(phrase):]
	}
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
