package analysis

import (
	"fmt"
	"strings"

	"github.com/sells-group/legis-analyzer/internal/model"
)

const baseSystemInstruction = `You are a legislative analyst for a regional public-health and local-government advisory group. You analyze bills and produce structured assessments of their public health, local government, economic, environmental, education, and infrastructure impacts. Respond with a single JSON object matching the requested schema and nothing else.`

const chunkSystemSuffix = ` You are seeing one portion of a larger document; base your analysis on the visible text and the provided summaries of earlier portions.`

// SystemInstruction returns the fixed analytical framing; when isChunk it
// appends guidance that only a portion of the document is visible.
func SystemInstruction(isChunk bool) string {
	if isChunk {
		return baseSystemInstruction + chunkSystemSuffix
	}
	return baseSystemInstruction
}

const outputSchemaDescription = `Return a JSON object with exactly these fields:
{
  "summary": string,
  "key_points": [{"point": string, "impact_type": "positive"|"negative"|"neutral"}],
  "public_health_impacts": {"direct_effects": [string], "indirect_effects": [string], "funding_impact": [string], "vulnerable_populations": [string]},
  "local_government_impacts": {"administrative": [string], "fiscal": [string], "implementation": [string]},
  "economic_impacts": {"direct_costs": [string], "economic_effects": [string], "benefits": [string], "long_term_impact": [string]},
  "environmental_impacts": [string],
  "education_impacts": [string],
  "infrastructure_impacts": [string],
  "recommended_actions": [string],
  "immediate_actions": [string],
  "resource_needs": [string],
  "impact_summary": {"primary_category": "public_health"|"local_gov"|"economic"|"environmental"|"education"|"infrastructure", "impact_level": "low"|"moderate"|"high"|"critical", "relevance_to_region": "low"|"moderate"|"high"}
}
Every list field must be present, empty if nothing applies. Do not add fields.`

// UserPrompt wraps whole-document text with the analysis-dimension
// instructions. Chunk prompts are built separately by ChunkPrompt and passed
// through unmodified since they already contain framing.
func UserPrompt(text string, isChunk bool) string {
	if isChunk {
		return text
	}
	var b strings.Builder
	b.WriteString("Analyze the following bill. Assess public health impacts, local government impacts, economic impacts, and recommended actions, then give an overall assessment.\n\n")
	b.WriteString(outputSchemaDescription)
	b.WriteString("\n\nBILL TEXT:\n")
	b.WriteString(text)
	return b.String()
}

// ChunkPrompt assembles the prompt for chunk index (zero-based) of total,
// carrying forward every prior chunk's summary verbatim and in order.
func ChunkPrompt(chunk string, index, total int, priorSummaries []string, metadata []model.MetadataField, hasStructure bool) string {
	var b strings.Builder

	if len(metadata) > 0 {
		b.WriteString("BILL METADATA:\n")
		for _, f := range metadata {
			fmt.Fprintf(&b, "%s: %s\n", f.Label, f.Value)
		}
		b.WriteString("\n")
	}

	if len(priorSummaries) > 0 {
		b.WriteString("SUMMARIES FROM PREVIOUS SECTIONS:\n")
		for _, s := range priorSummaries {
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "This is part %d of %d of the bill text.\n", index+1, total)
	switch {
	case index == 0:
		b.WriteString("This is the first part: establish the overall context of the bill.\n")
	case index == total-1:
		b.WriteString("This is the final part: use the summaries of previous sections to produce a comprehensive conclusion covering the whole bill.\n")
	default:
		b.WriteString("Build on the context from previous sections and focus your analysis on the new content in this part.\n")
	}

	if hasStructure {
		b.WriteString("The document has clear structural sections; parts are split along section boundaries.\n")
	} else {
		b.WriteString("The document has no clear structural sections; parts are split at natural text boundaries.\n")
	}

	b.WriteString("\n")
	b.WriteString(outputSchemaDescription)
	b.WriteString("\n\nBILL TEXT (THIS PART):\n")
	b.WriteString(chunk)
	return b.String()
}
