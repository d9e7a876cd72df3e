package analysis

// charsPerTokenEstimate reflects average English subword density for the
// Claude tokenizer family. It is an approximation, not a guarantee; the
// chunker's safety margin absorbs the estimation error.
const charsPerTokenEstimate = 4

// TokenCounter estimates token counts for text. When no precise tokenizer
// is configured it falls back to a length heuristic.
type TokenCounter struct {
	// Estimate, when non-nil, replaces the default heuristic (e.g. for a
	// model-specific tokenizer). It must be deterministic.
	Estimate func(text string) int
}

// Count returns the estimated token cost of text. Empty text costs 0.
// Count never fails; worst case it returns the heuristic value.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c != nil && c.Estimate != nil {
		return c.Estimate(text)
	}
	return len(text) / charsPerTokenEstimate
}
