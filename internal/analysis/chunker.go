package analysis

import (
	"regexp"
	"sort"
	"strings"
)

// structuralMarkers are the recurring legislative header patterns used for
// structure detection. A document where any single pattern recurs more than
// structureThreshold times is split along those boundaries instead of
// paragraph boundaries.
var structuralMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(?:SECTION|Section|Sec\.)\s+\d+`),
	regexp.MustCompile(`(?m)^\s*(?:ARTICLE|Article)\s+(?:[IVXLCDM]+|\d+)`),
	regexp.MustCompile(`(?m)^\s*(?:TITLE|Title)\s+(?:[IVXLCDM]+|\d+)`),
	regexp.MustCompile(`(?m)^\s*§+\s*\d+`),
	regexp.MustCompile(`(?m)^[A-Z][A-Z0-9 ,.'\-]{8,}$`),
	regexp.MustCompile(`(?m)^\s*\[[A-Za-z0-9 .\-]+\]`),
}

const structureThreshold = 3

// Chunker splits document text into token-budget-respecting chunks.
type Chunker struct {
	counter *TokenCounter
}

func NewChunker(counter *TokenCounter) *Chunker {
	if counter == nil {
		counter = &TokenCounter{}
	}
	return &Chunker{counter: counter}
}

// Split returns the ordered chunks of text, each within maxTokens, along
// with whether the text had detectable structural markers. The splitting
// ladder degrades from structural markers to paragraphs to sentences to a
// fixed-size byte fallback, so every chunk respects the budget.
func (c *Chunker) Split(text string, maxTokens int) ([]string, bool, error) {
	if c.counter.Count(text) <= maxTokens {
		return []string{text}, false, nil
	}

	hasStructure := detectStructure(text)

	var pieces []string
	if hasStructure {
		pieces = splitAtMarkers(text)
	} else {
		pieces = splitParagraphs(text)
	}

	chunks := c.pack(pieces, maxTokens)
	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		return nil, hasStructure, &ContentProcessingError{Reason: "all splitting strategies produced zero chunks"}
	}
	return chunks, hasStructure, nil
}

// detectStructure reports whether any single structural pattern recurs more
// than structureThreshold times.
func detectStructure(text string) bool {
	for _, re := range structuralMarkers {
		if len(re.FindAllStringIndex(text, structureThreshold+1)) > structureThreshold {
			return true
		}
	}
	return false
}

// splitAtMarkers cuts text at every structural marker boundary. The cut is
// placed before each marker so the header stays attached to the text that
// follows it.
func splitAtMarkers(text string) []string {
	boundarySet := map[int]struct{}{}
	for _, re := range structuralMarkers {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] > 0 {
				boundarySet[loc[0]] = struct{}{}
			}
		}
	}
	if len(boundarySet) == 0 {
		return []string{text}
	}

	boundaries := make([]int, 0, len(boundarySet))
	for b := range boundarySet {
		boundaries = append(boundaries, b)
	}
	sort.Ints(boundaries)

	var pieces []string
	prev := 0
	for _, b := range boundaries {
		if piece := text[prev:b]; strings.TrimSpace(piece) != "" {
			pieces = append(pieces, piece)
		}
		prev = b
	}
	if piece := text[prev:]; strings.TrimSpace(piece) != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var pieces []string
	for _, p := range blankLineRe.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// abbreviations that commonly precede a period mid-sentence. A split
// candidate whose preceding word matches one of these is skipped.
var sentenceAbbrevs = map[string]struct{}{
	"U.S": {}, "U.S.C": {}, "No": {}, "Sec": {}, "Art": {}, "Tit": {},
	"Dr": {}, "Mr": {}, "Mrs": {}, "Ms": {}, "Jr": {}, "Sr": {},
	"Inc": {}, "Ltd": {}, "Co": {}, "Corp": {}, "St": {}, "et al": {},
	"e.g": {}, "i.e": {}, "vs": {}, "approx": {},
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace, guarding against common abbreviation patterns and
// single-letter initials.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		if text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		if ch == '.' && isAbbreviation(text[start:i]) {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isAbbreviation reports whether the text ending at a period looks like an
// abbreviation rather than a sentence end.
func isAbbreviation(before string) bool {
	before = strings.TrimRight(before, " ")
	idx := strings.LastIndexAny(before, " \n\t")
	word := before[idx+1:]
	if word == "" {
		return false
	}
	// Single-letter initials like "A." in names.
	if len(word) == 1 && word[0] >= 'A' && word[0] <= 'Z' {
		return true
	}
	if _, ok := sentenceAbbrevs[word]; ok {
		return true
	}
	// Dotted forms like "U.S" end with letter-dot-letter.
	if len(word) >= 3 && word[len(word)-2] == '.' {
		return true
	}
	return false
}

// pack greedily fills chunks with consecutive pieces until adding the next
// piece would exceed the budget. Candidates are measured joined, separator
// included, so an emitted chunk never counts over the budget. A piece that
// alone exceeds the budget is recursively re-split through the lower levels
// of the ladder.
func (c *Chunker) pack(pieces []string, maxTokens int) []string {
	var chunks []string
	current := ""

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, piece := range pieces {
		if c.counter.Count(piece) > maxTokens {
			flush()
			chunks = append(chunks, c.splitOversized(piece, maxTokens)...)
			continue
		}
		candidate := piece
		if current != "" {
			candidate = current + "\n\n" + piece
			if c.counter.Count(candidate) > maxTokens {
				flush()
				candidate = piece
			}
		}
		current = candidate
	}
	flush()
	return chunks
}

// splitOversized re-splits a single over-budget piece down the remaining
// ladder: paragraphs, then sentences, then the fixed-size fallback.
func (c *Chunker) splitOversized(piece string, maxTokens int) []string {
	if paragraphs := splitParagraphs(piece); len(paragraphs) > 1 {
		return c.packFlat(paragraphs, maxTokens, "\n\n")
	}
	if sentences := splitSentences(piece); len(sentences) > 1 {
		return c.packFlat(sentences, maxTokens, " ")
	}
	return c.splitFixed(piece, maxTokens)
}

// packFlat packs already-atomic units greedily, measuring candidates joined
// with the separator, and diverting any unit that alone exceeds the budget
// to the next ladder level.
func (c *Chunker) packFlat(units []string, maxTokens int, sep string) []string {
	var chunks []string
	current := ""

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, unit := range units {
		if c.counter.Count(unit) > maxTokens {
			flush()
			if sep == "\n\n" {
				if sentences := splitSentences(unit); len(sentences) > 1 {
					chunks = append(chunks, c.packFlat(sentences, maxTokens, " ")...)
					continue
				}
			}
			chunks = append(chunks, c.splitFixed(unit, maxTokens)...)
			continue
		}
		candidate := unit
		if current != "" {
			candidate = current + sep + unit
			if c.counter.Count(candidate) > maxTokens {
				flush()
				candidate = unit
			}
		}
		current = candidate
	}
	flush()
	return chunks
}

// splitFixed cuts at fixed character boundaries derived from the unit's own
// characters-per-token ratio. The 0.9 margin absorbs tokenizer estimation
// error.
func (c *Chunker) splitFixed(unit string, maxTokens int) []string {
	tokens := c.counter.Count(unit)
	if tokens == 0 {
		return nil
	}
	charsPerToken := float64(len(unit)) / float64(tokens)
	step := int(0.9 * float64(maxTokens) * charsPerToken)
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(unit); start += step {
		end := start + step
		if end > len(unit) {
			end = len(unit)
		}
		chunks = append(chunks, unit[start:end])
	}
	return chunks
}
