package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCounter_Count(t *testing.T) {
	c := &TokenCounter{}

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("word"))
	assert.Equal(t, 25, c.Count(strings.Repeat("a", 100)))

	// Deterministic for fixed input.
	text := "The quick brown fox jumps over the lazy dog."
	assert.Equal(t, c.Count(text), c.Count(text))
}

func TestTokenCounter_CustomEstimate(t *testing.T) {
	c := &TokenCounter{Estimate: func(text string) int { return len(strings.Fields(text)) }}

	assert.Equal(t, 3, c.Count("one two three"))
	assert.Equal(t, 0, c.Count(""))
}
