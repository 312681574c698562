package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFoldsPunctuationAndApostrophes(t *testing.T) {
	got := Normalize("The Queen’s  Guard, arrived!")
	assert.Equal(t, "the queen's guard arrived", got)
}

func TestTokenizeDropsStopWordsAndEmpties(t *testing.T) {
	got := Tokenize("The quick fox is in the garden")
	assert.Equal(t, []string{"quick", "fox", "garden"}, got)
}

func TestTokenizeEmptyString(t *testing.T) {
	assert.Empty(t, Tokenize(""))
}

func TestPhraseMatcherFindsMultiWordPhrases(t *testing.T) {
	m := NewPhraseMatcher([]string{"new york", "los angeles"})
	got := m.Match("a flight from New York to Los Angeles")
	assert.ElementsMatch(t, []string{"new york", "los angeles"}, got)
}

func TestPhraseMatcherNoMatches(t *testing.T) {
	m := NewPhraseMatcher([]string{"new york"})
	assert.Empty(t, m.Match("a quiet afternoon in the garden"))
}
