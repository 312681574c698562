// Package tokenize is a reference word tokenizer used by this module's
// own integration tests and examples. Tokenization is caller-owned: the
// lexical index (pkg/lexical) accepts pre-tokenized term slices and never
// imports this package itself. It normalizes and stop-word-filters text,
// and can additionally scan for entity-like multi-word phrases via an
// Aho-Corasick automaton, so segment/BM25 round-trip tests can exercise
// realistic multi-term documents without hand-listing terms.
package tokenize

import (
	"strings"
	"unicode"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Normalize lowercases text, collapses curly apostrophes to straight
// ones, and folds every run of non-letter/non-digit/non-apostrophe
// characters to a single space.
func Normalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	for _, ch := range s {
		c := unicode.ToLower(ch)
		switch {
		case c == '’':
			out.WriteRune('\'')
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'':
			out.WriteRune(c)
		default:
			out.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}

// StopWords filtered out of Tokenize's output. Kept small and
// English-specific.
var StopWords = map[string]bool{
	"the": true, "of": true, "and": true, "a": true, "an": true,
	"to": true, "in": true, "on": true, "for": true, "at": true, "by": true,
	"is": true, "it": true, "as": true, "be": true, "was": true,
	"are": true, "been": true, "with": true, "from": true, "into": true,
	"that": true, "this": true, "has": true, "have": true, "had": true,
	"his": true, "her": true, "its": true, "their": true,
}

// Tokenize normalizes text and splits it into whitespace-delimited
// terms, dropping stop words and empty tokens.
func Tokenize(text string) []string {
	words := strings.Fields(Normalize(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 0 && !StopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// PhraseMatcher scans normalized text for a fixed vocabulary of
// multi-word phrases using a single Aho-Corasick automaton.
type PhraseMatcher struct {
	ac      ahocorasick.AhoCorasick
	phrases []string
}

// NewPhraseMatcher builds a matcher over phrases (each already
// whitespace/casing-normalized by the caller, or run through Normalize
// first).
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return &PhraseMatcher{ac: builder.Build(phrases), phrases: phrases}
}

// Match returns every phrase (in vocabulary order of first occurrence)
// found within text after normalization.
func (m *PhraseMatcher) Match(text string) []string {
	normalized := Normalize(text)
	matches := m.ac.FindAll(normalized)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, match := range matches {
		p := m.phrases[match.Pattern()]
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
