package lexical

import (
	"math"
	"sort"

	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// ExpansionMethod selects how ExpandAndRetrieve scores candidate
// expansion terms drawn from an initial retrieval's top feedback
// documents.
type ExpansionMethod int

const (
	// IDFWeighted scores a candidate term by tf * ln(N/df): its raw
	// frequency across feedback documents, weighted by rarity.
	IDFWeighted ExpansionMethod = iota
	// RobertsonSelection scores by the Robertson Selection Value,
	// treating every feedback document as relevant (R is the number of
	// feedback documents, r the number of them carrying the term):
	// log((r+0.5)/(R-r+0.5)) * log((n-df+0.5)/(df-r+0.5)).
	RobertsonSelection
	// TermFrequency scores a candidate term by its raw occurrence count
	// across feedback documents, ignoring rarity.
	TermFrequency
)

// QueryExpander configures pseudo-relevance feedback query expansion.
type QueryExpander struct {
	PRFDepth          int     // feedback documents consulted; 0 => 5
	MaxExpansionTerms int     // terms appended to the query; 0 => 5
	ExpansionWeight   float64 // not read by ExpandAndRetrieve: expanded terms score with the same weight as the original ones
	Method            ExpansionMethod
}

// DefaultQueryExpander returns the commonly used PRF depth 5 and top-5
// IDF-weighted expansion terms, with ExpansionWeight set to 0.5.
func DefaultQueryExpander() QueryExpander {
	return QueryExpander{PRFDepth: 5, MaxExpansionTerms: 5, ExpansionWeight: 0.5, Method: IDFWeighted}
}

func (e QueryExpander) prfDepth() int {
	if e.PRFDepth <= 0 {
		return 5
	}
	return e.PRFDepth
}

func (e QueryExpander) maxTerms() int {
	if e.MaxExpansionTerms <= 0 {
		return 5
	}
	return e.MaxExpansionTerms
}

// ExpandAndRetrieve runs a pseudo-relevance-feedback retrieval: an
// initial run of query scores the top prfDepth documents, harvests
// candidate expansion terms from them, scores and selects up to
// maxExpansionTerms of those (by expander.Method) that aren't already
// in query, appends them, and re-retrieves with the expanded query.
// Returns the initial results unchanged if the initial run is empty —
// there is nothing to expand from.
func (idx *Index) ExpandAndRetrieve(query []string, params Params, expander QueryExpander, initialK, finalK int) ([]topk.Result, error) {
	initial, err := idx.Retrieve(query, params, initialK)
	if err != nil || len(initial) == 0 {
		return initial, err
	}

	depth := expander.prfDepth()
	if depth > len(initial) {
		depth = len(initial)
	}
	feedback := make([]uint32, depth)
	for i := 0; i < depth; i++ {
		feedback[i] = initial[i].DocID
	}

	candidates := idx.termsFromFeedbackDocs(feedback)
	expansionTerms := idx.scoreExpansionTerms(candidates, feedback, expander.Method)

	seen := make(map[string]bool, len(query))
	for _, t := range query {
		seen[t] = true
	}
	expanded := append([]string{}, query...)
	added := 0
	for _, t := range expansionTerms {
		if seen[t] || added >= expander.maxTerms() {
			continue
		}
		expanded = append(expanded, t)
		seen[t] = true
		added++
	}

	return idx.Retrieve(expanded, params, finalK)
}

// termsFromFeedbackDocs scans every indexed term's postings and
// includes the term once if any feedback doc carries it.
func (idx *Index) termsFromFeedbackDocs(feedback []uint32) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []string
	for term, e := range idx.postings {
		for _, d := range feedback {
			if e.docs.Contains(d) {
				out = append(out, term)
				break
			}
		}
	}
	return out
}

// scoreExpansionTerms scores candidates by method and returns them in
// descending-score order, ties broken by term for determinism.
func (idx *Index) scoreExpansionTerms(candidates []string, feedback []uint32, method ExpansionMethod) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		term  string
		score float64
	}
	out := make([]scored, 0, len(candidates))
	for _, term := range candidates {
		e, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := int(e.docs.GetCardinality())
		var r int
		var tf uint32
		for _, d := range feedback {
			if p, ok := e.payloads[d]; ok {
				r++
				tf += p.TermFreq
			}
		}

		var score float64
		switch method {
		case RobertsonSelection:
			R := float64(len(feedback))
			rf := float64(r)
			n := float64(idx.totalDocs)
			dff := float64(df)
			score = safeLog((rf+0.5)/(R-rf+0.5)) * safeLog((n-dff+0.5)/maxFloat(dff-rf+0.5, 0.5))
		case TermFrequency:
			score = float64(tf)
		default:
			n := float64(idx.totalDocs)
			dff := maxFloat(float64(df), 1)
			score = float64(tf) * safeLog(n/dff)
		}
		out = append(out, scored{term: term, score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].term < out[j].term
	})

	terms := make([]string, len(out))
	for i, s := range out {
		terms[i] = s.term
	}
	return terms
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
