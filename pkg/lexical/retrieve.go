package lexical

import (
	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// Retrieve scores every live document containing at least one query
// term and returns the k best by the configured BM25 variant, in
// descending-score order (ties broken by ascending doc ID, via
// pkg/topk).
func (idx *Index) Retrieve(query []string, params Params, k int) ([]topk.Result, error) {
	if len(query) == 0 {
		return nil, &errs.InvalidState{Msg: "empty query"}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.totalDocs == 0 {
		return nil, nil
	}

	avgLen := float64(idx.totalLen) / float64(idx.totalDocs)

	uniqueTerms := dedupe(query)
	idfs := make([]float64, len(uniqueTerms))
	entries := make([]*termEntry, len(uniqueTerms))
	for i, t := range uniqueTerms {
		idfs[i] = idx.idf(t)
		entries[i] = idx.postings[t]
	}

	// Union the candidate doc set across all query terms.
	candidates := make(map[uint32]struct{})
	for _, e := range entries {
		if e == nil {
			continue
		}
		it := e.docs.Iterator()
		for it.HasNext() {
			candidates[it.Next()] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	heap := topk.New(k)
	for docID := range candidates {
		docLen := idx.docLens[docID]
		var sum float64
		matched := 0
		var masks []uint32

		for i, e := range entries {
			if e == nil {
				continue
			}
			p, ok := e.payloads[docID]
			if !ok {
				continue
			}
			matched++
			sum += score(params.Mode, p.TermFreq, docLen, avgLen, params.K1, params.B, params.Delta, idfs[i])
			masks = append(masks, p.SegMask)
		}
		if matched == 0 {
			continue
		}

		sum *= coverageMultiplier(matched, len(uniqueTerms), params.CoverageEpsilon, params.CoverageLambda)
		sum *= proximityMultiplier(masks, params.ProximityAlpha, params.MaxSegments)

		heap.PushIfBetter(float32(sum), docID)
	}

	return heap.DrainSorted(), nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
