package lexical

import (
	"sort"

	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// postingIterator walks one term's sorted doc IDs with Seek/Next, along
// with a precomputed max possible per-doc contribution.
type postingIterator struct {
	term     string
	docs     []uint32
	pos      int
	maxScore float64
	entry    *termEntry
}

func (it *postingIterator) current() (uint32, bool) {
	if it.pos >= len(it.docs) {
		return 0, false
	}
	return it.docs[it.pos], true
}

func (it *postingIterator) next() {
	it.pos++
}

func (it *postingIterator) seek(target uint32) {
	for it.pos < len(it.docs) && it.docs[it.pos] < target {
		it.pos++
	}
}

// RetrieveWAND is an alternate retrieval path implementing max-score
// (WAND) pruning: each term's posting list carries a precomputed upper
// bound on its per-document contribution, terms are ordered by current
// doc ID, and a running threshold (the k-th best score found so far)
// lets whole postings be skipped once the sum of remaining upper bounds
// can no longer beat it.
//
// Results match Retrieve's ranking (same scoring function); this path
// trades a small amount of extra bookkeeping for sublinear-in-practice
// candidate scanning on large postings. The default retrieval path
// remains Retrieve.
func (idx *Index) RetrieveWAND(query []string, params Params, k int) ([]topk.Result, error) {
	if len(query) == 0 {
		return nil, &errs.InvalidState{Msg: "empty query"}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.totalDocs == 0 || k <= 0 {
		return nil, nil
	}
	avgLen := float64(idx.totalLen) / float64(idx.totalDocs)

	uniqueTerms := dedupe(query)
	var iters []*postingIterator
	idfByTerm := make(map[string]float64, len(uniqueTerms))

	for _, t := range uniqueTerms {
		e := idx.postings[t]
		idfByTerm[t] = idx.idf(t)
		if e == nil || e.docs.IsEmpty() {
			continue
		}
		docs := sortedDocs(e)
		maxTF := uint32(0)
		for _, p := range e.payloads {
			if p.TermFreq > maxTF {
				maxTF = p.TermFreq
			}
		}
		ub := score(params.Mode, maxTF, 1, avgLen, params.K1, params.B, params.Delta, idfByTerm[t])
		iters = append(iters, &postingIterator{term: t, docs: docs, maxScore: ub, entry: e})
	}
	if len(iters) == 0 {
		return nil, nil
	}

	heap := topk.New(k)
	threshold := float32(0)
	// The per-term bounds leave out the coverage and proximity
	// multipliers, which can raise a document's score, so pruning is
	// applied only while both are disabled.
	prune := params.CoverageLambda == 0 && params.ProximityAlpha == 0

	for {
		sort.Slice(iters, func(i, j int) bool {
			di, oki := iters[i].current()
			dj, okj := iters[j].current()
			if !oki {
				return false
			}
			if !okj {
				return true
			}
			return di < dj
		})

		if _, ok := iters[0].current(); !ok {
			break
		}

		var upperBoundSum float64
		pivot := -1
		pivotDoc := uint32(0)
		for i, it := range iters {
			d, ok := it.current()
			if !ok {
				break
			}
			upperBoundSum += it.maxScore
			if heap.Len() < k || !prune || float32(upperBoundSum) > threshold {
				pivot = i
				pivotDoc = d
				break
			}
		}
		if pivot == -1 {
			break
		}

		// Check whether iters[0]'s doc ID equals the pivot's: if so we
		// have a real candidate to fully score; otherwise advance the
		// iterator furthest behind up to pivotDoc.
		d0, _ := iters[0].current()
		if d0 == pivotDoc {
			docLen := idx.docLens[pivotDoc]
			var sum float64
			matched := 0
			var masks []uint32
			for _, it := range iters {
				d, ok := it.current()
				if !ok || d != pivotDoc {
					continue
				}
				p := it.entry.payloads[pivotDoc]
				matched++
				sum += score(params.Mode, p.TermFreq, docLen, avgLen, params.K1, params.B, params.Delta, idfByTerm[it.term])
				masks = append(masks, p.SegMask)
			}
			sum *= coverageMultiplier(matched, len(uniqueTerms), params.CoverageEpsilon, params.CoverageLambda)
			sum *= proximityMultiplier(masks, params.ProximityAlpha, params.MaxSegments)

			heap.PushIfBetter(float32(sum), pivotDoc)
			if heap.Full() {
				threshold = heap.WorstScore()
			}
			for _, it := range iters {
				if d, ok := it.current(); ok && d == pivotDoc {
					it.next()
				}
			}
		} else {
			iters[0].seek(pivotDoc)
		}
	}

	return heap.DrainSorted(), nil
}

func sortedDocs(e *termEntry) []uint32 {
	out := make([]uint32, 0, e.docs.GetCardinality())
	it := e.docs.Iterator()
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}
