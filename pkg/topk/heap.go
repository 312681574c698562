// Package topk implements a bounded min-heap top-k selection strategy:
// keep the k best (score, id) pairs seen so far, NaN filtered upstream,
// ties broken by ascending id for determinism.
//
// This is a small, exact-contract data structure (ordering,
// replace-root-if-better semantics) that the standard library's
// container/heap expresses directly; no third-party priority-queue in
// the example pack adds anything over that (see DESIGN.md).
package topk

import "container/heap"

// Result is one scored hit.
type Result struct {
	Score float32
	DocID uint32
}

// Heap is a bounded min-heap of at most K results, ordered so the worst
// (lowest-score, tie-broken by highest doc ID) result is always at the
// root and is the first candidate for eviction.
type Heap struct {
	k    int
	data resultSlice
}

// New creates a bounded heap that retains the top k results.
func New(k int) *Heap {
	return &Heap{k: k, data: make(resultSlice, 0, k)}
}

// Len returns the number of results currently held (<= k).
func (h *Heap) Len() int { return len(h.data) }

// Full reports whether the heap has reached its k-result capacity.
func (h *Heap) Full() bool { return len(h.data) >= h.k }

// WorstScore returns the score of the currently worst-kept result (the
// heap root). Only meaningful once Full(); callers use it as a pruning
// threshold before the heap has accepted a given candidate.
func (h *Heap) WorstScore() float32 {
	if len(h.data) == 0 {
		return 0
	}
	return h.data[0].Score
}

// PushIfBetter pushes (score, docID) if the heap is under capacity, or
// replaces the root if score is better than the current worst kept
// result. NaN scores must be filtered by the caller before calling this.
func (h *Heap) PushIfBetter(score float32, docID uint32) {
	if h.k <= 0 {
		return
	}
	r := Result{Score: score, DocID: docID}
	if len(h.data) < h.k {
		heap.Push(&h.data, r)
		return
	}
	if less(h.data[0], r) {
		h.data[0] = r
		heap.Fix(&h.data, 0)
	}
}

// DrainSorted empties the heap and returns its contents sorted by
// descending score (ties broken by ascending doc ID).
func (h *Heap) DrainSorted() []Result {
	out := make([]Result, len(h.data))
	copy(out, h.data)
	h.data = h.data[:0]

	// insertion sort is fine: k is small by construction (bounded top-k).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && moreRelevant(out[j], out[j-1]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// less reports whether a is strictly worse than b under the min-heap
// ordering: lower score is worse; among equal scores, the higher doc ID
// is considered worse (so the lower doc ID survives ties, satisfying the
// ascending-doc-ID tiebreak rule).
func less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

// moreRelevant reports whether a should sort before b in the final
// descending-score, ascending-doc-ID output order.
func moreRelevant(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

type resultSlice []Result

func (s resultSlice) Len() int           { return len(s) }
func (s resultSlice) Less(i, j int) bool { return less(s[i], s[j]) }
func (s resultSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s *resultSlice) Push(x interface{}) { *s = append(*s, x.(Result)) }
func (s *resultSlice) Pop() interface{} {
	old := *s
	n := len(old)
	v := old[n-1]
	*s = old[:n-1]
	return v
}
