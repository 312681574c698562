// Package sparse implements a sparse-vector retriever scored by sparse
// dot product (e.g. SPLADE-style lexical-weight vectors), as a second
// first-stage retrieval path alongside dense ANN and inverted-index
// BM25. Scoring is grounded on pkg/resorank/vector.go's guard style
// (empty/dimension checks before any math) and uses pkg/simd.SparseDot
// for the actual kernel plus pkg/topk for bounded top-k selection.
package sparse

import (
	"sync"

	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/simd"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// Vector is a sparse vector as parallel sorted-index/value slices.
type Vector struct {
	Indices []uint32
	Values  []float32
}

// Store holds sparse document vectors for dot-product retrieval.
type Store struct {
	mu   sync.RWMutex
	docs map[uint32]Vector
}

// New creates an empty sparse vector store.
func New() *Store {
	return &Store{docs: make(map[uint32]Vector)}
}

// Add inserts or replaces docID's sparse vector. Indices must be sorted
// strictly increasing (caller contract; SparseDot behavior on violation
// is undefined).
func (s *Store) Add(docID uint32, v Vector) error {
	if len(v.Indices) != len(v.Values) {
		return &errs.LengthMismatch{What: "sparse vector indices/values", A: len(v.Indices), B: len(v.Values)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docID] = v
	return nil
}

// Delete removes docID's sparse vector, if present.
func (s *Store) Delete(docID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
}

// Len returns the number of indexed vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Retrieve scores every indexed vector by sparse dot product against
// query and returns the k best.
func (s *Store) Retrieve(query Vector, k int) ([]topk.Result, error) {
	if len(query.Indices) == 0 {
		return nil, &errs.InvalidState{Msg: "empty query"}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 {
		return nil, nil
	}

	heap := topk.New(k)
	for docID, v := range s.docs {
		sc := simd.SparseDot(query.Indices, query.Values, v.Indices, v.Values)
		heap.PushIfBetter(sc, docID)
	}
	return heap.DrainSorted(), nil
}
