// Package dense is an exact (brute-force) dense-vector retriever: a
// doc_id → vector store scored by cosine similarity over a bounded
// top-k heap. It exists both as the literal "generic dense retriever"
// collaborator the external interface names (retrieve_dense, as
// opposed to the specific retrieve_hnsw/retrieve_ivfpq entry points) and
// as a recall ground truth for testing the two approximate indexes
// against. Grounded directly on pkg/sparse (this module's own sparse
// counterpart, built the same session): identical doc_id-keyed store
// and bounded-heap top-k shape, scored with pkg/simd.Cosine instead of
// pkg/simd.SparseDot.
package dense

import (
	"sync"

	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/simd"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// Store holds dense vectors keyed by doc ID, all of a fixed dimension
// set by the first Add.
type Store struct {
	mu   sync.RWMutex
	dim  int
	docs map[uint32][]float32
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[uint32][]float32)}
}

// Add inserts or replaces docID's vector. The first Add fixes the
// store's dimension; later calls with a mismatched length fail.
func (s *Store) Add(docID uint32, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.docs) == 0 && s.dim == 0 {
		s.dim = len(vec)
	} else if len(vec) != s.dim {
		return &errs.DimensionMismatch{QueryDim: len(vec), DocDim: s.dim}
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.docs[docID] = cp
	return nil
}

// Delete removes docID's vector, if present.
func (s *Store) Delete(docID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search returns the k documents with highest cosine similarity to
// query, descending.
func (s *Store) Search(query []float32, k int) ([]topk.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, &errs.DimensionMismatch{QueryDim: len(query), DocDim: s.dim}
	}

	heap := topk.New(k)
	for id, vec := range s.docs {
		heap.PushIfBetter(simd.Cosine(query, vec), id)
	}
	return heap.DrainSorted(), nil
}
