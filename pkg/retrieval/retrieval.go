// Package retrieval is the public façade named in the external
// interface: retrieve_bm25, retrieve_bm25_prf, retrieve_dense,
// retrieve_sparse, retrieve_hnsw, retrieve_ivfpq, and their
// batch_retrieve_* variants.
// It performs the query-level guard checks (empty query, empty index)
// centrally, using the shared errs.ErrEmptyQuery/errs.ErrEmptyIndex
// sentinels, and converts the two ANN indexes' native (higher-is-better)
// similarity scores to the ascending-distance convention the external
// interface names for them, via distance = 1 - score. Every underlying
// package (pkg/lexical, pkg/sparse, pkg/dense, pkg/ann/hnsw,
// pkg/ann/ivfpq) remains independently usable without this façade; this
// layer only adds the consistent boundary contract.
package retrieval

import (
	"sync"

	"github.com/kittclouds/retrieval-core/pkg/ann/hnsw"
	"github.com/kittclouds/retrieval-core/pkg/ann/ivfpq"
	"github.com/kittclouds/retrieval-core/pkg/dense"
	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/lexical"
	"github.com/kittclouds/retrieval-core/pkg/sparse"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// Hit is one scored (or distanced) result, the common shape every
// retrieve_* function returns.
type Hit struct {
	DocID uint32
	// Value is a similarity score for BM25/sparse/dense (higher is
	// better) or a distance for HNSW/IVF-PQ (lower is better), per the
	// external interface's stated convention.
	Value float32
}

func fromScore(results []topk.Result) []Hit {
	out := make([]Hit, len(results))
	for i, r := range results {
		out[i] = Hit{DocID: r.DocID, Value: r.Score}
	}
	return out
}

// fromScoreAsDistance converts a higher-is-better similarity score into
// the ascending-distance convention retrieve_hnsw/retrieve_ivfpq use,
// via distance = 1 - score.
func fromScoreAsDistance(results []topk.Result) []Hit {
	out := make([]Hit, len(results))
	for i, r := range results {
		out[i] = Hit{DocID: r.DocID, Value: 1 - r.Score}
	}
	return out
}

// RetrieveBM25 runs lexical.Index.Retrieve, the exact-scan scoring path.
func RetrieveBM25(idx *lexical.Index, queryTerms []string, params lexical.Params, k int) ([]Hit, error) {
	if len(queryTerms) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if idx.DocCount() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := idx.Retrieve(queryTerms, params, k)
	if err != nil {
		return nil, err
	}
	return fromScore(results), nil
}

// RetrieveBM25WAND is RetrieveBM25 via the max-score-pruned WAND path;
// same contract and, for a fixed index and query, an identical ranking.
func RetrieveBM25WAND(idx *lexical.Index, queryTerms []string, params lexical.Params, k int) ([]Hit, error) {
	if len(queryTerms) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if idx.DocCount() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := idx.RetrieveWAND(queryTerms, params, k)
	if err != nil {
		return nil, err
	}
	return fromScore(results), nil
}

// RetrieveBM25PRF is RetrieveBM25 followed by pseudo-relevance-feedback
// query expansion and a second retrieval pass (lexical.Index.ExpandAndRetrieve).
func RetrieveBM25PRF(idx *lexical.Index, queryTerms []string, params lexical.Params, expander lexical.QueryExpander, initialK, finalK int) ([]Hit, error) {
	if len(queryTerms) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if idx.DocCount() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := idx.ExpandAndRetrieve(queryTerms, params, expander, initialK, finalK)
	if err != nil {
		return nil, err
	}
	return fromScore(results), nil
}

// RetrieveSparse runs sparse.Store.Retrieve.
func RetrieveSparse(store *sparse.Store, query sparse.Vector, k int) ([]Hit, error) {
	if len(query.Indices) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if store.Len() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := store.Retrieve(query, k)
	if err != nil {
		return nil, err
	}
	return fromScore(results), nil
}

// RetrieveDense runs dense.Store.Search, the exact brute-force cosine
// path (the generic "dense retriever" the external interface names,
// distinct from the two ANN-specific entry points below).
func RetrieveDense(store *dense.Store, query []float32, k int) ([]Hit, error) {
	if len(query) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if store.Len() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := store.Search(query, k)
	if err != nil {
		return nil, err
	}
	return fromScore(results), nil
}

// RetrieveHNSW runs hnsw.Graph.Search, returning ascending distances.
func RetrieveHNSW(g *hnsw.Graph, query []float32, k int, ef int) ([]Hit, error) {
	if len(query) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if g.Len() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := g.Search(query, k, ef)
	if err != nil {
		return nil, err
	}
	return fromScoreAsDistance(results), nil
}

// RetrieveHNSWFiltered is RetrieveHNSW restricted to categories matching
// required under AND semantics.
func RetrieveHNSWFiltered(g *hnsw.Graph, query []float32, k int, ef int, required uint64) ([]Hit, error) {
	if len(query) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if g.Len() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := g.FilteredSearch(query, k, ef, required)
	if err != nil {
		return nil, err
	}
	return fromScoreAsDistance(results), nil
}

// RetrieveIVFPQ runs ivfpq.Index.Search, returning ascending distances.
func RetrieveIVFPQ(idx *ivfpq.Index, query []float32, k int) ([]Hit, error) {
	if len(query) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if idx.Len() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := idx.Search(query, k)
	if err != nil {
		return nil, err
	}
	return fromScoreAsDistance(results), nil
}

// RetrieveIVFPQFiltered is RetrieveIVFPQ restricted to categories
// matching required under AND semantics.
func RetrieveIVFPQFiltered(idx *ivfpq.Index, query []float32, k int, required uint64) ([]Hit, error) {
	if len(query) == 0 {
		return nil, errs.ErrEmptyQuery
	}
	if idx.Len() == 0 {
		return nil, errs.ErrEmptyIndex
	}
	results, err := idx.FilteredSearch(query, k, required)
	if err != nil {
		return nil, err
	}
	return fromScoreAsDistance(results), nil
}

// BatchQuery pairs a query with its own k, so a batch can mix result
// widths in one call.
type BatchQuery[Q any] struct {
	Query Q
	K     int
}

// BatchRetrieve fans a slice of one-retriever-type queries out across
// goroutines (data-parallel over the candidate query set, matching the
// concurrency model's batch_retrieve_* fan-out contract) and returns one
// result slice per query, in input order. A query's own error does not
// fail the batch; it is reported in the second returned slice at the
// same index.
func BatchRetrieve[Q any](queries []BatchQuery[Q], run func(Q, int) ([]Hit, error)) ([][]Hit, []error) {
	results := make([][]Hit, len(queries))
	errsOut := make([]error, len(queries))

	var wg sync.WaitGroup
	wg.Add(len(queries))
	for i, q := range queries {
		go func(i int, q BatchQuery[Q]) {
			defer wg.Done()
			results[i], errsOut[i] = run(q.Query, q.K)
		}(i, q)
	}
	wg.Wait()

	return results, errsOut
}
