// Package ivfpq implements an IVF-PQ (inverted file with product
// quantization) approximate nearest-neighbor index: a k-means coarse
// quantizer partitions vectors into clusters, each with an inverted
// list of member doc IDs; vectors are optionally compressed into
// product-quantization codes for asymmetric distance computation during
// search. The inverted list is an int-keyed map of postings lists, with
// distance math built on pkg/simd and bounded selection on pkg/topk.
package ivfpq

import (
	"math/rand"
	"sync"

	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/simd"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// Params configures index construction.
type Params struct {
	NClusters    int // coarse quantizer cluster count
	NProbe       int // clusters visited per search
	KMeansIters  int
	Seed         int64
	UsePQ        bool
	PQSubvectors int // number of subvector splits, must divide dim
	PQBits       int // bits per subvector code (<=8 supported)
}

// DefaultParams returns a modest configuration suitable for a few
// thousand vectors: 16 clusters, probing 4, no PQ compression.
func DefaultParams() Params {
	return Params{NClusters: 16, NProbe: 4, KMeansIters: 10, Seed: 1}
}

type listEntry struct {
	docID    uint32
	vec      []float32 // full vector, kept when UsePQ is false
	code     []byte    // PQ code, populated when UsePQ is true
	category uint64
}

// Index is a trained (or training) IVF-PQ index.
type Index struct {
	mu sync.RWMutex

	params Params
	dim    int

	centroids [][]float32
	lists     [][]listEntry
	// clusterMask is the OR of every member's category bitmask, enabling
	// a cheap whole-cluster skip during filtered search before
	// per-vector filtering.
	clusterMask []uint64

	codebooks [][][]float32 // codebooks[subvector][code] = centroid

	trained bool
}

// New creates an untrained index for dim-dimensional vectors.
func New(dim int, params Params) *Index {
	return &Index{params: params, dim: dim}
}

// Train runs k-means over vecs to build the coarse quantizer (and, if
// UsePQ, per-subvector PQ codebooks via k-means on the subvectors of
// vecs themselves; codes are not taken on residuals from the coarse
// centroid). Must be called before Add.
func (idx *Index) Train(vecs [][]float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(vecs) == 0 {
		return &errs.InvalidState{Msg: "cannot train on zero vectors"}
	}
	for _, v := range vecs {
		if len(v) != idx.dim {
			return &errs.DimensionMismatch{QueryDim: len(v), DocDim: idx.dim}
		}
	}

	k := idx.params.NClusters
	if k > len(vecs) {
		k = len(vecs)
	}
	rng := rand.New(rand.NewSource(idx.params.Seed))
	idx.centroids = kmeans(vecs, k, idx.params.KMeansIters, rng)
	idx.lists = make([][]listEntry, len(idx.centroids))
	idx.clusterMask = make([]uint64, len(idx.centroids))

	if idx.params.UsePQ {
		idx.codebooks = trainPQ(vecs, idx.params.PQSubvectors, idx.params.PQBits, idx.params.KMeansIters, rng)
	}

	idx.trained = true
	return nil
}

// Add assigns vec's nearest centroid and appends it to that cluster's
// inverted list.
func (idx *Index) Add(docID uint32, vec []float32, category uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.trained {
		return &errs.InvalidState{Msg: "index not trained"}
	}
	if len(vec) != idx.dim {
		return &errs.DimensionMismatch{QueryDim: len(vec), DocDim: idx.dim}
	}

	c := idx.nearestCentroid(vec)
	e := listEntry{docID: docID, category: category}
	if idx.params.UsePQ {
		e.code = encodePQ(vec, idx.codebooks)
	} else {
		e.vec = vec
	}
	idx.lists[c] = append(idx.lists[c], e)
	idx.clusterMask[c] |= category
	return nil
}

func (idx *Index) nearestCentroid(vec []float32) int {
	best := 0
	bestDist := float32(1e38)
	for i, c := range idx.centroids {
		d := 1 - simd.Cosine(vec, c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Search probes the NProbe closest clusters (or all, if NProbe <= 0) and
// returns the k best matches by exact (UsePQ=false) or asymmetric PQ
// distance.
func (idx *Index) Search(query []float32, k int) ([]topk.Result, error) {
	return idx.FilteredSearch(query, k, 0)
}

// FilteredSearch is Search restricted to entries whose category mask
// satisfies required under AND semantics; clusters whose aggregate
// clusterMask cannot possibly satisfy required are skipped entirely.
func (idx *Index) FilteredSearch(query []float32, k int, required uint64) ([]topk.Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained {
		return nil, &errs.InvalidState{Msg: "index not trained"}
	}
	if len(query) != idx.dim {
		return nil, &errs.DimensionMismatch{QueryDim: len(query), DocDim: idx.dim}
	}

	order := idx.centroidsByDistance(query)
	nprobe := idx.params.NProbe
	if nprobe <= 0 || nprobe > len(order) {
		nprobe = len(order)
	}

	var table [][]float32
	if idx.params.UsePQ {
		table = pqDistanceTable(query, idx.codebooks)
	}

	heap := topk.New(k)
	for _, c := range order[:nprobe] {
		if required != 0 && idx.clusterMask[c]&required != required {
			continue
		}
		for _, e := range idx.lists[c] {
			if required != 0 && e.category&required != required {
				continue
			}
			var score float32
			if idx.params.UsePQ {
				score = -pqAsymmetricDistance(table, e.code)
			} else {
				score = simd.Cosine(query, e.vec)
			}
			heap.PushIfBetter(score, e.docID)
		}
	}
	return heap.DrainSorted(), nil
}

func (idx *Index) centroidsByDistance(query []float32) []int {
	type cd struct {
		idx  int
		dist float32
	}
	cds := make([]cd, len(idx.centroids))
	for i, c := range idx.centroids {
		cds[i] = cd{idx: i, dist: 1 - simd.Cosine(query, c)}
	}
	for i := 1; i < len(cds); i++ {
		for j := i; j > 0 && cds[j].dist < cds[j-1].dist; j-- {
			cds[j-1], cds[j] = cds[j], cds[j-1]
		}
	}
	out := make([]int, len(cds))
	for i, c := range cds {
		out[i] = c.idx
	}
	return out
}

// Len returns the total number of indexed vectors across all clusters.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, l := range idx.lists {
		n += len(l)
	}
	return n
}
