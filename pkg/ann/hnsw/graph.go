// Package hnsw implements a hierarchical navigable small world graph for
// approximate nearest-neighbor search over dense float32 vectors.
//
// The graph is an FS-backed persisted index with Add/Search/Save/Load,
// encoded with encoding/gob and written via hackpadfs, with a
// dimension-mismatch guard and fmt.Errorf("...: %w") wrapping
// throughout. The graph algorithm itself — multi-layer structure,
// greedy upper-layer descent, bounded beam search at layer 0, and
// neighbor-diversification pruning on insert — is implemented from
// scratch (see DESIGN.md).
package hnsw

import (
	"math"
	"math/rand"
	"sync"

	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/simd"
)

// Diversification selects the neighbor-pruning heuristic Insert applies
// when a node has more candidate neighbors at a layer than it can keep.
type Diversification int

const (
	// DiversifyRND is the relative-neighborhood heuristic: reject a
	// candidate if it is closer to an already-selected neighbor than to
	// the query itself.
	DiversifyRND Diversification = iota
	// DiversifyMOND rejects a candidate whose angular separation from an
	// already-selected neighbor falls under MinAngleDegrees.
	DiversifyMOND
	// DiversifyRRND relaxes RND by a factor of RRNDAlpha: a candidate is
	// rejected only if an already-selected neighbor covers it by more
	// than that margin.
	DiversifyRRND
)

// Seeding selects how Insert obtains the entry points it descends from
// at each layer.
type Seeding int

const (
	// SeedGreedy descends one best candidate at a time, the standard
	// HNSW insertion seed.
	SeedGreedy Seeding = iota
	// SeedStackedNSW keeps the full EfConstruction-wide beam as the seed
	// set carried down into the next layer, instead of narrowing to one.
	SeedStackedNSW
	// SeedKSampledRandom seeds with KSamples random existing nodes
	// instead of descending from the graph's entry point.
	SeedKSampledRandom
)

// Params tunes graph construction and search.
type Params struct {
	M              int // max neighbors per node per layer (except layer 0)
	M0             int // max neighbors per node at layer 0; defaults to 2*M
	EfConstruction int // candidate list size during insertion
	Seed           int64
	ML             float64 // layer-assignment normalization; 0 => 1/ln(2)

	Diversification Diversification
	MinAngleDegrees  float64 // MOND threshold; 0 => 60
	RRNDAlpha        float64 // RRND relaxation factor; 0 => 1.2

	SeedStrategy Seeding
	KSamples     int // SeedKSampledRandom sample size; 0 => 8

	// IntraCategoryFraction sets how many extra base-layer edges (as a
	// fraction 1/n of M0) a categorized vector gets to same-category
	// neighbors, on top of its ordinary edges. 0 => 4 (i.e. M0/4).
	IntraCategoryFraction int
}

// DefaultParams returns the commonly used M=16, efConstruction=200
// configuration, RND diversification, and greedy seeding.
func DefaultParams() Params {
	return Params{M: 16, M0: 32, EfConstruction: 200, Seed: 1}
}

type node struct {
	id        uint32
	vec       []float32
	layer     int
	neighbors [][]uint32 // neighbors[l] = neighbor IDs at layer l
	category  uint64     // optional filter bitmask, 0 if unused
}

// Graph is a mutable HNSW index. Zero value is not usable; construct
// with New.
type Graph struct {
	mu sync.RWMutex

	params Params
	dim    int

	nodes      map[uint32]*node
	entryPoint uint32
	hasEntry   bool
	topLayer   int

	// categoryEntry maps a category bit to one node id known to carry
	// it, giving filtered search an alternate entry point when the
	// graph's global entry point doesn't match the requested filter.
	categoryEntry map[uint]uint32

	rng *rand.Rand

	finalized bool
}

// New creates an empty graph with the given dimensionality and
// parameters.
func New(dim int, params Params) *Graph {
	return &Graph{
		params:        params,
		dim:           dim,
		nodes:         make(map[uint32]*node),
		categoryEntry: make(map[uint]uint32),
		rng:           rand.New(rand.NewSource(params.Seed)),
	}
}

// Dim returns the configured vector dimensionality.
func (g *Graph) Dim() int { return g.dim }

// Len returns the number of indexed vectors.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Finalize marks the graph read-only. Further Insert calls return an
// InvalidState error. Finalization is optional; most callers can Insert
// indefinitely, but segment building wants a hard cutover point.
func (g *Graph) Finalize() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalized = true
}

// defaultML is the normalization factor for the geometric layer draw,
// 1/ln(2), fixed regardless of M.
const defaultML = 1.0 / math.Ln2

func (g *Graph) assignLayer() int {
	// Standard HNSW geometric layer assignment: floor(-ln(U) * mL). The
	// draw is an 8-bit quantity: layers beyond 255 are clamped rather
	// than left to grow unbounded from a vanishingly likely low U.
	mL := g.params.ML
	if mL <= 0 {
		mL = defaultML
	}
	u := g.rng.Float64()
	if u <= 0 {
		u = 1e-12
	}
	layer := int(math.Floor(-math.Log(u) * mL))
	if layer > 255 {
		layer = 255
	}
	return layer
}

func (g *Graph) distance(a, b []float32) float32 {
	// 1 - cosine similarity: smaller is closer, matching Euclidean-style
	// min-heap ordering used throughout the search routines.
	return 1 - simd.Cosine(a, b)
}

func (g *Graph) maxNeighbors(layer int) int {
	if layer == 0 {
		if g.params.M0 <= 0 {
			return 2 * g.params.M
		}
		return g.params.M0
	}
	return g.params.M
}

// capacity is maxNeighbors(layer), widened for categorized nodes at
// layer 0 to make room for their intra-category edges.
func (g *Graph) capacity(n *node, layer int) int {
	max := g.maxNeighbors(layer)
	if layer == 0 && n.category != 0 {
		max += g.intraCategoryEdges(max)
	}
	return max
}

func (g *Graph) intraCategoryEdges(m0 int) int {
	frac := g.params.IntraCategoryFraction
	if frac <= 0 {
		frac = 4
	}
	return m0 / frac
}

// recordCategoryEntry remembers id as a reachable node for every
// category bit set in category, the first time that bit is seen.
func (g *Graph) recordCategoryEntry(id uint32, category uint64) {
	if category == 0 {
		return
	}
	for bit := uint(0); bit < 64; bit++ {
		if category&(1<<bit) == 0 {
			continue
		}
		if _, ok := g.categoryEntry[bit]; !ok {
			g.categoryEntry[bit] = id
		}
	}
}

// categoryEntryPoint returns a node known to carry every bit set in
// required, if one was recorded.
func (g *Graph) categoryEntryPoint(required uint64) (uint32, bool) {
	for bit := uint(0); bit < 64; bit++ {
		if required&(1<<bit) == 0 {
			continue
		}
		id, ok := g.categoryEntry[bit]
		if !ok {
			continue
		}
		if n, ok := g.nodes[id]; ok && n.category&required == required {
			return id, true
		}
	}
	return 0, false
}

var errDimensionMismatch = func(want, got int) error {
	return &errs.DimensionMismatch{QueryDim: got, DocDim: want}
}
