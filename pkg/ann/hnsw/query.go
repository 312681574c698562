package hnsw

import (
	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/topk"
)

// Search returns the k approximate nearest neighbors of query, expanding
// the layer-0 beam to ef candidates (ef defaults to max(k, 2*k) when <= 0).
func (g *Graph) Search(query []float32, k int, ef int) ([]topk.Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(query) != g.dim {
		return nil, errDimensionMismatch(g.dim, len(query))
	}
	if !g.hasEntry {
		return nil, nil
	}
	if ef <= 0 {
		ef = k * 2
	}
	if ef < k {
		ef = k
	}

	return g.search(query, k, ef, nil)
}

// FilteredSearch restricts results to nodes whose category mask matches
// required under AND semantics. Insert adds up to an intra-category
// edge budget of extra base-layer edges between same-category vectors,
// giving matching nodes direct links to each other. The layer-0 beam
// still walks through non-matching neighbors too (see searchLayer); the
// filter decides only which visited nodes enter the result set. If the
// graph's entry point doesn't itself match required, search switches
// to a node recorded as carrying a required category instead.
func (g *Graph) FilteredSearch(query []float32, k int, ef int, required uint64) ([]topk.Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(query) != g.dim {
		return nil, errDimensionMismatch(g.dim, len(query))
	}
	if !g.hasEntry {
		return nil, nil
	}
	if ef <= 0 {
		ef = k * 2
	}
	if ef < k {
		ef = k
	}

	filterFn := func(id uint32) bool {
		n, ok := g.nodes[id]
		return ok && n.category&required == required
	}

	entry := g.entryPoint
	if required != 0 {
		if en, ok := g.nodes[entry]; !ok || en.category&required != required {
			if alt, ok := g.categoryEntryPoint(required); ok {
				entry = alt
			}
		}
	}

	return g.searchFrom(entry, query, k, ef, filterFn)
}

func (g *Graph) search(query []float32, k, ef int, filterFn func(uint32) bool) ([]topk.Result, error) {
	return g.searchFrom(g.entryPoint, query, k, ef, filterFn)
}

// searchFrom runs the hierarchical descent from entry down to layer 0,
// then a bounded beam search there, returning the k best by similarity.
// The upper-layer greedy descent is skipped when entry isn't the
// graph's own entry point (an alternate category entry point has no
// meaningful position in that global hierarchy to descend from; it
// goes straight to its own layer-0 neighborhood).
func (g *Graph) searchFrom(entry uint32, query []float32, k, ef int, filterFn func(uint32) bool) ([]topk.Result, error) {
	ep := []uint32{entry}
	if entry == g.entryPoint {
		for l := g.topLayer; l > 0; l-- {
			found := g.searchLayer(ep, query, 1, l, nil)
			if len(found) > 0 {
				ep = []uint32{found[0].id}
			}
		}
	}

	found := g.searchLayer(ep, query, ef, 0, filterFn)
	heap := topk.New(k)
	for _, c := range found {
		// distance is 1 - cosine; convert back to a similarity score so
		// higher-is-better holds throughout pkg/topk.
		heap.PushIfBetter(1-c.dist, c.id)
	}
	return heap.DrainSorted(), nil
}

// Delete removes id from the graph: its own entry is dropped and it is
// pruned out of every neighbor list that referenced it. The entry point
// is reassigned arbitrarily if it was the one deleted.
func (g *Graph) Delete(id uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return &errs.InvalidState{Msg: "graph is finalized, read-only"}
	}
	if _, ok := g.nodes[id]; !ok {
		return &errs.NotFound{Path: "node"}
	}
	delete(g.nodes, id)

	for _, n := range g.nodes {
		for l := range n.neighbors {
			n.neighbors[l] = removeID(n.neighbors[l], id)
		}
	}

	if g.entryPoint == id {
		g.hasEntry = false
		for other := range g.nodes {
			g.entryPoint = other
			g.hasEntry = true
			break
		}
	}
	return nil
}

func removeID(ids []uint32, target uint32) []uint32 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
