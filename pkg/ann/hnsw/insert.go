package hnsw

import (
	"math"

	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/simd"
)

// Insert adds id/vec to the graph. category is an optional 64-bit
// filter mask (0 if unused) consulted by filtered search. Re-inserting
// an existing id replaces its vector and reruns layer assignment,
// leaving stale neighbor edges to be cleaned up by the next Insert's
// diversification pass touching them (acceptable churn: the graph
// remains a valid, if temporarily looser, navigable structure).
func (g *Graph) Insert(id uint32, vec []float32, category uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return &errs.InvalidState{Msg: "graph is finalized, read-only"}
	}
	if len(vec) != g.dim {
		return errDimensionMismatch(g.dim, len(vec))
	}

	layer := g.assignLayer()
	n := &node{id: id, vec: vec, layer: layer, neighbors: make([][]uint32, layer+1), category: category}

	if !g.hasEntry {
		g.nodes[id] = n
		g.entryPoint = id
		g.hasEntry = true
		g.topLayer = layer
		g.recordCategoryEntry(id, category)
		return nil
	}

	ep := g.seedEntryPoints(layer, vec)

	g.nodes[id] = n

	for l := min(layer, g.topLayer); l >= 0; l-- {
		found := g.searchLayer(ep, vec, g.params.EfConstruction, l, nil)
		selected := g.selectNeighbors(vec, found, g.maxNeighbors(l))

		n.neighbors[l] = selected
		for _, nb := range selected {
			g.connect(nb, id, l)
		}

		if l == 0 && category != 0 {
			g.addIntraCategoryEdges(id, n, vec, category, ep)
		}

		ep = idsOf(found)
	}

	if layer > g.topLayer {
		g.topLayer = layer
		g.entryPoint = id
	}
	g.recordCategoryEntry(id, category)
	return nil
}

// seedEntryPoints picks the entry point(s) Insert descends/searches
// from at layer, per the configured Seeding strategy.
func (g *Graph) seedEntryPoints(layer int, vec []float32) []uint32 {
	switch g.params.SeedStrategy {
	case SeedStackedNSW:
		ep := []uint32{g.entryPoint}
		for l := g.topLayer; l > layer; l-- {
			found := g.searchLayer(ep, vec, g.params.EfConstruction, l, nil)
			if len(found) > 0 {
				ep = idsOf(found)
			}
		}
		return ep
	case SeedKSampledRandom:
		k := g.params.KSamples
		if k <= 0 {
			k = 8
		}
		return g.kRandomNodes(k)
	default:
		ep := []uint32{g.entryPoint}
		for l := g.topLayer; l > layer; l-- {
			found := g.searchLayer(ep, vec, 1, l, nil)
			if len(found) > 0 {
				ep = []uint32{found[0].id}
			}
		}
		return ep
	}
}

// kRandomNodes returns up to k distinct node ids chosen by shuffling
// every existing node id with the graph's own rng, so the draw is
// reproducible for a fixed Seed.
func (g *Graph) kRandomNodes(k int) []uint32 {
	ids := make([]uint32, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	g.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if k > len(ids) {
		k = len(ids)
	}
	return ids[:k]
}

// addIntraCategoryEdges gives id up to its intra-category edge budget
// of extra base-layer edges to other nodes sharing category, so a
// filtered search restricted to category can traverse entirely within
// same-category nodes instead of relying on post-filtering.
func (g *Graph) addIntraCategoryEdges(id uint32, n *node, vec []float32, category uint64, ep []uint32) {
	extra := g.intraCategoryEdges(g.maxNeighbors(0))
	if extra <= 0 {
		return
	}
	filterFn := func(nid uint32) bool {
		if nid == id {
			return false
		}
		nn, ok := g.nodes[nid]
		return ok && nn.category&category == category
	}
	found := g.searchLayer(ep, vec, g.params.EfConstruction, 0, filterFn)
	if len(found) == 0 {
		return
	}
	selected := g.selectNeighbors(vec, found, extra)
	for _, nb := range selected {
		if !containsID(n.neighbors[0], nb) {
			n.neighbors[0] = append(n.neighbors[0], nb)
		}
		g.connect(nb, id, 0)
	}
}

// selectNeighbors dispatches to the configured Diversification
// strategy.
func (g *Graph) selectNeighbors(query []float32, candidates []candidate, m int) []uint32 {
	switch g.params.Diversification {
	case DiversifyMOND:
		angle := g.params.MinAngleDegrees
		if angle <= 0 {
			angle = 60
		}
		return g.selectNeighborsMOND(query, candidates, m, angle)
	case DiversifyRRND:
		alpha := g.params.RRNDAlpha
		if alpha <= 0 {
			alpha = 1.2
		}
		return g.selectNeighborsRRND(query, candidates, m, alpha)
	default:
		return g.selectNeighborsRND(query, candidates, m)
	}
}

// selectNeighborsRND implements the relative-neighborhood diversification
// heuristic from the HNSW paper's Algorithm 4: greedily accept the
// closest remaining candidate unless it is closer to an already-selected
// neighbor than to the query itself (meaning the already-selected
// neighbor already "covers" that direction).
func (g *Graph) selectNeighborsRND(query []float32, candidates []candidate, m int) []uint32 {
	selected := make([]uint32, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		good := true
		cn := g.nodes[c.id]
		for _, sid := range selected {
			sn := g.nodes[sid]
			if g.distance(cn.vec, sn.vec) < c.dist {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c.id)
		}
	}
	return backfill(selected, candidates, m)
}

// selectNeighborsMOND is RND's angular variant: a candidate is rejected
// if its angular separation from an already-selected neighbor is under
// minAngleDegrees, rather than compared by raw distance.
func (g *Graph) selectNeighborsMOND(query []float32, candidates []candidate, m int, minAngleDegrees float64) []uint32 {
	selected := make([]uint32, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		good := true
		cn := g.nodes[c.id]
		for _, sid := range selected {
			sn := g.nodes[sid]
			if angleDegrees(cn.vec, sn.vec) < minAngleDegrees {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c.id)
		}
	}
	return backfill(selected, candidates, m)
}

// selectNeighborsRRND relaxes RND by alpha: a candidate c_i is rejected
// only when some already-selected neighbor c_j satisfies
// alpha*dist(c_i,c_j) < dist(v,c_i), where v is the query; alpha = 1 is
// plain RND, and alpha > 1 makes the rule more permissive, keeping more
// near-duplicate directions than RND would.
func (g *Graph) selectNeighborsRRND(query []float32, candidates []candidate, m int, alpha float64) []uint32 {
	selected := make([]uint32, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		good := true
		cn := g.nodes[c.id]
		for _, sid := range selected {
			sn := g.nodes[sid]
			distCiCj := float64(g.distance(cn.vec, sn.vec))
			if alpha*distCiCj < float64(c.dist) {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c.id)
		}
	}
	return backfill(selected, candidates, m)
}

// backfill tops selected up to m with the closest remaining candidates
// if a diversification pass was too aggressive to reach m on its own,
// keeping the graph well-connected rather than strictly minimal.
func backfill(selected []uint32, candidates []candidate, m int) []uint32 {
	if len(selected) >= m {
		return selected
	}
	have := make(map[uint32]bool, len(selected))
	for _, s := range selected {
		have[s] = true
	}
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		if !have[c.id] {
			selected = append(selected, c.id)
		}
	}
	return selected
}

// angleDegrees returns the angular separation between a and b in
// degrees, treating cosine similarity as the cosine of that angle.
func angleDegrees(a, b []float32) float64 {
	cos := float64(simd.Cosine(a, b))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// connect adds a back-edge from neighbor to id at layer, pruning
// neighbor's own neighbor list back down to its layer capacity by
// keeping the closest entries if it overflows.
func (g *Graph) connect(neighbor, id uint32, layer int) {
	n, ok := g.nodes[neighbor]
	if !ok {
		return
	}
	for len(n.neighbors) <= layer {
		n.neighbors = append(n.neighbors, nil)
	}
	for _, existing := range n.neighbors[layer] {
		if existing == id {
			return
		}
	}
	n.neighbors[layer] = append(n.neighbors[layer], id)

	max := g.capacity(n, layer)
	if len(n.neighbors[layer]) <= max {
		return
	}

	cands := make([]candidate, 0, len(n.neighbors[layer]))
	for _, nb := range n.neighbors[layer] {
		if nn, ok := g.nodes[nb]; ok {
			cands = append(cands, candidate{id: nb, dist: g.distance(n.vec, nn.vec)})
		}
	}
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].dist < cands[j-1].dist; j-- {
			cands[j-1], cands[j] = cands[j], cands[j-1]
		}
	}
	n.neighbors[layer] = g.selectNeighbors(n.vec, cands, max)
}

func containsID(ids []uint32, target uint32) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func idsOf(cands []candidate) []uint32 {
	out := make([]uint32, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}
