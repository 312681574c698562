package hnsw

import "container/heap"

type candidate struct {
	id   uint32
	dist float32
}

// minHeap pops the closest candidate first (ascending distance).
type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// maxHeap pops the farthest candidate first (descending distance), used
// to hold the current best-ef result set so the farthest can be evicted
// in O(log ef) when a closer candidate arrives.
type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// searchLayer runs the standard HNSW bounded beam search at one layer,
// starting from entryPoints, returning up to ef candidates ordered by
// ascending distance to query. filterFn, if non-nil, is consulted only
// to decide which nodes qualify for the *result* set: traversal itself
// walks through non-matching nodes so a matching node behind a
// non-matching one is still reachable (the "filter-aware traversal"
// that keeps category-sparse queries from starving).
func (g *Graph) searchLayer(entryPoints []uint32, query []float32, ef int, layer int, filterFn func(uint32) bool) []candidate {
	visited := make(map[uint32]bool, ef*4)
	candidates := &minHeap{}
	results := &maxHeap{}

	for _, ep := range entryPoints {
		n, ok := g.nodes[ep]
		if !ok {
			continue
		}
		d := g.distance(query, n.vec)
		visited[ep] = true
		heap.Push(candidates, candidate{id: ep, dist: d})
		if filterFn == nil || filterFn(ep) {
			heap.Push(results, candidate{id: ep, dist: d})
		}
	}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}

		n := g.nodes[c.id]
		if layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nn, ok := g.nodes[nb]
			if !ok {
				continue
			}
			d := g.distance(query, nn.vec)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, candidate{id: nb, dist: d})
				if filterFn == nil || filterFn(nb) {
					heap.Push(results, candidate{id: nb, dist: d})
					if results.Len() > ef {
						heap.Pop(results)
					}
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	copy(out, *results)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].dist < out[j-1].dist; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
