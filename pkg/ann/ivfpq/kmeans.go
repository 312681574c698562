package ivfpq

import (
	"math/rand"

	"github.com/kittclouds/retrieval-core/pkg/simd"
)

// kmeans runs Lloyd's algorithm with random-sample initialization,
// returning k cluster centroids. iters <= 0 defaults to 10.
func kmeans(vecs [][]float32, k int, iters int, rng *rand.Rand) [][]float32 {
	if iters <= 0 {
		iters = 10
	}
	if k <= 0 {
		k = 1
	}

	centroids := make([][]float32, k)
	perm := rng.Perm(len(vecs))
	for i := 0; i < k; i++ {
		src := vecs[perm[i%len(perm)]]
		c := make([]float32, len(src))
		copy(c, src)
		centroids[i] = c
	}

	dim := len(vecs[0])
	assignment := make([]int, len(vecs))

	for iter := 0; iter < iters; iter++ {
		changed := false
		for i, v := range vecs {
			best := 0
			bestDist := float32(1e38)
			for c, centroid := range centroids {
				d := 1 - simd.Cosine(v, centroid)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignment[i] != best {
				changed = true
			}
			assignment[i] = best
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vecs {
			c := assignment[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += float64(v[d])
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			nc := make([]float32, dim)
			for d := 0; d < dim; d++ {
				nc[d] = float32(sums[c][d] / float64(counts[c]))
			}
			centroids[c] = nc
		}

		if !changed && iter > 0 {
			break
		}
	}
	return centroids
}
