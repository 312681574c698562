package ivfpq

import (
	"math/rand"

	"github.com/kittclouds/retrieval-core/pkg/simd"
)

// trainPQ splits each vector into nSubvectors equal chunks and runs
// k-means (2^bits centroids) independently per chunk, producing one
// codebook per subvector. nSubvectors must evenly divide the vector
// dimension; callers violating this get a last chunk that runs to the
// end of the vector, absorbing the leftover dimensions (not a panic).
func trainPQ(vecs [][]float32, nSubvectors, bits, iters int, rng *rand.Rand) [][][]float32 {
	if nSubvectors <= 0 {
		nSubvectors = 1
	}
	if bits <= 0 || bits > 8 {
		bits = 8
	}
	nCentroids := 1 << uint(bits)
	dim := len(vecs[0])
	subDim := dim / nSubvectors

	codebooks := make([][][]float32, nSubvectors)
	for s := 0; s < nSubvectors; s++ {
		start := s * subDim
		end := start + subDim
		if s == nSubvectors-1 {
			end = dim
		}
		sub := make([][]float32, len(vecs))
		for i, v := range vecs {
			sub[i] = v[start:end]
		}
		codebooks[s] = kmeans(sub, nCentroids, iters, rng)
	}
	return codebooks
}

// encodePQ maps vec to its nearest-centroid code per subvector.
func encodePQ(vec []float32, codebooks [][][]float32) []byte {
	nSub := len(codebooks)
	dim := len(vec)
	subDim := dim / nSub
	code := make([]byte, nSub)
	for s, book := range codebooks {
		start := s * subDim
		end := start + subDim
		if s == nSub-1 {
			end = dim
		}
		sv := vec[start:end]
		best := 0
		bestDist := float32(1e38)
		for ci, c := range book {
			d := 1 - simd.Cosine(sv, c)
			if d < bestDist {
				bestDist = d
				best = ci
			}
		}
		code[s] = byte(best)
	}
	return code
}

// pqDistanceTable precomputes, for each subvector and each centroid in
// its codebook, the distance from the query's corresponding subvector —
// the "asymmetric distance computation" table: query stays
// uncompressed, only stored codes are compressed.
func pqDistanceTable(query []float32, codebooks [][][]float32) [][]float32 {
	nSub := len(codebooks)
	dim := len(query)
	subDim := dim / nSub
	table := make([][]float32, nSub)
	for s, book := range codebooks {
		start := s * subDim
		end := start + subDim
		if s == nSub-1 {
			end = dim
		}
		qv := query[start:end]
		table[s] = make([]float32, len(book))
		for ci, c := range book {
			table[s][ci] = 1 - simd.Cosine(qv, c)
		}
	}
	return table
}

// pqAsymmetricDistance sums the precomputed per-subvector distances for
// a stored code.
func pqAsymmetricDistance(table [][]float32, code []byte) float32 {
	var sum float32
	for s, c := range code {
		if s < len(table) {
			sum += table[s][c]
		}
	}
	return sum
}
