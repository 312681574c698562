package ivfpq

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomUnitVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		var norm float64
		for d := range v {
			v[d] = r.Float32()*2 - 1
			norm += float64(v[d]) * float64(v[d])
		}
		norm = math.Sqrt(norm)
		for d := range v {
			v[d] = float32(float64(v[d]) / norm)
		}
		out[i] = v
	}
	return out
}

func TestTrainAddSearchRecall(t *testing.T) {
	const n, dim, k = 300, 16, 10
	vecs := randomUnitVectors(n, dim, 11)

	params := DefaultParams()
	params.NClusters = 10
	params.NProbe = 10 // probe everything: validates the cluster plumbing itself
	idx := New(dim, params)
	require.NoError(t, idx.Train(vecs))
	for i, v := range vecs {
		require.NoError(t, idx.Add(uint32(i), v, 0))
	}
	assert.Equal(t, n, idx.Len())

	got, err := idx.Search(vecs[0], k)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, uint32(0), got[0].DocID, "query vector should be its own nearest neighbor")
}

func TestAddBeforeTrainFails(t *testing.T) {
	idx := New(4, DefaultParams())
	err := idx.Add(1, make([]float32, 4), 0)
	assert.Error(t, err)
}

func TestTrainDimensionMismatch(t *testing.T) {
	idx := New(4, DefaultParams())
	err := idx.Train([][]float32{make([]float32, 8)})
	assert.Error(t, err)
}

func TestFilteredSearchRespectsCategoryMask(t *testing.T) {
	const dim = 12
	vecs := randomUnitVectors(100, dim, 5)
	params := DefaultParams()
	params.NClusters = 8
	params.NProbe = 8
	idx := New(dim, params)
	require.NoError(t, idx.Train(vecs))
	for i, v := range vecs {
		cat := uint64(1)
		if i%3 == 0 {
			cat = uint64(2)
		}
		require.NoError(t, idx.Add(uint32(i), v, cat))
	}

	got, err := idx.FilteredSearch(vecs[0], 20, 2)
	require.NoError(t, err)
	for _, r := range got {
		assert.Equal(t, uint32(0), r.DocID%3, "expected only category-2 (multiple of 3) doc IDs")
	}
}

func TestPQAsymmetricSearchFindsSelf(t *testing.T) {
	const n, dim, k = 200, 16, 5
	vecs := randomUnitVectors(n, dim, 21)

	params := DefaultParams()
	params.NClusters = 8
	params.NProbe = 8
	params.UsePQ = true
	params.PQSubvectors = 4
	params.PQBits = 6
	idx := New(dim, params)
	require.NoError(t, idx.Train(vecs))
	for i, v := range vecs {
		require.NoError(t, idx.Add(uint32(i), v, 0))
	}

	got, err := idx.Search(vecs[0], k)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, uint32(0), got[0].DocID)
}
