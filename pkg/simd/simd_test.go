package simd

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randVec(n int, r *rand.Rand) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestDotEmpty(t *testing.T) {
	assert.Equal(t, float32(0), Dot(nil, nil))
	assert.Equal(t, float32(0), Dot([]float32{}, []float32{}))
}

func TestNormEmpty(t *testing.T) {
	assert.Equal(t, float32(0), Norm(nil))
}

func TestCosineGuards(t *testing.T) {
	assert.Equal(t, float32(0), Cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, float32(0), Cosine(nil, nil))
	assert.Equal(t, float32(0), Cosine([]float32{0, 0, 0}, []float32{1, 2, 3}))
}

func TestCosineUnitVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-5)
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-5)
}

// TestCosineNormalizedEqualsDot checks that for normalized a, b,
// cosine(a,b) == dot(a,b) within epsilon.
func TestCosineNormalizedEqualsDot(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		a := randVec(64, r)
		b := randVec(64, r)
		na, nb := Norm(a), Norm(b)
		for i := range a {
			a[i] /= na
			b[i] /= nb
		}
		require.InDelta(t, Dot(a, b), Cosine(a, b), 1e-4)
	}
}

// TestBilinearity checks dot(αa+βb, c) == α·dot(a,c) + β·dot(b,c).
func TestBilinearity(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	n := 128
	a, b, c := randVec(n, r), randVec(n, r), randVec(n, r)
	alpha, beta := float32(1.7), float32(-0.3)
	combined := make([]float32, n)
	for i := range combined {
		combined[i] = alpha*a[i] + beta*b[i]
	}
	lhs := Dot(combined, c)
	rhs := alpha*Dot(a, c) + beta*Dot(b, c)
	assert.InDelta(t, rhs, lhs, 1e-2)
}

// TestTierParity checks all four dispatch tiers produce the same result
// (up to IEEE-754 reassociation) for the same inputs.
func TestTierParity(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	a := randVec(257, r)
	b := randVec(257, r)

	want := dotScalar(a, b)
	got := map[string]float32{
		"avx2":   dotAVX2(a, b),
		"avx512": dotAVX512(a, b),
		"neon":   dotNEON(a, b),
	}
	for name, v := range got {
		if relErr(want, v) > 1e-5 {
			t.Errorf("tier %s diverged: want %v got %v", name, want, v)
		}
	}
}

func relErr(want, got float32) float64 {
	if want == 0 {
		return math.Abs(float64(got))
	}
	return math.Abs(float64(got-want) / float64(want))
}

func TestScalarGate(t *testing.T) {
	assert.Equal(t, TierScalar, tierFor(1))
	assert.Equal(t, TierScalar, tierFor(scalarGate-1))
}

func TestSparseDot(t *testing.T) {
	aIdx := []uint32{1, 3, 5}
	aVal := []float32{1, 2, 3}
	bIdx := []uint32{1, 4, 5}
	bVal := []float32{0.5, 2, 0.5}
	got := SparseDot(aIdx, aVal, bIdx, bVal)
	assert.InDelta(t, 2.0, got, 1e-6)
}

func TestSparseDotEmpty(t *testing.T) {
	assert.Equal(t, float32(0), SparseDot(nil, nil, nil, nil))
}

func TestSparseDotBlockedMatchesScalar(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	mkSparse := func(dim, nnz int) ([]uint32, []float32) {
		seen := map[uint32]bool{}
		idx := make([]uint32, 0, nnz)
		for len(idx) < nnz {
			id := uint32(r.Intn(dim))
			if seen[id] {
				continue
			}
			seen[id] = true
			idx = append(idx, id)
		}
		for i := 1; i < len(idx); i++ {
			for j := i; j > 0 && idx[j-1] > idx[j]; j-- {
				idx[j-1], idx[j] = idx[j], idx[j-1]
			}
		}
		val := randVec(nnz, r)
		return idx, val
	}
	aIdx, aVal := mkSparse(1000, 40)
	bIdx, bVal := mkSparse(1000, 40)
	want := sparseDotScalar(aIdx, aVal, bIdx, bVal)
	got := sparseDotBlocked(aIdx, aVal, bIdx, bVal)
	assert.InDelta(t, want, got, 1e-4)
}
