// Package simd provides vector kernels (dot product, norm, cosine
// similarity, sparse dot product) with runtime CPU-feature dispatch.
//
// Below a length of scalarGate elements, dispatch overhead is not worth
// paying and the scalar path always runs.
package simd

import "golang.org/x/sys/cpu"

const scalarGate = 16

// Tier identifies which dispatch tier a kernel call resolved to. Exposed
// for tests that want to assert which tier ran without depending on the
// host's actual CPU features.
type Tier int

const (
	TierScalar Tier = iota
	TierNEON
	TierAVX2
	TierAVX512
)

func (t Tier) String() string {
	switch t {
	case TierAVX512:
		return "avx512"
	case TierAVX2:
		return "avx2"
	case TierNEON:
		return "neon"
	default:
		return "scalar"
	}
}

var selectedTier = detectTier()

func detectTier() Tier {
	if cpu.X86.HasAVX512F && cpu.X86.HasAVX512DQ {
		return TierAVX512
	}
	if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
		return TierAVX2
	}
	if cpu.ARM64.HasASIMD {
		return TierNEON
	}
	return TierScalar
}

// SelectedTier returns the dispatch tier this process resolved to at
// init time, based on runtime CPU feature detection.
func SelectedTier() Tier { return selectedTier }

func tierFor(n int) Tier {
	if n < scalarGate {
		return TierScalar
	}
	return selectedTier
}

// Dot computes the inner product of a and b. Empty inputs return 0.0.
// Mismatched lengths compute over the shorter length (caller contract:
// callers are expected to pass equal-length slices).
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	switch tierFor(n) {
	case TierAVX512:
		return dotAVX512(a[:n], b[:n])
	case TierAVX2:
		return dotAVX2(a[:n], b[:n])
	case TierNEON:
		return dotNEON(a[:n], b[:n])
	default:
		return dotScalar(a[:n], b[:n])
	}
}

// Norm computes the L2 norm of v. Empty input returns 0.0.
func Norm(v []float32) float32 {
	n := len(v)
	if n == 0 {
		return 0
	}
	switch tierFor(n) {
	case TierAVX512:
		return normAVX512(v)
	case TierAVX2:
		return normAVX2(v)
	case TierNEON:
		return normNEON(v)
	default:
		return normScalar(v)
	}
}

// cosineEpsilon guards against division by a near-zero norm: cosine
// returns 0.0 when either norm is below this threshold.
const cosineEpsilon = 1e-9

// Cosine computes cosine similarity between a and b. Returns 0.0 when
// lengths differ, inputs are empty, or either norm is below 1e-9.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na < cosineEpsilon || nb < cosineEpsilon {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// SparseDot computes the inner product of two sorted sparse vectors given
// as parallel (index, value) slices. Indices must be strictly increasing;
// behavior on violation is undefined (caller contract).
func SparseDot(aIdx []uint32, aVal []float32, bIdx []uint32, bVal []float32) float32 {
	if len(aIdx) == 0 || len(bIdx) == 0 {
		return 0
	}
	if len(aIdx) >= 8 && len(bIdx) >= 8 {
		return sparseDotBlocked(aIdx, aVal, bIdx, bVal)
	}
	return sparseDotScalar(aIdx, aVal, bIdx, bVal)
}
