package lexical

import "math"

// Mode selects a BM25 variant.
type Mode int

const (
	// Classic is plain BM25 (Robertson/Sparck-Jones).
	Classic Mode = iota
	// BM25L adds a delta to term frequency before saturation, reducing
	// over-penalization of long documents.
	BM25L
	// BM25Plus adds delta after saturation, guaranteeing every matched
	// term contributes a strictly positive score regardless of length.
	BM25Plus
)

// Params tunes BM25 scoring. DefaultParams returns the classic configuration;
// Coverage fields are opt-in (zero values make the coverage multiplier a
// no-op) so existing classic-BM25 callers see unchanged scores.
type Params struct {
	Mode Mode
	K1   float64 // saturation parameter
	B    float64 // length-normalization strength, 0..1
	Delta float64 // BM25L/BM25Plus offset

	// CoverageLambda/CoverageEpsilon gate an optional soft-AND
	// multiplier (ε + coverage)^λ applied to the summed per-term score,
	// where coverage is the fraction of query terms present in the
	// document. CoverageLambda == 0 makes the multiplier identically
	// 1.0 (disabled), matching plain BM25 behavior.
	CoverageLambda  float64
	CoverageEpsilon float64

	// ProximityAlpha gates an optional multiplier derived from the
	// overlap of matched terms' segment masks; ProximityAlpha == 0
	// disables it. ProximityDecay is not read by the scorer.
	ProximityAlpha float64
	ProximityDecay float64
	MaxSegments    uint32
}

// DefaultParams returns classic BM25 with k1=1.2, b=0.75, and every
// optional multiplier disabled.
func DefaultParams() Params {
	return Params{
		Mode: Classic,
		K1:   1.2,
		B:    0.75,
	}
}

func calculateIDF(totalDocs float64, docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	df := float64(docFreq)
	ratio := (totalDocs - df + 0.5) / (df + 0.5)
	if ratio < 0 {
		ratio = 0
	}
	return math.Log(1.0 + ratio)
}

// score computes the BM25-family contribution of one matched term.
func score(mode Mode, tf uint32, docLen int, avgDocLen float64, k1, b, delta, idf float64) float64 {
	if avgDocLen <= 0 || tf == 0 {
		return 0
	}
	ftf := float64(tf)
	normLen := 1.0 - b + b*(float64(docLen)/avgDocLen)
	if normLen <= 0 {
		return 0
	}

	switch mode {
	case BM25L:
		adjusted := ftf/normLen + delta
		sat := ((k1 + 1.0) * adjusted) / (k1 + adjusted)
		return idf * sat
	case BM25Plus:
		sat := ((k1+1.0)*ftf)/(k1*normLen+ftf) + delta
		return idf * sat
	default: // Classic
		tfNorm := ftf / normLen
		sat := saturate(tfNorm, k1)
		return idf * sat
	}
}

func saturate(tfNorm, k1 float64) float64 {
	if tfNorm <= 0 {
		return 0
	}
	if k1 <= 0 {
		return tfNorm
	}
	return ((k1 + 1.0) * tfNorm) / (k1 + tfNorm)
}

// coverageMultiplier returns (ε + coverage)^λ, or 1.0 if λ == 0.
func coverageMultiplier(matched, total int, epsilon, lambda float64) float64 {
	if lambda == 0 || total == 0 {
		return 1.0
	}
	coverage := float64(matched) / float64(total)
	return math.Pow(epsilon+coverage, lambda)
}

// proximityMultiplier returns a segment-mask overlap boost:
// 1 + α · popcount(AND of masks)/min(n,maxSegs).
func proximityMultiplier(masks []uint32, alpha float64, maxSegs uint32) float64 {
	if alpha == 0 || len(masks) < 2 || maxSegs == 0 {
		return 1.0
	}
	common := masks[0]
	for _, m := range masks[1:] {
		common &= m
	}
	overlap := popcount32(common)
	denom := uint32(len(masks))
	if denom > maxSegs {
		denom = maxSegs
	}
	return 1.0 + alpha*float64(overlap)/float64(denom)
}

func popcount32(v uint32) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}
