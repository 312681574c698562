package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := r.Uint64()
		buf := AppendVarint(nil, v)
		got, n, err := DecodeVarint(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestVarintTruncated(t *testing.T) {
	buf := AppendVarint(nil, 1<<40)
	_, _, err := DecodeVarint(buf[:len(buf)-1])
	assert.Error(t, err)
}

func TestDeltaRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	xs := make([]uint32, 200)
	cur := uint32(0)
	for i := range xs {
		cur += uint32(r.Intn(50) + 1)
		xs[i] = cur
	}
	deltas := DeltaEncode(xs)
	got := DeltaDecode(deltas)
	assert.Equal(t, xs, got)
}

func TestBitWidth(t *testing.T) {
	assert.Equal(t, 0, BitWidth(0))
	assert.Equal(t, 1, BitWidth(1))
	assert.Equal(t, 8, BitWidth(255))
	assert.Equal(t, 9, BitWidth(256))
}

func TestBitpackRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		n := r.Intn(200) + 1
		values := make([]uint32, n)
		for i := range values {
			values[i] = uint32(r.Intn(1 << 20))
		}
		w := BitWidthMany(values)
		packed := Pack(values, w)
		got := Unpack(packed, w, n)
		assert.Equal(t, values, got)
	}
}

func TestPostingsBlockFullRoundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	docIDs := make([]uint32, BlockSize)
	freqs := make([]uint32, BlockSize)
	cur := uint32(0)
	for i := range docIDs {
		cur += uint32(r.Intn(10) + 1)
		docIDs[i] = cur
		freqs[i] = uint32(r.Intn(30) + 1)
	}
	block := EncodePostingsBlock(docIDs, freqs)
	gotDocs, gotFreqs, consumed, err := DecodePostingsBlock(block, BlockSize)
	require.NoError(t, err)
	assert.Equal(t, docIDs, gotDocs)
	assert.Equal(t, freqs, gotFreqs)
	assert.Equal(t, len(block), consumed)
}

func TestPostingsBlockPartialRoundtrip(t *testing.T) {
	docIDs := []uint32{3, 7, 8, 20}
	freqs := []uint32{1, 2, 1, 5}
	block := EncodePostingsBlock(docIDs, freqs)
	assert.Equal(t, byte(0), block[0])
	gotDocs, gotFreqs, _, err := DecodePostingsBlock(block, len(docIDs))
	require.NoError(t, err)
	assert.Equal(t, docIDs, gotDocs)
	assert.Equal(t, freqs, gotFreqs)
}
