package dense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, []float32{1, 0, 0}))
	require.NoError(t, s.Add(2, []float32{0, 1, 0}))
	require.NoError(t, s.Add(3, []float32{0.9, 0.1, 0}))

	got, err := s.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].DocID)
	assert.Equal(t, uint32(3), got[1].DocID)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, []float32{1, 2, 3}))
	err := s.Add(2, []float32{1, 2})
	assert.Error(t, err)
}

func TestSearchEmptyStoreReturnsNoResultsNoError(t *testing.T) {
	s := New()
	got, err := s.Search([]float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteRemovesVector(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, []float32{1, 0}))
	require.NoError(t, s.Add(2, []float32{0, 1}))
	s.Delete(1)
	assert.Equal(t, 1, s.Len())

	got, err := s.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), got[0].DocID)
}
