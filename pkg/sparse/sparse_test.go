package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveRanksByDotProduct(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, Vector{Indices: []uint32{1, 3, 5}, Values: []float32{1, 2, 3}}))
	require.NoError(t, s.Add(2, Vector{Indices: []uint32{1, 4, 5}, Values: []float32{0.5, 1, 0.5}}))

	query := Vector{Indices: []uint32{1, 5}, Values: []float32{1, 1}}
	got, err := s.Retrieve(query, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].DocID)
	assert.InDelta(t, 4.0, got[0].Score, 1e-5)
}

func TestRetrieveEmptyQueryErrors(t *testing.T) {
	s := New()
	_, err := s.Retrieve(Vector{}, 5)
	assert.Error(t, err)
}

func TestRetrieveEmptyStore(t *testing.T) {
	s := New()
	got, err := s.Retrieve(Vector{Indices: []uint32{1}, Values: []float32{1}}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddRejectsMismatchedLengths(t *testing.T) {
	s := New()
	err := s.Add(1, Vector{Indices: []uint32{1, 2}, Values: []float32{1}})
	assert.Error(t, err)
}

func TestDeleteRemovesVector(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(1, Vector{Indices: []uint32{1}, Values: []float32{1}}))
	assert.Equal(t, 1, s.Len())
	s.Delete(1)
	assert.Equal(t, 0, s.Len())
}
