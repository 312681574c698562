package wal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/retrieval-core/pkg/directory"
	"github.com/kittclouds/retrieval-core/pkg/segment"
)

func writeEmptySegment(dir directory.Directory, prefix string) error {
	return segment.Write(dir, prefix, nil, []uint32{0}, nil)
}

func testDir(t *testing.T) directory.Directory {
	t.Helper()
	d, err := directory.NewMemory()
	require.NoError(t, err)
	return d
}

func TestWALRoundTripReplaysEntriesInOrder(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)

	id1, err := w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 100})
	require.NoError(t, err)
	id2, err := w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 2, DocCount: 200})
	require.NoError(t, err)
	id3, err := w.Append(WalEntry{Kind: KindDeleteDocuments, Deletes: []DeleteKey{{SegmentID: 1, DocID: 7}}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{id1, id2, id3})

	entries, warnings, err := readEntriesAfter(dir, "wal", 0)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(1), entries[0].EntryID)
	assert.Equal(t, uint64(2), entries[1].EntryID)
	assert.Equal(t, uint64(3), entries[2].EntryID)
}

// TestRecoverMatchesSpecScenario mirrors the literal walkthrough: append
// AddSegment{1,1,100}, AddSegment{2,2,200}, DeleteDocuments{3,[(1,7)]},
// then recover and check active_segments={1,2}, deletes[1]=[7],
// last_entry_id=3, next_segment_id=3.
func TestRecoverMatchesSpecScenario(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 100})
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 2, DocCount: 200})
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindDeleteDocuments, Deletes: []DeleteKey{{SegmentID: 1, DocID: 7}}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, writeFakeSegment(dir, 1))
	require.NoError(t, writeFakeSegment(dir, 2))

	result, err := Recover(dir, "wal", RecoveryOptions{Strict: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{1, 2}, result.State.ActiveSegments)
	assert.True(t, result.State.IsDeleted(1, 7))
	assert.False(t, result.State.IsDeleted(1, 8))
	assert.Equal(t, uint64(3), result.State.EntryID)
	assert.Equal(t, uint64(3), result.State.NextSegmentID)
}

func TestRecoverIsIdempotent(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 5})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, writeFakeSegment(dir, 1))

	r1, err := Recover(dir, "wal", RecoveryOptions{Strict: true})
	require.NoError(t, err)
	r2, err := Recover(dir, "wal", RecoveryOptions{Strict: true})
	require.NoError(t, err)

	assert.Equal(t, r1.State.ActiveSegments, r2.State.ActiveSegments)
	assert.Equal(t, r1.State.EntryID, r2.State.EntryID)
	assert.Equal(t, r1.State.NextSegmentID, r2.State.NextSegmentID)
}

func TestRecoverAppliesCheckpointThenReplaysRemainder(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 10})
	require.NoError(t, err)
	ckptID, err := w.Append(WalEntry{Kind: KindCheckpoint, ActiveSegments: []uint64{1}})
	require.NoError(t, err)

	snap := newState()
	snap.EntryID = ckptID
	snap.addActive(1)
	snap.SegmentDocCount[1] = 10
	snap.NextDocID = 10
	snap.NextSegmentID = 2
	require.NoError(t, SaveCheckpoint(dir, snap))

	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 2, DocCount: 20})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, writeFakeSegment(dir, 1))
	require.NoError(t, writeFakeSegment(dir, 2))

	result, err := Recover(dir, "wal", RecoveryOptions{Strict: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, result.State.ActiveSegments)
	assert.Equal(t, uint64(3), result.State.NextSegmentID)
}

func TestRecoverDropsMergeWithNoResolution(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 5})
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindStartMerge, TxnID: 99, SegmentIDs: []uint64{1}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, writeFakeSegment(dir, 1))

	result, err := Recover(dir, "wal", RecoveryOptions{Strict: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1}, result.State.ActiveSegments)
	require.NotEmpty(t, result.Warnings)
}

func TestRecoverStrictFailsOnMissingSegment(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 5})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	// Segment 1's files are never written to disk.

	_, err = Recover(dir, "wal", RecoveryOptions{Strict: true})
	assert.Error(t, err)
}

func TestRecoverDegradedModeDropsMissingSegment(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 5})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	result, err := Recover(dir, "wal", RecoveryOptions{Strict: false})
	require.NoError(t, err)
	assert.Empty(t, result.State.ActiveSegments)
	require.NotEmpty(t, result.Warnings)
}

func TestRecoverEndMergeReplacesOldSegments(t *testing.T) {
	dir := testDir(t)
	w, err := Open(dir, "wal", 1, 1, false)
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 1, DocCount: 10})
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindAddSegment, SegmentID: 2, DocCount: 20})
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindStartMerge, TxnID: 5, SegmentIDs: []uint64{1, 2}})
	require.NoError(t, err)
	_, err = w.Append(WalEntry{Kind: KindEndMerge, TxnID: 5, NewSegmentID: 3, OldSegmentIDs: []uint64{1, 2}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, writeFakeSegment(dir, 3))

	result, err := Recover(dir, "wal", RecoveryOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, result.State.ActiveSegments)
	assert.Equal(t, uint64(30), result.State.SegmentDocCount[3])
	assert.Equal(t, uint64(4), result.State.NextSegmentID)
}

// writeFakeSegment writes a minimal valid segment (no terms, no
// vectors, one doc) under the SegmentPrefix convention so step 5's
// footer-existence check passes.
func writeFakeSegment(dir directory.Directory, id uint64) error {
	return writeEmptySegment(dir, SegmentPrefix(id))
}
