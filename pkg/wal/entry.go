// Package wal implements the write-ahead log: length-prefixed,
// CRC32C-framed entries with monotonic entry IDs, periodic checkpoint
// snapshots, and replay-based crash recovery. Framing mirrors
// pkg/segment's footer checksum idiom; entry-ID monotonicity uses a
// nextID-with-reservation counter that always resumes past the highest
// observed value, the same shape recovery needs for reconstructing
// next_segment_id/next_doc_id.
package wal

import (
	"encoding/gob"
)

// EntryKind tags the variant carried by a WalEntry.
type EntryKind uint8

const (
	KindAddSegment EntryKind = iota + 1
	KindStartMerge
	KindEndMerge
	KindCancelMerge
	KindDeleteDocuments
	KindCheckpoint
)

// DeleteKey identifies one (segment, document) pair marked deleted.
type DeleteKey struct {
	SegmentID uint64
	DocID     uint32
}

// WalEntry is one mutation record. Exactly one of the payload fields is
// meaningful, selected by Kind; gob-encoding the whole struct (rather
// than a narrower interface-typed union) keeps decoding a single
// fixed-shape call, at the cost of a few always-zero fields per variant —
// an acceptable tradeoff since entries are small and infrequent relative
// to postings/vector volume.
type WalEntry struct {
	EntryID uint64
	Kind    EntryKind

	// AddSegment
	SegmentID uint64
	DocCount  uint64

	// StartMerge / EndMerge / CancelMerge
	TxnID         uint64
	SegmentIDs    []uint64
	NewSegmentID  uint64
	OldSegmentIDs []uint64
	RemappedDeletes []DeleteKey

	// DeleteDocuments
	Deletes []DeleteKey

	// Checkpoint
	ActiveSegments []uint64
}

func init() {
	gob.Register(WalEntry{})
}
