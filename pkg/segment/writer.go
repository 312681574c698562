package segment

import (
	"encoding/binary"
	"math"

	"github.com/kittclouds/retrieval-core/pkg/codec"
	"github.com/kittclouds/retrieval-core/pkg/directory"
	"github.com/kittclouds/retrieval-core/pkg/fst"
)

// TermPostings is one term's full, in-memory postings list handed to
// Write. docIDs must already be sorted ascending; Write does not
// re-sort them (ascending insertion is the same invariant the lexical
// index's roaring bitmaps already guarantee on readback).
type TermPostings struct {
	Term    string
	DocIDs  []uint32
	Freqs   []uint32
}

// Write serializes a full segment (term dictionary, postings, document
// lengths, and optionally dense vectors) into dir under the given
// directory prefix, e.g. "segments/000001/". terms must be supplied in
// sorted order (the term dictionary builder rejects out-of-order
// insertion). docLengths is indexed by doc ordinal 0..docCount-1.
// vectors, if non-nil, is one float32 slice per document as the caller
// sees it; Write transposes it to the on-disk struct-of-arrays layout
// (dimension-major) before writing. Pass nil to omit the dense-vector
// section.
func Write(dir directory.Directory, prefix string, terms []TermPostings, docLengths []uint32, vectors [][]float32) error {
	if err := dir.CreateDirAll(prefix); err != nil {
		return err
	}

	ib, err := fst.NewIndexBuilder()
	if err != nil {
		return err
	}

	var postingsBuf []byte
	var termInfoBuf []byte
	for ord, t := range terms {
		offset := uint64(len(postingsBuf))
		postingsBuf = appendPostings(postingsBuf, t.DocIDs, t.Freqs)
		length := uint64(len(postingsBuf)) - offset

		termInfoBuf = codec.AppendVarint(termInfoBuf, offset)
		termInfoBuf = codec.AppendVarint(termInfoBuf, length)
		termInfoBuf = codec.AppendVarint(termInfoBuf, uint64(len(t.DocIDs)))
		termInfoBuf = codec.AppendVarint(termInfoBuf, collectionFrequency(t.Freqs))

		if err := ib.Insert([]byte(t.Term), uint64(ord)); err != nil {
			return err
		}
	}
	dictBytes, err := ib.Finish()
	if err != nil {
		return err
	}

	var docLenBuf []byte
	for _, l := range docLengths {
		docLenBuf = codec.AppendVarint(docLenBuf, uint64(l))
	}

	vecBytes, vecMetaBytes, dim := encodeVectors(vectors)

	if err := writeFile(dir, prefix+fileTermDict, dictBytes); err != nil {
		return err
	}
	if err := writeFile(dir, prefix+fileTermInfo, termInfoBuf); err != nil {
		return err
	}
	if err := writeFile(dir, prefix+filePostings, postingsBuf); err != nil {
		return err
	}
	if err := writeFile(dir, prefix+fileDocLengths, docLenBuf); err != nil {
		return err
	}
	if err := writeFile(dir, prefix+fileVectors, vecBytes); err != nil {
		return err
	}
	if err := writeFile(dir, prefix+fileVectorMeta, vecMetaBytes); err != nil {
		return err
	}

	f := footer{
		Version:       version,
		DocCount:      uint32(len(docLengths)),
		TermCount:     uint32(len(terms)),
		VectorDim:     uint32(dim),
		TermInfoCRC:   checksum(termInfoBuf),
		PostingsCRC:   checksum(postingsBuf),
		DocLengthsCRC: checksum(docLenBuf),
		VectorsCRC:    checksum(vecBytes),
		VectorMetaCRC: checksum(vecMetaBytes),
	}
	return writeFile(dir, prefix+fileFooter, encodeFooter(f))
}

func writeFile(dir directory.Directory, path string, data []byte) error {
	return dir.AtomicWrite(path, data)
}

// appendPostings splits docIDs/freqs into codec.BlockSize-sized blocks,
// each prefixed with its encoded byte length so the reader can skip blocks
// without decoding them.
func appendPostings(dst []byte, docIDs, freqs []uint32) []byte {
	for start := 0; start < len(docIDs); start += codec.BlockSize {
		end := start + codec.BlockSize
		if end > len(docIDs) {
			end = len(docIDs)
		}
		block := codec.EncodePostingsBlock(docIDs[start:end], freqs[start:end])
		dst = codec.AppendVarint(dst, uint64(len(block)))
		dst = append(dst, block...)
	}
	return dst
}

// collectionFrequency sums a term's per-document term frequencies into
// its collection frequency, the total number of occurrences of the
// term across every document in the segment.
func collectionFrequency(freqs []uint32) uint64 {
	var sum uint64
	for _, f := range freqs {
		sum += uint64(f)
	}
	return sum
}

// encodeVectors transposes the caller's array-of-structs vectors (one
// contiguous slice per document) into the on-disk struct-of-arrays
// layout: dimension d's value for document v lives at byte offset
// (d*n + v)*4, so every dimension's column is contiguous across all n
// documents.
func encodeVectors(vectors [][]float32) (vecBytes, metaBytes []byte, dim int) {
	if len(vectors) == 0 {
		return nil, nil, 0
	}
	dim = len(vectors[0])
	n := len(vectors)
	vecBytes = make([]byte, n*dim*4)
	for v, vec := range vectors {
		for d, f := range vec {
			offset := (d*n + v) * 4
			binary.LittleEndian.PutUint32(vecBytes[offset:offset+4], math.Float32bits(f))
		}
	}
	metaBytes = codec.AppendVarint(metaBytes, uint64(dim))
	metaBytes = codec.AppendVarint(metaBytes, uint64(n))
	return vecBytes, metaBytes, dim
}
