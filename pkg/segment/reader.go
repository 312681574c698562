package segment

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/kittclouds/retrieval-core/pkg/codec"
	"github.com/kittclouds/retrieval-core/pkg/directory"
	"github.com/kittclouds/retrieval-core/pkg/errs"
	"github.com/kittclouds/retrieval-core/pkg/fst"
)

// termInfo is one term's location within postings.bin.
type termInfo struct {
	offset   uint64
	length   uint64
	docFreq  uint64
	collFreq uint64
}

// Reader is an opened, read-only segment. It loads the term dictionary,
// term-info table, doc-length array and footer eagerly; postings blocks
// and vectors are read lazily per call.
type Reader struct {
	dir    directory.Directory
	prefix string

	dict       *fst.IndexReader
	termInfos  []termInfo
	docLengths []uint32
	dim        int
	vecCount   int

	f footer
}

// Open validates and loads the segment rooted at prefix within dir,
// verifying every section's checksum against the footer before
// returning. The term dictionary is not covered: the footer carries no
// checksum for it.
func Open(dir directory.Directory, prefix string) (*Reader, error) {
	footerBytes, err := dir.ReadFile(prefix + fileFooter)
	if err != nil {
		return nil, err
	}
	f, err := decodeFooter(footerBytes)
	if err != nil {
		return nil, err
	}

	dictBytes, err := dir.ReadFile(prefix + fileTermDict)
	if err != nil {
		return nil, err
	}
	dict, err := fst.OpenIndex(dictBytes)
	if err != nil {
		return nil, err
	}

	termInfoBytes, err := dir.ReadFile(prefix + fileTermInfo)
	if err != nil {
		return nil, err
	}
	if checksum(termInfoBytes) != f.TermInfoCRC {
		return nil, &errs.ChecksumMismatch{Expected: f.TermInfoCRC, Actual: checksum(termInfoBytes)}
	}
	termInfos, err := decodeTermInfos(termInfoBytes, int(f.TermCount))
	if err != nil {
		return nil, err
	}

	docLenBytes, err := dir.ReadFile(prefix + fileDocLengths)
	if err != nil {
		return nil, err
	}
	if checksum(docLenBytes) != f.DocLengthsCRC {
		return nil, &errs.ChecksumMismatch{Expected: f.DocLengthsCRC, Actual: checksum(docLenBytes)}
	}
	docLengths, err := decodeDocLengths(docLenBytes, int(f.DocCount))
	if err != nil {
		return nil, err
	}

	postingsBytes, err := dir.ReadFile(prefix + filePostings)
	if err != nil {
		return nil, err
	}
	if checksum(postingsBytes) != f.PostingsCRC {
		return nil, &errs.ChecksumMismatch{Expected: f.PostingsCRC, Actual: checksum(postingsBytes)}
	}

	vecMetaBytes, err := dir.ReadFile(prefix + fileVectorMeta)
	if err != nil {
		return nil, err
	}
	if checksum(vecMetaBytes) != f.VectorMetaCRC {
		return nil, &errs.ChecksumMismatch{Expected: f.VectorMetaCRC, Actual: checksum(vecMetaBytes)}
	}
	dim, vecCount := 0, 0
	if len(vecMetaBytes) > 0 {
		d, n, err := codec.DecodeVarint(vecMetaBytes)
		if err != nil {
			return nil, err
		}
		c, _, err := codec.DecodeVarint(vecMetaBytes[n:])
		if err != nil {
			return nil, err
		}
		dim, vecCount = int(d), int(c)
	}

	vectorsBytes, err := dir.ReadFile(prefix + fileVectors)
	if err != nil {
		return nil, err
	}
	if checksum(vectorsBytes) != f.VectorsCRC {
		return nil, &errs.ChecksumMismatch{Expected: f.VectorsCRC, Actual: checksum(vectorsBytes)}
	}

	return &Reader{
		dir:        dir,
		prefix:     prefix,
		dict:       dict,
		termInfos:  termInfos,
		docLengths: docLengths,
		dim:        dim,
		vecCount:   vecCount,
		f:          f,
	}, nil
}

func decodeTermInfos(buf []byte, count int) ([]termInfo, error) {
	out := make([]termInfo, 0, count)
	pos := 0
	for i := 0; i < count; i++ {
		off, n, err := codec.DecodeVarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		length, n, err := codec.DecodeVarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		df, n, err := codec.DecodeVarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		cf, n, err := codec.DecodeVarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		out = append(out, termInfo{offset: off, length: length, docFreq: df, collFreq: cf})
	}
	return out, nil
}

func decodeDocLengths(buf []byte, count int) ([]uint32, error) {
	out := make([]uint32, 0, count)
	pos := 0
	for i := 0; i < count; i++ {
		v, n, err := codec.DecodeVarint(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		out = append(out, uint32(v))
	}
	return out, nil
}

// DocCount returns the segment's total document count, live and dead
// alike (the segment format itself carries no tombstones; deletion
// state lives in the roaring bitmap layered on top at the index level).
func (r *Reader) DocCount() int { return int(r.f.DocCount) }

// TermCount returns the number of distinct terms in the dictionary.
func (r *Reader) TermCount() int { return int(r.f.TermCount) }

// VectorDim returns the dense-vector dimension, or 0 if the segment
// carries no vector section.
func (r *Reader) VectorDim() int { return r.dim }

// DocLength returns the token length of doc ordinal id.
func (r *Reader) DocLength(id uint32) uint32 {
	if int(id) >= len(r.docLengths) {
		return 0
	}
	return r.docLengths[id]
}

// Postings decodes and returns the full doc-ID and term-frequency
// postings for term, or found=false if the term is absent.
func (r *Reader) Postings(term string) (docIDs []uint32, freqs []uint32, found bool, err error) {
	ord, found, err := r.dict.Get([]byte(term))
	if err != nil || !found {
		return nil, nil, found, err
	}
	if int(ord) >= len(r.termInfos) {
		return nil, nil, false, &errs.FormatError{Message: "term dictionary ordinal out of range"}
	}
	ti := r.termInfos[ord]

	f, err := r.dir.OpenFile(r.prefix + filePostings)
	if err != nil {
		return nil, nil, false, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.NewSectionReader(toReaderAt(f), int64(ti.offset), int64(ti.length)))
	if err != nil {
		return nil, nil, false, &errs.Io{Cause: err}
	}
	return decodePostingsSection(buf, int(ti.docFreq))
}

// TermCollectionFrequency returns term's collection frequency — the sum
// of its term frequency across every document in the segment — or
// found=false if the term is absent.
func (r *Reader) TermCollectionFrequency(term string) (uint64, bool, error) {
	ord, found, err := r.dict.Get([]byte(term))
	if err != nil || !found {
		return 0, found, err
	}
	if int(ord) >= len(r.termInfos) {
		return 0, false, &errs.FormatError{Message: "term dictionary ordinal out of range"}
	}
	return r.termInfos[ord].collFreq, true, nil
}

func decodePostingsSection(buf []byte, docFreq int) ([]uint32, []uint32, bool, error) {
	var docIDs, freqs []uint32
	pos := 0
	remaining := docFreq
	for pos < len(buf) {
		blockLen, n, err := codec.DecodeVarint(buf[pos:])
		if err != nil {
			return nil, nil, false, err
		}
		pos += n
		blockEnd := pos + int(blockLen)
		count := codec.BlockSize
		if remaining < codec.BlockSize {
			count = remaining
		}
		ids, fqs, _, err := codec.DecodePostingsBlock(buf[pos:blockEnd], count)
		if err != nil {
			return nil, nil, false, err
		}
		docIDs = append(docIDs, ids...)
		freqs = append(freqs, fqs...)
		remaining -= len(ids)
		pos = blockEnd
	}
	return docIDs, freqs, true, nil
}

// Vector decodes and returns document ordinal id's dense vector, or
// found=false if the segment carries no vector section or id is out of
// range. The on-disk section is struct-of-arrays (dimension-major):
// dimension d's value for document id lives at byte offset
// (d*vecCount + id)*4, so reconstructing one document's vector takes
// one strided 4-byte read per dimension rather than a single
// contiguous read.
func (r *Reader) Vector(id uint32) (vec []float32, found bool, err error) {
	if r.dim == 0 || int(id) >= r.vecCount {
		return nil, false, nil
	}
	f, err := r.dir.OpenFile(r.prefix + fileVectors)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	ra := toReaderAt(f)

	vec = make([]float32, r.dim)
	var tmp [4]byte
	for d := 0; d < r.dim; d++ {
		offset := (int64(d)*int64(r.vecCount) + int64(id)) * 4
		if _, err := ra.ReadAt(tmp[:], offset); err != nil {
			return nil, false, &errs.Io{Cause: err}
		}
		vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(tmp[:]))
	}
	return vec, true, nil
}

// Close releases the dictionary's resources.
func (r *Reader) Close() error {
	return r.dict.Close()
}

// toReaderAt adapts an io.ReadCloser that also satisfies io.ReaderAt
// (both the OS and in-memory directory backends return *os.File-like
// handles that do); callers needing section reads depend on this.
func toReaderAt(r io.ReadCloser) io.ReaderAt {
	if ra, ok := r.(io.ReaderAt); ok {
		return ra
	}
	return &wholeFileReaderAt{r: r}
}

// wholeFileReaderAt is a fallback for backends whose file handle does
// not implement io.ReaderAt: it reads the entire remaining stream into
// memory once and serves ReadAt from that buffer. Segment files are
// read through this path only for backends without native ReaderAt
// support.
type wholeFileReaderAt struct {
	r    io.ReadCloser
	buf  []byte
	read bool
}

func (w *wholeFileReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if !w.read {
		b, err := io.ReadAll(w.r)
		if err != nil {
			return 0, err
		}
		w.buf = b
		w.read = true
	}
	if off >= int64(len(w.buf)) {
		return 0, io.EOF
	}
	n := copy(p, w.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
