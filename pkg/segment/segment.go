// Package segment implements the immutable on-disk segment format: a
// sorted term dictionary (pkg/fst), postings blocks (pkg/codec),
// varint-encoded document lengths, a struct-of-arrays dense-vector
// store, and a CRC32C-checked footer tying the pieces together. The
// dictionary is produced through pkg/fst's IndexBuilder/IndexReader;
// postings blocks are varint length-prefixed, and the footer is a fixed
// run of little-endian u32 fields, including the checksums of every
// section except the term dictionary, followed by its own checksum.
package segment

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/kittclouds/retrieval-core/pkg/errs"
)

const (
	fileTermDict   = "term_dict.fst"
	fileTermInfo   = "term_info.bin"
	filePostings   = "postings.bin"
	fileDocLengths = "doc_lengths.bin"
	fileVectors    = "vectors.bin"
	fileVectorMeta = "vector_metadata.bin"
	fileFooter     = "footer.bin"
)

const (
	magic   = "RCSEG001"
	version = uint32(1)
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func checksum(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

// footer is the fixed-shape trailer recording per-section checksums and
// top-level counts, read first on open so a truncated or corrupted
// section is detected before any term/vector lookup is attempted.
type footer struct {
	Version        uint32
	DocCount       uint32
	TermCount      uint32
	VectorDim      uint32
	TermInfoCRC    uint32
	PostingsCRC    uint32
	DocLengthsCRC  uint32
	VectorsCRC     uint32
	VectorMetaCRC  uint32
}

func encodeFooter(f footer) []byte {
	buf := make([]byte, 0, len(magic)+4*10)
	buf = append(buf, magic...)
	for _, v := range []uint32{
		f.Version, f.DocCount, f.TermCount, f.VectorDim,
		f.TermInfoCRC, f.PostingsCRC, f.DocLengthsCRC, f.VectorsCRC, f.VectorMetaCRC,
	} {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	buf = append(buf, byte(checksum(buf)), byte(checksum(buf)>>8), byte(checksum(buf)>>16), byte(checksum(buf)>>24))
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	var f footer
	if len(buf) < len(magic)+4*9+4 {
		return f, &errs.FormatError{Message: "footer too short"}
	}
	if string(buf[:len(magic)]) != magic {
		return f, &errs.FormatError{Message: "bad magic", Expected: magic, Actual: string(buf[:len(magic)])}
	}
	body := buf[:len(buf)-4]
	wantCRC := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	gotCRC := checksum(body)
	if wantCRC != gotCRC {
		return f, &errs.ChecksumMismatch{Expected: wantCRC, Actual: gotCRC}
	}

	pos := len(magic)
	read := func() uint32 {
		v := binary.LittleEndian.Uint32(buf[pos : pos+4])
		pos += 4
		return v
	}
	f.Version = read()
	f.DocCount = read()
	f.TermCount = read()
	f.VectorDim = read()
	f.TermInfoCRC = read()
	f.PostingsCRC = read()
	f.DocLengthsCRC = read()
	f.VectorsCRC = read()
	f.VectorMetaCRC = read()
	return f, nil
}
