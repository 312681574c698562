package codec

// BlockSize is the number of postings per encoded block.
const BlockSize = 128

// EncodePostingsBlock encodes up to BlockSize (docID delta, termFreq)
// pairs. Full blocks (exactly BlockSize entries) use the bitpacked layout
// `[w_doc: u8][bitpacked deltas][w_tf: u8][bitpacked tfs]`; partial tail
// blocks use a marker byte of 0 followed by a varint entry count, then
// varint-encoded deltas and varint-encoded term frequencies.
func EncodePostingsBlock(docIDs []uint32, freqs []uint32) []byte {
	n := len(docIDs)
	deltas := DeltaEncode(docIDs)

	if n == BlockSize {
		wDoc := BitWidthMany(deltas)
		wTF := BitWidthMany(freqs)
		out := make([]byte, 0, 2+len(Pack(deltas, wDoc))+len(Pack(freqs, wTF)))
		out = append(out, byte(wDoc))
		out = append(out, Pack(deltas, wDoc)...)
		out = append(out, byte(wTF))
		out = append(out, Pack(freqs, wTF)...)
		return out
	}

	// Partial tail block: marker byte 0, then a varint count, then varint
	// deltas, then varint term frequencies.
	out := make([]byte, 0, 1+n*4)
	out = append(out, 0)
	out = AppendVarint(out, uint64(n))
	for _, d := range deltas {
		out = AppendVarint(out, uint64(d))
	}
	for _, f := range freqs {
		out = AppendVarint(out, uint64(f))
	}
	return out
}

// DecodePostingsBlock decodes a block encoded by EncodePostingsBlock.
// n is the number of postings expected in the block if it is a full
// (BlockSize-sized) block; it is ignored for partial blocks, which
// self-describe their count via the leading varint.
func DecodePostingsBlock(buf []byte, n int) (docIDs []uint32, freqs []uint32, consumed int, err error) {
	if len(buf) == 0 {
		return nil, nil, 0, nil
	}
	if buf[0] == 0 && n != BlockSize {
		return decodePartialBlock(buf)
	}
	if n == BlockSize {
		return decodeFullBlock(buf)
	}
	return decodePartialBlock(buf)
}

func decodeFullBlock(buf []byte) ([]uint32, []uint32, int, error) {
	pos := 0
	wDoc := int(buf[pos])
	pos++
	deltaBytes := (BlockSize*wDoc + 7) / 8
	deltas := Unpack(buf[pos:pos+deltaBytes], wDoc, BlockSize)
	pos += deltaBytes

	wTF := int(buf[pos])
	pos++
	tfBytes := (BlockSize*wTF + 7) / 8
	freqs := Unpack(buf[pos:pos+tfBytes], wTF, BlockSize)
	pos += tfBytes

	return DeltaDecode(deltas), freqs, pos, nil
}

func decodePartialBlock(buf []byte) ([]uint32, []uint32, int, error) {
	pos := 1 // skip marker byte
	count, n, err := DecodeVarint(buf[pos:])
	if err != nil {
		return nil, nil, 0, err
	}
	pos += n

	deltas := make([]uint32, count)
	for i := range deltas {
		v, n, err := DecodeVarint(buf[pos:])
		if err != nil {
			return nil, nil, 0, err
		}
		deltas[i] = uint32(v)
		pos += n
	}

	freqs := make([]uint32, count)
	for i := range freqs {
		v, n, err := DecodeVarint(buf[pos:])
		if err != nil {
			return nil, nil, 0, err
		}
		freqs[i] = uint32(v)
		pos += n
	}

	return DeltaDecode(deltas), freqs, pos, nil
}
