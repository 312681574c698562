package vellum

import (
	"bytes"
	"errors"
	"io"
	"sort"

	"github.com/kittclouds/retrieval-core/pkg/codec"
)

// This file supplies the ordered term-dictionary primitives wrapper.go
// assumes (New/Builder/Load/FST/Iterator) but that the reference pack
// never captured any implementation of. The on-disk shape here is not a
// byte-level finite-state transducer; it is a sorted (key, value) table
// (an entry count, then each key and value varint-framed) that Load
// decodes whole and Get binary-searches, which is sufficient to satisfy
// the same contract (sorted insertion, exact get, prefix-ordered
// iteration) the rest of the segment reader depends on, without
// guessing at an external FST codec's exact encoding.

var (
	// ErrIteratorDone is returned by Iterator.Next once iteration is exhausted.
	ErrIteratorDone = errors.New("vellum: iterator done")
	errKeyOutOfOrder = errors.New("vellum: keys must be inserted in strictly increasing order")
)

const magic = "TDICT001"

// BuilderOpts reserved for forward compatibility; currently unused.
type BuilderOpts struct{}

// Builder accumulates sorted (key, value) pairs and serializes them to w
// on Close.
type Builder struct {
	w       io.Writer
	entries []entry
	lastKey []byte
	closed  bool
}

type entry struct {
	key []byte
	val uint64
}

// New creates a Builder that will write its serialized dictionary to w
// once Close is called. opts is accepted for contract parity and
// currently ignored.
func New(w io.Writer, opts *BuilderOpts) (*Builder, error) {
	return &Builder{w: w}, nil
}

// Insert adds a key-value pair. Keys must be inserted in strictly
// increasing order.
func (b *Builder) Insert(key []byte, val uint64) error {
	if b.closed {
		return errors.New("vellum: insert after close")
	}
	if b.lastKey != nil && bytes.Compare(key, b.lastKey) <= 0 {
		return errKeyOutOfOrder
	}
	k := make([]byte, len(key))
	copy(k, key)
	b.entries = append(b.entries, entry{key: k, val: val})
	b.lastKey = k
	return nil
}

// Close finalizes the dictionary and writes it to the underlying writer.
func (b *Builder) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	var buf []byte
	buf = append(buf, magic...)
	buf = codec.AppendVarint(buf, uint64(len(b.entries)))
	for _, e := range b.entries {
		buf = codec.AppendVarint(buf, uint64(len(e.key)))
		buf = append(buf, e.key...)
		buf = codec.AppendVarint(buf, e.val)
	}
	_, err := b.w.Write(buf)
	return err
}

// FST is a read-only, loaded ordered term dictionary.
type FST struct {
	entries []entry
}

// Load parses a dictionary previously produced by Builder.Close.
func Load(data []byte) (*FST, error) {
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return nil, errors.New("vellum: bad magic")
	}
	pos := len(magic)
	count, n, err := codec.DecodeVarint(data[pos:])
	if err != nil {
		return nil, err
	}
	pos += n

	entries := make([]entry, 0, count)
	for i := uint64(0); i < count; i++ {
		klen, n, err := codec.DecodeVarint(data[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		key := data[pos : pos+int(klen)]
		pos += int(klen)
		val, n, err := codec.DecodeVarint(data[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		entries = append(entries, entry{key: key, val: val})
	}
	return &FST{entries: entries}, nil
}

// Len returns the number of keys in the dictionary.
func (f *FST) Len() int { return len(f.entries) }

// Get looks up key, reporting found=false if absent.
func (f *FST) Get(key []byte) (uint64, bool, error) {
	i := sort.Search(len(f.entries), func(i int) bool {
		return bytes.Compare(f.entries[i].key, key) >= 0
	})
	if i < len(f.entries) && bytes.Equal(f.entries[i].key, key) {
		return f.entries[i].val, true, nil
	}
	return 0, false, nil
}

// Iterator returns an iterator over keys in [start, end). A nil start
// begins at the first key; a nil end runs to the last key.
func (f *FST) Iterator(start, end []byte) (*Iterator, error) {
	i := 0
	if start != nil {
		i = sort.Search(len(f.entries), func(i int) bool {
			return bytes.Compare(f.entries[i].key, start) >= 0
		})
	}
	return &Iterator{fst: f, pos: i, end: end}, nil
}

// Close releases resources held by the FST. The in-memory
// implementation holds nothing beyond the decoded slice, so this is a
// no-op kept for contract parity with a true mmap-backed FST.
func (f *FST) Close() error { return nil }

// Iterator walks FST entries in key order.
type Iterator struct {
	fst *FST
	pos int
	end []byte
}

// Current returns the key and value at the iterator's position. If the
// iterator has already run past its range (including an Iterator call
// over an empty range), it returns a nil key so callers checking a
// prefix/bound against it see an immediate non-match.
func (it *Iterator) Current() ([]byte, uint64) {
	if it.pos >= len(it.fst.entries) {
		return nil, 0
	}
	if it.end != nil && bytes.Compare(it.fst.entries[it.pos].key, it.end) >= 0 {
		return nil, 0
	}
	e := it.fst.entries[it.pos]
	return e.key, e.val
}

// Next advances the iterator, returning ErrIteratorDone once past end
// (or the last key, for a nil end).
func (it *Iterator) Next() error {
	it.pos++
	if it.pos >= len(it.fst.entries) {
		return ErrIteratorDone
	}
	if it.end != nil && bytes.Compare(it.fst.entries[it.pos].key, it.end) >= 0 {
		return ErrIteratorDone
	}
	return nil
}
