package wal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"path"
	"sync"

	"github.com/kittclouds/retrieval-core/pkg/directory"
	"github.com/kittclouds/retrieval-core/pkg/errs"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// syncer is satisfied by backends whose file handle exposes an explicit
// fsync; best-effort only, the same assert-then-fallback shape
// pkg/directory already uses for hackpadfs.RenameFS.
type syncer interface {
	Sync() error
}

// Writer owns the current WAL segment file and the monotonic entry-ID
// counter. Appends are serialized by mu, held only for the duration of a
// single entry's serialize-and-flush.
type Writer struct {
	mu sync.Mutex

	dir      directory.Directory
	walDir   string
	seq      uint64
	file     io.WriteCloser
	nextID   uint64
	syncEach bool
}

// Open creates (or appends to, if one already exists for seq) the WAL
// segment file wal_<seq>.log under walDir, ready to accept entries
// starting at startEntryID. syncEach selects fsync-per-append (true) over
// batched/unsynced appends (false), letting the caller pick the
// durability/latency tradeoff.
func Open(dir directory.Directory, walDir string, seq uint64, startEntryID uint64, syncEach bool) (*Writer, error) {
	if err := dir.CreateDirAll(walDir); err != nil {
		return nil, err
	}
	p := segmentPath(walDir, seq)
	f, err := dir.AppendFile(p)
	if err != nil {
		return nil, err
	}
	return &Writer{dir: dir, walDir: walDir, seq: seq, file: f, nextID: startEntryID, syncEach: syncEach}, nil
}

func segmentPath(walDir string, seq uint64) string {
	return path.Join(walDir, fmt.Sprintf("wal_%06d.log", seq))
}

// OpenForRecovery opens a fresh WAL segment file (sequence number one
// past the highest existing wal_<seq>.log under walDir) ready to accept
// entries starting at result.State.EntryID+1, the write-path counterpart
// to Recover.
func OpenForRecovery(dir directory.Directory, walDir string, result *RecoverResult, syncEach bool) (*Writer, error) {
	seqs, err := listWalSegments(dir, walDir)
	if err != nil {
		return nil, err
	}
	next := uint64(1)
	if len(seqs) > 0 {
		next = seqs[len(seqs)-1] + 1
	}
	return Open(dir, walDir, next, result.State.EntryID+1, syncEach)
}

// Append assigns the next monotonic entry ID to e, frames and writes it,
// and (if syncEach) fsyncs before returning. Returns the assigned entry
// ID.
func (w *Writer) Append(e WalEntry) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e.EntryID = w.nextID
	frame, err := encodeFrame(e)
	if err != nil {
		return 0, err
	}
	if _, err := w.file.Write(frame); err != nil {
		return 0, &errs.Io{Cause: err}
	}
	if w.syncEach {
		if s, ok := w.file.(syncer); ok {
			if err := s.Sync(); err != nil {
				return 0, &errs.Io{Cause: err}
			}
		}
	}
	w.nextID++
	return e.EntryID, nil
}

// NextEntryID reports the entry ID the next Append call will assign.
func (w *Writer) NextEntryID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextID
}

// Close closes the underlying segment file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// encodeFrame serializes e via gob and wraps it as
// [length: u32][payload][crc32c: u32].
func encodeFrame(e WalEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	payload := buf.Bytes()

	frame := make([]byte, 4+len(payload)+4)
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	copy(frame[4:4+len(payload)], payload)
	binary.LittleEndian.PutUint32(frame[4+len(payload):], crc32.Checksum(payload, castagnoli))
	return frame, nil
}

// decodeFrame reads one frame from the front of buf, returning the
// decoded entry and the number of bytes consumed. io.ErrUnexpectedEOF
// signals a truncated trailing frame (the expected shape of a log that
// was cut off mid-append at crash time); callers treat that as "stop
// replaying here", not a hard error.
func decodeFrame(buf []byte) (WalEntry, int, error) {
	var e WalEntry
	if len(buf) < 4 {
		return e, 0, io.ErrUnexpectedEOF
	}
	length := binary.LittleEndian.Uint32(buf[0:4])
	end := 4 + int(length) + 4
	if end > len(buf) {
		return e, 0, io.ErrUnexpectedEOF
	}
	payload := buf[4 : 4+length]
	wantCRC := binary.LittleEndian.Uint32(buf[4+length : end])
	gotCRC := crc32.Checksum(payload, castagnoli)
	if wantCRC != gotCRC {
		return e, 0, &errs.ChecksumMismatch{Expected: wantCRC, Actual: gotCRC}
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&e); err != nil {
		return e, 0, err
	}
	return e, end, nil
}
