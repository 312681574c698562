package wal

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/kittclouds/retrieval-core/pkg/directory"
	"github.com/kittclouds/retrieval-core/pkg/errs"
)

const checkpointDir = "checkpoints"

func checkpointPath(entryID uint64) string {
	return path.Join(checkpointDir, fmt.Sprintf("ckpt_%020d", entryID))
}

// SaveCheckpoint gob-encodes state and publishes it atomically to
// checkpoints/ckpt_<entry_id>, the temp-file-plus-rename idiom
// pkg/directory.AtomicWrite already provides. Callers are expected to
// record a matching Checkpoint WAL entry immediately afterward.
func SaveCheckpoint(dir directory.Directory, state *State) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return err
	}
	return dir.AtomicWrite(checkpointPath(state.EntryID), buf.Bytes())
}

// listCheckpointIDs returns every checkpoint's entry ID found under
// checkpoints/, sorted descending (newest first).
func listCheckpointIDs(dir directory.Directory) ([]uint64, error) {
	names, err := dir.ListDir(checkpointDir)
	if err != nil {
		if _, ok := err.(*errs.NotFound); ok {
			return nil, nil
		}
		return nil, err
	}
	var ids []uint64
	for _, n := range names {
		if strings.HasSuffix(n, ".tmp") || !strings.HasPrefix(n, "ckpt_") {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(n, "ckpt_"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, v)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

// loadCheckpoint decodes the checkpoint at entryID.
func loadCheckpoint(dir directory.Directory, entryID uint64) (*State, error) {
	data, err := dir.ReadFile(checkpointPath(entryID))
	if err != nil {
		return nil, err
	}
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	if s.SegmentDocCount == nil {
		s.SegmentDocCount = make(map[uint64]uint64)
	}
	if s.Deletes == nil {
		s.Deletes = make(map[uint64]map[uint32]struct{})
	}
	return &s, nil
}

// loadNewestValidCheckpoint tries each checkpoint newest-first, skipping
// (and recording a warning for) any that fail to decode, per recovery
// step 1's "ignoring corrupt ones with a warning".
func loadNewestValidCheckpoint(dir directory.Directory) (*State, []string, error) {
	ids, err := listCheckpointIDs(dir)
	if err != nil {
		return nil, nil, err
	}
	var warnings []string
	for _, id := range ids {
		s, err := loadCheckpoint(dir, id)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("checkpoint %d unreadable, skipping: %v", id, err))
			continue
		}
		return s, warnings, nil
	}
	return newState(), warnings, nil
}
