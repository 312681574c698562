package wal

// State is the recovered (or live, writer-side) in-memory picture of
// which segments are active, which documents within them are deleted,
// and the counters needed to resume ID assignment after a restart. It
// doubles as the checkpoint snapshot body: Save/LoadCheckpoint gob-encode
// and decode a State directly, so "write a checkpoint" and "recover to a
// point" operate on the identical shape.
type State struct {
	// EntryID is the WAL entry this state reflects: for a checkpoint,
	// the Checkpoint entry's own ID; for a fully recovered state, the
	// highest entry ID actually replayed.
	EntryID uint64

	ActiveSegments  []uint64
	SegmentDocCount map[uint64]uint64
	// Deletes maps segment ID to the set of deleted doc IDs within it.
	Deletes map[uint64]map[uint32]struct{}

	NextSegmentID uint64
	NextDocID     uint64
}

func newState() *State {
	return &State{
		SegmentDocCount: make(map[uint64]uint64),
		Deletes:         make(map[uint64]map[uint32]struct{}),
		NextSegmentID:   1,
	}
}

func (s *State) clone() *State {
	c := &State{
		EntryID:         s.EntryID,
		ActiveSegments:  append([]uint64(nil), s.ActiveSegments...),
		SegmentDocCount: make(map[uint64]uint64, len(s.SegmentDocCount)),
		Deletes:         make(map[uint64]map[uint32]struct{}, len(s.Deletes)),
		NextSegmentID:   s.NextSegmentID,
		NextDocID:       s.NextDocID,
	}
	for k, v := range s.SegmentDocCount {
		c.SegmentDocCount[k] = v
	}
	for seg, docs := range s.Deletes {
		m := make(map[uint32]struct{}, len(docs))
		for d := range docs {
			m[d] = struct{}{}
		}
		c.Deletes[seg] = m
	}
	return c
}

func (s *State) isActive(id uint64) bool {
	for _, a := range s.ActiveSegments {
		if a == id {
			return true
		}
	}
	return false
}

func (s *State) addActive(id uint64) {
	if !s.isActive(id) {
		s.ActiveSegments = append(s.ActiveSegments, id)
	}
}

func (s *State) removeActive(id uint64) {
	out := s.ActiveSegments[:0]
	for _, a := range s.ActiveSegments {
		if a != id {
			out = append(out, a)
		}
	}
	s.ActiveSegments = out
}

func (s *State) bumpSegmentSeen(id uint64) {
	if id+1 > s.NextSegmentID {
		s.NextSegmentID = id + 1
	}
}

func (s *State) markDeleted(segID uint64, docID uint32) {
	m, ok := s.Deletes[segID]
	if !ok {
		m = make(map[uint32]struct{})
		s.Deletes[segID] = m
	}
	m[docID] = struct{}{}
}

// IsDeleted reports whether docID within segID is marked deleted.
func (s *State) IsDeleted(segID uint64, docID uint32) bool {
	m, ok := s.Deletes[segID]
	if !ok {
		return false
	}
	_, deleted := m[docID]
	return deleted
}
