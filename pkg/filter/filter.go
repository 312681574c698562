// Package filter implements metadata filtering for first-stage
// retrieval: a 64-bit category/tag bitmask per document for cheap
// inline filtering during graph/list traversal, plus a roaring-backed
// category reverse index for post-filter over-retrieve paths. The
// reverse index reuses the same roaring.Bitmap Contains/AndNot idiom as
// pkg/lexical's postings.
package filter

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kittclouds/retrieval-core/pkg/errs"
)

// MaxCategories is the number of distinct category bits a Set's 64-bit
// mask can carry.
const MaxCategories = 64

// Set is a reusable per-document category mask.
type Set uint64

// With returns s with bit added.
func (s Set) With(bit uint) Set {
	return s | (1 << bit)
}

// Has reports whether bit is set.
func (s Set) Has(bit uint) bool {
	return s&(1<<bit) != 0
}

// MatchesAll reports whether every bit set in required is also set in s
// (AND-semantics filter: document must carry all requested categories).
func (s Set) MatchesAll(required Set) bool {
	return s&required == required
}

// MatchesAny reports whether s shares any bit with allowed (OR-semantics
// filter).
func (s Set) MatchesAny(allowed Set) bool {
	return s&allowed != 0
}

// Index is a reverse index from category bit to the roaring.Bitmap of
// doc IDs carrying it, for the post-filter over-retrieve path: ANN
// search returns more candidates than needed, then filter.Index narrows
// them before truncating to k.
type Index struct {
	byCategory map[uint]*roaring.Bitmap
	masks      map[uint32]Set
}

// New creates an empty filter Index.
func New() *Index {
	return &Index{
		byCategory: make(map[uint]*roaring.Bitmap),
		masks:      make(map[uint32]Set),
	}
}

// Assign records docID's category mask.
func (idx *Index) Assign(docID uint32, mask Set) error {
	if mask == 0 {
		return nil
	}
	idx.masks[docID] = mask
	for bit := uint(0); bit < MaxCategories; bit++ {
		if !mask.Has(bit) {
			continue
		}
		bm, ok := idx.byCategory[bit]
		if !ok {
			bm = roaring.New()
			idx.byCategory[bit] = bm
		}
		bm.Add(docID)
	}
	return nil
}

// Unassign removes docID from every category bitmap it was recorded
// under, via the same AndNot tombstone idiom as pkg/lexical's postings
// deletes.
func (idx *Index) Unassign(docID uint32) {
	mask, ok := idx.masks[docID]
	if !ok {
		return
	}
	tomb := roaring.New()
	tomb.Add(docID)
	for bit := uint(0); bit < MaxCategories; bit++ {
		if !mask.Has(bit) {
			continue
		}
		if bm, ok := idx.byCategory[bit]; ok {
			bm.AndNot(tomb)
		}
	}
	delete(idx.masks, docID)
}

// Mask returns docID's recorded category mask, or 0 if never assigned.
func (idx *Index) Mask(docID uint32) Set {
	return idx.masks[docID]
}

// DocsWithCategory returns the set of doc IDs carrying bit.
func (idx *Index) DocsWithCategory(bit uint) (*roaring.Bitmap, error) {
	if bit >= MaxCategories {
		return nil, &errs.NotSupported{Msg: "category bit out of range"}
	}
	bm, ok := idx.byCategory[bit]
	if !ok {
		return roaring.New(), nil
	}
	return bm.Clone(), nil
}

// FilterCandidates keeps only the doc IDs in candidates whose recorded
// mask satisfies required under AND-semantics.
func (idx *Index) FilterCandidates(candidates []uint32, required Set) []uint32 {
	if required == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, d := range candidates {
		if idx.Mask(d).MatchesAll(required) {
			out = append(out, d)
		}
	}
	return out
}
