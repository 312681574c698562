// Package lexical implements an in-memory inverted index and BM25-family
// scoring over caller-tokenized term sequences.
//
// Each term's postings are a roaring.Bitmap of doc IDs paired with a
// parallel per-doc payload holding term frequency and a proximity
// segment mask, so term presence and term scoring metadata can be
// queried and intersected independently.
package lexical

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kittclouds/retrieval-core/pkg/errs"
)

// Posting is per-document scoring metadata for one term, the "cold"
// half of a postings entry (docID lives in the bitmap; this is keyed by
// docID alongside it). SegMask is a 32-bit proximity mask.
type Posting struct {
	TermFreq uint32
	SegMask  uint32
}

type termEntry struct {
	docs     *roaring.Bitmap
	payloads map[uint32]Posting
}

// Index is an in-memory inverted index keyed by caller-supplied terms.
// Tokenization, stemming, and stop-word removal are all caller
// responsibilities; the index stores and scores whatever token strings
// it is given.
type Index struct {
	mu sync.RWMutex

	postings map[string]*termEntry
	docLens  map[uint32]int
	live     *roaring.Bitmap // docs present and not deleted

	totalDocs int
	totalLen  int64

	// idfMu guards idfCache/idfDirty independently of mu: Retrieve only
	// ever holds mu's read side while calling idf, and idf populates the
	// cache, so cache writes need their own lock rather than riding along
	// on a RLock (which every concurrent reader also holds).
	idfMu    sync.Mutex
	idfCache map[string]float64
	idfDirty bool
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		postings: make(map[string]*termEntry),
		docLens:  make(map[uint32]int),
		live:     roaring.New(),
		idfCache: make(map[string]float64),
	}
}

// AddDocument indexes docID against terms, where terms[i] occurring in
// position order produces term frequencies and a 32-segment proximity
// mask (segment = position bucketed into 32 equal-width slices of the
// document). Re-adding an existing, non-deleted docID returns an
// InvalidState error: callers must Delete before reindexing.
func (idx *Index) AddDocument(docID uint32, terms []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.live.Contains(docID) {
		return &errs.InvalidState{Msg: "document already indexed; delete before reindexing"}
	}

	counts := make(map[string]uint32, len(terms))
	masks := make(map[string]uint32, len(terms))
	n := len(terms)
	for i, t := range terms {
		counts[t]++
		seg := uint32(0)
		if n > 1 {
			seg = uint32(i * 32 / n)
			if seg > 31 {
				seg = 31
			}
		}
		masks[t] |= 1 << seg
	}

	for t, c := range counts {
		e, ok := idx.postings[t]
		if !ok {
			e = &termEntry{docs: roaring.New(), payloads: make(map[uint32]Posting)}
			idx.postings[t] = e
		}
		e.docs.Add(docID)
		e.payloads[docID] = Posting{TermFreq: c, SegMask: masks[t]}
	}

	idx.docLens[docID] = n
	idx.live.Add(docID)
	idx.totalDocs++
	idx.totalLen += int64(n)
	idx.markIdfDirty()
	return nil
}

// DeleteDocument tombstones docID by removing it from every term's
// postings bitmap via AndNot (bitmap subtraction rather than physical
// postings rewriting).
func (idx *Index) DeleteDocument(docID uint32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.live.Contains(docID) {
		return &errs.NotFound{Path: "doc"}
	}

	tomb := roaring.New()
	tomb.Add(docID)
	for _, e := range idx.postings {
		if e.docs.Contains(docID) {
			e.docs.AndNot(tomb)
			delete(e.payloads, docID)
		}
	}

	idx.totalLen -= int64(idx.docLens[docID])
	delete(idx.docLens, docID)
	idx.live.Remove(docID)
	idx.totalDocs--
	idx.markIdfDirty()
	return nil
}

func (idx *Index) markIdfDirty() {
	idx.idfMu.Lock()
	idx.idfDirty = true
	idx.idfMu.Unlock()
}

// DocCount returns the number of live (non-deleted) documents.
func (idx *Index) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocs
}

// AverageDocLength returns the mean token count per live document.
func (idx *Index) AverageDocLength() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.totalDocs == 0 {
		return 0
	}
	return float64(idx.totalLen) / float64(idx.totalDocs)
}

// idf returns the cached IDF for term. Any mutation marks the cache
// dirty; the next lookup clears it, and each term's IDF is then
// recomputed on its own first lookup (recompute on read, not on every
// write). Callers hold mu for reading postings/totalDocs
// (Retrieve holds RLock, AddDocument/DeleteDocument hold Lock), but
// idfCache itself is populated under idfMu so concurrent RLock-holding
// readers never race each other writing the same map.
func (idx *Index) idf(term string) float64 {
	idx.idfMu.Lock()
	defer idx.idfMu.Unlock()

	if idx.idfDirty {
		idx.idfCache = make(map[string]float64, len(idx.postings))
		idx.idfDirty = false
	}
	if v, ok := idx.idfCache[term]; ok {
		return v
	}
	e, ok := idx.postings[term]
	df := 0
	if ok {
		df = int(e.docs.GetCardinality())
	}
	v := calculateIDF(float64(idx.totalDocs), df)
	idx.idfCache[term] = v
	return v
}
