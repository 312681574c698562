package topk

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeapBasic(t *testing.T) {
	h := New(3)
	h.PushIfBetter(1.0, 10)
	h.PushIfBetter(5.0, 20)
	h.PushIfBetter(3.0, 30)
	h.PushIfBetter(0.5, 40) // worse than all, should not displace
	h.PushIfBetter(9.0, 50) // best, should displace 1.0/10

	got := h.DrainSorted()
	assert.Equal(t, 3, len(got))
	assert.Equal(t, []Result{{9, 50}, {5, 20}, {3, 30}}, got)
}

func TestHeapTieBreakAscendingDocID(t *testing.T) {
	h := New(2)
	h.PushIfBetter(1.0, 30)
	h.PushIfBetter(1.0, 10)
	h.PushIfBetter(1.0, 20) // evicts 30: ties keep the lowest doc IDs

	got := h.DrainSorted()
	assert.Equal(t, []Result{{1.0, 10}, {1.0, 20}}, got)
}

func TestHeapZeroK(t *testing.T) {
	h := New(0)
	h.PushIfBetter(1.0, 1)
	assert.Empty(t, h.DrainSorted())
}

func TestHeapAgainstBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 30; trial++ {
		n := r.Intn(200) + 1
		k := r.Intn(20) + 1

		type pair struct {
			score float32
			id    uint32
		}
		items := make([]pair, n)
		for i := range items {
			items[i] = pair{score: r.Float32() * 100, id: uint32(i)}
		}

		h := New(k)
		for _, it := range items {
			h.PushIfBetter(it.score, it.id)
		}
		got := h.DrainSorted()

		sort.Slice(items, func(i, j int) bool {
			if items[i].score != items[j].score {
				return items[i].score > items[j].score
			}
			return items[i].id < items[j].id
		})
		want := items
		if len(want) > k {
			want = want[:k]
		}

		if assert.Equal(t, len(want), len(got)) {
			for i := range want {
				assert.Equal(t, want[i].score, got[i].Score)
				assert.Equal(t, want[i].id, got[i].DocID)
			}
		}
	}
}
