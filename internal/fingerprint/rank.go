package fingerprint

import (
	"cmp"
	"math/bits"
	"slices"
)

// Comparator scores the similarity of two fingerprints. Higher is closer.
type Comparator interface {
	Similarity(a, b []uint32) float64
}

// DefaultMaxOffset is the alignment search window used by BitComparator when
// MaxOffset is zero. Chromaprint emits roughly eight items per second.
const DefaultMaxOffset = 80

// BitComparator scores fingerprints by the share of equal bits over their
// overlap, trying every alignment within MaxOffset items and keeping the
// best. Scores lie in [0, 1]; unrelated audio scores around 0.5.
type BitComparator struct {
	MaxOffset int
}

// Similarity implements Comparator.
func (c BitComparator) Similarity(a, b []uint32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	maxOff := c.MaxOffset
	if maxOff <= 0 {
		maxOff = DefaultMaxOffset
	}
	best := 0.0
	for off := -maxOff; off <= maxOff; off++ {
		start := max(0, -off)
		end := min(len(a), len(b)-off)
		if end <= start {
			continue
		}
		diff := 0
		for i := start; i < end; i++ {
			diff += bits.OnesCount32(a[i] ^ b[i+off])
		}
		score := 1 - float64(diff)/float64(32*(end-start))
		if score > best {
			best = score
		}
	}
	return best
}

// Ranked pairs an item with its similarity to the query. Scored is false when
// the item carries no usable fingerprint.
type Ranked[T any] struct {
	Item   T
	Score  float64
	Scored bool
}

// Rank orders items by similarity to query, best first. Items without a
// fingerprint go last, and equal scores are ordered by name. An empty query
// disables ranking: items come back in their original order, unscored.
func Rank[T any](query []uint32, items []T, key func(T) (name string, fp []uint32), c Comparator) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, it := range items {
		out[i].Item = it
	}
	if len(query) == 0 {
		return out
	}
	names := make([]string, len(items))
	idx := make([]int, len(items))
	for i, it := range items {
		name, fp := key(it)
		names[i] = name
		idx[i] = i
		if len(fp) > 0 {
			out[i].Score = c.Similarity(query, fp)
			out[i].Scored = true
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		ra, rb := out[a], out[b]
		if ra.Scored != rb.Scored {
			if ra.Scored {
				return -1
			}
			return 1
		}
		if r := cmp.Compare(rb.Score, ra.Score); r != 0 {
			return r
		}
		return cmp.Compare(names[a], names[b])
	})
	sorted := make([]Ranked[T], len(idx))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}
