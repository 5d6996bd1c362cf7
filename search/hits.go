package search

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
)

// Hit is one retrieved document: its snapshot-global ordinal, score, and
// optional doc-values sort key.
type Hit struct {
	Ord     int
	Score   float64
	SortKey string
}

// Hits is one page of results. Stored fields resolve lazily against the
// snapshot the search ran on, and are cached per hit; Close releases the
// snapshot, after which Doc may no longer be called.
type Hits struct {
	snap  *index.Snapshot
	hits  []Hit
	total int
	docs  []*field.Document
}

func newHits(snap *index.Snapshot, hits []Hit, total int) *Hits {
	return &Hits{snap: snap, hits: hits, total: total, docs: make([]*field.Document, len(hits))}
}

// Len returns the number of hits in this page.
func (h *Hits) Len() int { return len(h.hits) }

// Total returns the full match count of the query.
func (h *Hits) Total() int { return h.total }

// At returns the i-th hit of the page.
func (h *Hits) At(i int) Hit { return h.hits[i] }

// Doc resolves the i-th hit's stored fields, with the ranking score under
// the score pseudo-field.
func (h *Hits) Doc(i int) (*field.Document, error) {
	if h.docs[i] != nil {
		return h.docs[i], nil
	}
	stored, err := h.snap.Stored(h.hits[i].Ord)
	if err != nil {
		return nil, err
	}
	doc := field.FromMap(stored)
	doc.Set(field.ScoreField, h.hits[i].Score)
	h.docs[i] = doc
	return doc, nil
}

// Sorted returns a copy of the page reordered by the key function,
// ascending, ties broken by original rank.
func (h *Hits) Sorted(key func(Hit) string) *Hits {
	reordered := append([]Hit(nil), h.hits...)
	rank := make(map[int]int, len(reordered))
	for i, hit := range h.hits {
		rank[hit.Ord] = i
	}
	sort.SliceStable(reordered, func(i, j int) bool {
		ki, kj := key(reordered[i]), key(reordered[j])
		if ki != kj {
			return ki < kj
		}
		return rank[reordered[i].Ord] < rank[reordered[j].Ord]
	})
	out := newHits(h.snap.Acquire(), reordered, h.total)
	return out
}

// Group is one GroupBy bucket: a doc value and the page hits carrying it.
type Group struct {
	Value string
	Hits  []Hit
}

// GroupBy buckets the page's hits by the field's first doc value, preserving
// rank order within each group. Group order is first appearance.
func (h *Hits) GroupBy(fieldName string) []Group {
	order := make(map[string]int)
	var groups []Group
	for _, hit := range h.hits {
		key := ""
		if values := h.snap.DocValues(fieldName, hit.Ord); len(values) > 0 {
			key = values[0]
		}
		idx, ok := order[key]
		if !ok {
			idx = len(groups)
			order[key] = idx
			groups = append(groups, Group{Value: key})
		}
		groups[idx].Hits = append(groups[idx].Hits, hit)
	}
	return groups
}

// Close releases the snapshot backing the page.
func (h *Hits) Close() {
	if h.snap != nil {
		h.snap.Release()
		h.snap = nil
	}
}

// sortHitsByKey orders hits by sort key with empty keys last, ties broken by
// score descending then ordinal ascending.
func sortHitsByKey(hits []Hit, reverse bool) {
	sort.SliceStable(hits, func(i, j int) bool {
		ki, kj := hits[i].SortKey, hits[j].SortKey
		if (ki == "") != (kj == "") {
			return kj == ""
		}
		if ki != kj {
			if reverse {
				return ki > kj
			}
			return ki < kj
		}
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ord < hits[j].Ord
	})
}
