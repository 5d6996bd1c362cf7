package search

import (
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
)

// FacetCount is one facet bucket.
type FacetCount struct {
	Value string
	Count int
}

// Facets counts matching documents per doc value of each field, by grouping
// the match set's doc-values columns. Values never observed in the match
// set do not appear, so counts are always positive. Buckets come back
// ordered count descending, value ascending.
func (e *Executor) Facets(q query.Node, fields ...string) (map[string][]FacetCount, error) {
	start := time.Now()
	snap := e.searcher.Snapshot()
	defer snap.Release()

	matches, err := query.Matching(snap, q)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]FacetCount, len(fields))
	for _, fieldName := range fields {
		counts := make(map[string]int)
		it := matches.Iterator()
		for it.HasNext() {
			ord := int(it.Next())
			for _, value := range snap.DocValues(fieldName, ord) {
				counts[value]++
			}
		}
		out[fieldName] = sortFacets(counts)
	}
	if e.metrics != nil {
		e.metrics.FacetLatency.WithLabelValues("grouping").Observe(time.Since(start).Seconds())
	}
	return out, nil
}

// FacetQueries counts the intersection of the match set with each named
// facet query. Unlike Facets, a bucket whose query matches nothing in the
// result still appears with a zero count, and buckets may overlap.
func (e *Executor) FacetQueries(q query.Node, buckets map[string]query.Node) (map[string]int, error) {
	start := time.Now()
	snap := e.searcher.Snapshot()
	defer snap.Release()

	matches, err := query.Matching(snap, q)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(buckets))
	for name, bq := range buckets {
		bm, err := query.Matching(snap, bq)
		if err != nil {
			return nil, err
		}
		bm.And(matches)
		out[name] = int(bm.GetCardinality())
	}
	if e.metrics != nil {
		e.metrics.FacetLatency.WithLabelValues("queries").Observe(time.Since(start).Seconds())
	}
	return out, nil
}

func sortFacets(counts map[string]int) []FacetCount {
	out := make([]FacetCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, FacetCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
