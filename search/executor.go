// Package search executes queries against an index searcher: top-k ranked
// retrieval, sorted retrieval over doc values, counting, faceting, and
// suggestion. It owns no index state beyond caches; all reads go through
// point-in-time snapshots.
package search

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
)

// Executor runs queries against one index searcher.
type Executor struct {
	searcher *index.Searcher
	cfg      config.SearchConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics

	spellMu  sync.Mutex
	spellGen uint64
	spell    map[string]*SpellChecker
}

// NewExecutor wraps a searcher with the search surface.
func NewExecutor(s *index.Searcher, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		searcher: s,
		cfg:      cfg,
		logger:   logger.WithComponent("search.executor"),
		metrics:  m,
		spell:    make(map[string]*SpellChecker),
	}
}

// Searcher returns the underlying index searcher.
func (e *Executor) Searcher() *index.Searcher { return e.searcher }

func (e *Executor) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxLimit > 0 && limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	return limit
}

// Search returns the top limit hits ranked by score descending, ordinal
// ascending on ties. Total counts all matches, not just the returned page.
func (e *Executor) Search(q query.Node, limit int) (*Hits, error) {
	start := time.Now()
	limit = e.clampLimit(limit)
	snap := e.searcher.Snapshot()
	res, err := query.Execute(snap, q)
	if err != nil {
		snap.Release()
		return nil, err
	}
	top := topK(res, limit)
	hits := newHits(snap, top, res.Len())
	e.observe("ranked", start, hits)
	return hits, nil
}

// SearchSorted returns the top limit hits ordered by the field's doc-values
// key instead of score, ascending unless reverse. Documents without a key
// sort last in either direction.
func (e *Executor) SearchSorted(q query.Node, fieldName string, reverse bool, limit int) (*Hits, error) {
	start := time.Now()
	limit = e.clampLimit(limit)
	snap := e.searcher.Snapshot()
	res, err := query.Execute(snap, q)
	if err != nil {
		snap.Release()
		return nil, err
	}
	entries := make([]Hit, len(res.Docs))
	for i, ord := range res.Docs {
		key := ""
		if values := snap.DocValues(fieldName, int(ord)); len(values) > 0 {
			key = values[0]
		}
		entries[i] = Hit{Ord: int(ord), Score: res.Scores[i], SortKey: key}
	}
	sortHitsByKey(entries, reverse)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	hits := newHits(snap, entries, res.Len())
	e.observe("sorted", start, hits)
	return hits, nil
}

// Count returns the number of matching documents without materialising hits.
func (e *Executor) Count(q query.Node) (int, error) {
	snap := e.searcher.Snapshot()
	defer snap.Release()
	if _, ok := q.(query.MatchAll); ok {
		return snap.LiveCount(), nil
	}
	res, err := query.Execute(snap, q)
	if err != nil {
		return 0, err
	}
	return res.Len(), nil
}

func (e *Executor) observe(kind string, start time.Time, hits *Hits) {
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
		e.metrics.SearchHitsCount.Observe(float64(hits.Total()))
	}
	e.logger.Debug("search executed", "kind", kind, "hits", hits.Total(), "elapsed", elapsed)
}

// topK selects the limit best (score desc, ordinal asc) hits with a bounded
// min-heap, then unwinds it into rank order.
func topK(res *query.Result, limit int) []Hit {
	h := &hitHeap{}
	heap.Init(h)
	for i, ord := range res.Docs {
		heap.Push(h, Hit{Ord: int(ord), Score: res.Scores[i]})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	out := make([]Hit, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Hit)
	}
	return out
}

// hitHeap is a min-heap on rank order, so the root is the worst retained hit.
type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Ord > h[j].Ord
}

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(Hit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
