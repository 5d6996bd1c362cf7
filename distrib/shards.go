package distrib

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/tracing"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// Shards federates disjoint partitions of one logical index. Queries fan
// out to every partition concurrently; results merge by score. A partition
// failure degrades the result instead of failing it, with the missing
// partitions listed, unless every partition fails.
type Shards struct {
	backends []Backend
	names    []string
	cfg      config.DistributionConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewShards builds a federated backend. Names label partitions in degraded
// results and metrics; a nil names slice labels them by index.
func NewShards(backends []Backend, names []string, cfg config.DistributionConfig, m *metrics.Metrics) *Shards {
	if names == nil {
		names = make([]string, len(backends))
		for i := range names {
			names[i] = shardName(i)
		}
	}
	return &Shards{
		backends: backends,
		names:    names,
		cfg:      cfg,
		logger:   logger.WithComponent("distrib.shards"),
		metrics:  m,
	}
}

func shardName(i int) string {
	return fmt.Sprintf("shard-%d", i)
}

// fanout runs fn once per partition under the configured concurrency limit
// and timeout, collecting the names of failed partitions. It fails outright
// only when no partition succeeds.
func (s *Shards) fanout(ctx context.Context, op string, fn func(ctx context.Context, i int) error) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "distrib."+op, uuid.NewString())
	defer func() {
		span.End()
		span.Log()
	}()
	if s.cfg.ShardTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShardTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrent > 0 {
		g.SetLimit(s.cfg.MaxConcurrent)
	}
	var mu sync.Mutex
	var missing []string
	var firstErr error
	for i := range s.backends {
		i := i
		g.Go(func() error {
			cctx, child := tracing.StartChildSpan(gctx, s.names[i])
			err := fn(cctx, i)
			child.End()
			if err != nil {
				mu.Lock()
				missing = append(missing, s.names[i])
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				if s.metrics != nil {
					s.metrics.ShardErrorsTotal.WithLabelValues(s.names[i]).Inc()
				}
				s.logger.Warn("partition unavailable", "op", op, "shard", s.names[i], "error", err)
			}
			return nil
		})
	}
	g.Wait()
	if len(missing) == len(s.backends) && len(s.backends) > 0 {
		return missing, scerrors.Newf(op, "", scerrors.ErrShardUnavailable,
			"all %d partitions failed: %v", len(s.backends), firstErr)
	}
	sort.Strings(missing)
	span.SetAttr("missing", len(missing))
	return missing, nil
}

// Search fans the query out and merges the per-partition pages into one
// ranked page of at most limit hits. Total sums the partition totals that
// responded.
func (s *Shards) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	pages := make([]*Result, len(s.backends))
	missing, err := s.fanout(ctx, "search", func(ctx context.Context, i int) error {
		page, err := s.backends[i].Search(ctx, q, limit)
		if err != nil {
			return err
		}
		pages[i] = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	merged := mergePages(pages, limit)
	merged.Missing = missing
	return merged, nil
}

// Count fans out and sums the partition counts.
func (s *Shards) Count(ctx context.Context, q query.Node) (int, error) {
	counts := make([]int, len(s.backends))
	missing, err := s.fanout(ctx, "count", func(ctx context.Context, i int) error {
		n, err := s.backends[i].Count(ctx, q)
		if err != nil {
			return err
		}
		counts[i] = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(missing) > 0 {
		return 0, scerrors.Newf("count", "", scerrors.ErrShardUnavailable,
			"partitions missing from count: %v", missing)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// Facets fans out and merges per-value counts across partitions, preserving
// the count-descending, value-ascending bucket order.
func (s *Shards) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	partial := make([]map[string][]search.FacetCount, len(s.backends))
	missing, err := s.fanout(ctx, "facets", func(ctx context.Context, i int) error {
		facets, err := s.backends[i].Facets(ctx, q, fields...)
		if err != nil {
			return err
		}
		partial[i] = facets
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, scerrors.Newf("facets", "", scerrors.ErrShardUnavailable,
			"partitions missing from facets: %v", missing)
	}
	out := make(map[string][]search.FacetCount, len(fields))
	for _, fieldName := range fields {
		counts := make(map[string]int)
		for _, facets := range partial {
			for _, fc := range facets[fieldName] {
				counts[fc.Value] += fc.Count
			}
		}
		buckets := make([]search.FacetCount, 0, len(counts))
		for value, count := range counts {
			buckets = append(buckets, search.FacetCount{Value: value, Count: count})
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Value < buckets[j].Value
		})
		out[fieldName] = buckets
	}
	return out, nil
}

var _ Backend = (*Shards)(nil)

// mergePages k-way merges ranked pages into one page of at most limit hits,
// score descending, ties by partition then page order.
func mergePages(pages []*Result, limit int) *Result {
	merged := &Result{}
	h := &mergeHeap{}
	for i, page := range pages {
		if page == nil {
			continue
		}
		merged.Total += page.Total
		if len(page.Hits) > 0 {
			heap.Push(h, mergeCursor{page: i, pages: pages})
		}
	}
	for h.Len() > 0 && len(merged.Hits) < limit {
		cur := heap.Pop(h).(mergeCursor)
		merged.Hits = append(merged.Hits, pages[cur.page].Hits[cur.pos])
		cur.pos++
		if cur.pos < len(pages[cur.page].Hits) {
			heap.Push(h, cur)
		}
	}
	return merged
}

type mergeCursor struct {
	page  int
	pos   int
	pages []*Result
}

func (c mergeCursor) head() HitPayload { return c.pages[c.page].Hits[c.pos] }

type mergeHeap []mergeCursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	hi, hj := h[i].head(), h[j].head()
	if hi.Score != hj.Score {
		return hi.Score > hj.Score
	}
	return h[i].page < h[j].page
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(mergeCursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
