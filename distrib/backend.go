// Package distrib federates searches across index partitions. A Backend is
// one queryable partition: Local wraps an in-process executor, Remote speaks
// the rpc protocol to another process, Shards fans out over partitions and
// merges, and Replicas fails over between copies of the same partition.
package distrib

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// Backend is one queryable index partition.
type Backend interface {
	// Search returns the partition's top limit hits with stored fields
	// resolved.
	Search(ctx context.Context, q query.Node, limit int) (*Result, error)
	// Count returns the partition's match count.
	Count(ctx context.Context, q query.Node) (int, error)
	// Facets returns per-value counts over doc-values fields.
	Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error)
}

// Result is a merged or single-partition result page. Missing lists the
// partitions that could not be reached; a non-empty Missing means Total and
// Hits undercount the full corpus.
type Result struct {
	Total   int
	Hits    []HitPayload
	Missing []string
}

// Degraded reports whether any partition failed to contribute.
func (r *Result) Degraded() bool { return len(r.Missing) > 0 }

// Local adapts an in-process executor to the Backend interface.
type Local struct {
	exec *search.Executor
}

// NewLocal wraps the executor.
func NewLocal(exec *search.Executor) *Local { return &Local{exec: exec} }

// Executor returns the wrapped executor.
func (l *Local) Executor() *search.Executor { return l.exec }

// Search runs the query locally and materialises stored fields for each hit.
func (l *Local) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	hits, err := l.exec.Search(q, limit)
	if err != nil {
		return nil, err
	}
	defer hits.Close()
	out := &Result{Total: hits.Total(), Hits: make([]HitPayload, hits.Len())}
	for i := 0; i < hits.Len(); i++ {
		doc, err := hits.Doc(i)
		if err != nil {
			return nil, err
		}
		out.Hits[i] = HitPayload{
			ID:     doc.ID(),
			Score:  hits.At(i).Score,
			Fields: doc.ToMap(),
		}
	}
	return out, nil
}

// Count runs the count locally.
func (l *Local) Count(ctx context.Context, q query.Node) (int, error) {
	return l.exec.Count(q)
}

// Facets runs the grouping facet strategy locally.
func (l *Local) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	return l.exec.Facets(q, fields...)
}

var _ Backend = (*Local)(nil)
