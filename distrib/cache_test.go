package distrib

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// counting wraps a Backend and counts pass-through calls.
type counting struct {
	Backend
	calls int
}

func (c *counting) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	c.calls++
	return c.Backend.Search(ctx, q, limit)
}

func (c *counting) Count(ctx context.Context, q query.Node) (int, error) {
	c.calls++
	return c.Backend.Count(ctx, q)
}

func (c *counting) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	c.calls++
	return c.Backend.Facets(ctx, q, fields...)
}

func TestCachedBackend(t *testing.T) {
	client, err := redis.NewClient(config.Default().Redis)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer client.Close()

	backend := &counting{Backend: buildLocal(t,
		ddoc("a", "hello world", "red"),
		ddoc("b", "hello again", "green"),
	)}
	cached := NewCached(backend, client, 30*time.Second)
	ctx := context.Background()
	if err := cached.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	q := query.NewTerm("body", "hello")
	first, err := cached.Search(ctx, q, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := cached.Search(ctx, q, 10)
	if err != nil {
		t.Fatalf("Search cached: %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls)
	}
	if first.Total != second.Total || len(first.Hits) != len(second.Hits) {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if second.Hits[0].ID != first.Hits[0].ID {
		t.Errorf("cached hit id %q, want %q", second.Hits[0].ID, first.Hits[0].ID)
	}

	if n, err := cached.Count(ctx, q); err != nil || n != 2 {
		t.Errorf("Count = %d, %v, want 2", n, err)
	}
	if _, err := cached.Count(ctx, q); err != nil {
		t.Fatalf("Count cached: %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("backend called %d times after counts, want 2", backend.calls)
	}

	// Invalidation forces recomputation.
	if err := cached.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cached.Search(ctx, q, 10); err != nil {
		t.Fatalf("Search after invalidate: %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("backend called %d times after invalidate, want 3", backend.calls)
	}
}
