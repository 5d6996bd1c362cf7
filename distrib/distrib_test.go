package distrib

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// buildLocal commits the docs into a fresh index and wraps it as a Local
// backend.
func buildLocal(t *testing.T, docs ...*field.Document) *Local {
	t.Helper()
	schema := field.NewSchema()
	for _, f := range []*field.Field{
		field.Keyword(field.IDField, field.Store()),
		field.Text("body", field.Store()),
		field.Keyword("color", field.DocValued()),
	} {
		if err := schema.Define(f); err != nil {
			t.Fatal(err)
		}
	}
	dir := t.TempDir()
	w, err := index.Open(dir, schema, config.Default().Index, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, d := range docs {
		if err := w.Add(d); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s, err := index.OpenSearcher(dir, nil)
	if err != nil {
		t.Fatalf("OpenSearcher: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewLocal(search.NewExecutor(s, config.Default().Search, nil))
}

func ddoc(id, body, color string) *field.Document {
	return field.NewDocument().
		Set(field.IDField, id).
		Set("body", body).
		Set("color", color)
}

func TestQueryCodecRoundTrip(t *testing.T) {
	queries := []query.Node{
		query.MatchAll{},
		query.MatchNone{},
		query.NewTerm("body", "hello"),
		query.NewTermSet("color", "red", "green"),
		query.NewPhrase("body", "hello", "world").WithSlop(2),
		query.NewRange("year", "1850", "1860"),
		query.Prefix{Field: "body", Text: "hel"},
		query.Wildcard{Field: "body", Pattern: "h?llo*"},
		query.Fuzzy{Field: "body", Text: "hllo", MaxEdits: 1},
		query.And(query.NewTerm("body", "hello"), query.Not(query.NewTerm("color", "red"))),
		query.SpanNear{Clauses: []query.Node{query.NewTerm("body", "a"), query.NewTerm("body", "b")}, Slop: 1, Ordered: true},
		query.SpanOr{Clauses: []query.Node{query.NewTerm("body", "a"), query.NewTerm("body", "b")}},
		query.SpanNot{Include: query.NewTerm("body", "a"), Exclude: query.NewTerm("body", "b")},
	}
	for _, q := range queries {
		spec, err := EncodeQuery(q)
		if err != nil {
			t.Fatalf("EncodeQuery(%s): %v", q, err)
		}
		back, err := DecodeQuery(spec)
		if err != nil {
			t.Fatalf("DecodeQuery(%s): %v", q, err)
		}
		if back.String() != q.String() {
			t.Errorf("round trip %q -> %q", q, back)
		}
	}
}

func TestLocalSearch(t *testing.T) {
	backend := buildLocal(t,
		ddoc("a", "hello world", "red"),
		ddoc("b", "goodbye world", "green"),
	)
	res, err := backend.Search(context.Background(), query.NewTerm("body", "hello"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || len(res.Hits) != 1 {
		t.Fatalf("total %d hits %d, want 1 and 1", res.Total, len(res.Hits))
	}
	hit := res.Hits[0]
	if hit.ID != "a" {
		t.Errorf("hit id %q, want a", hit.ID)
	}
	if hit.Fields["body"] != "hello world" {
		t.Errorf("hit body %v, want hello world", hit.Fields["body"])
	}
	if res.Degraded() {
		t.Error("single local backend reported degraded")
	}
}

func TestServerAndRemote(t *testing.T) {
	backend := buildLocal(t,
		ddoc("a", "hello world", "red"),
		ddoc("b", "hello again", "green"),
		ddoc("c", "goodbye", "red"),
	)
	srv := NewServer(backend, nil)
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	remote := NewRemote(srv.Addr(), time.Second)
	defer remote.Close()
	ctx := context.Background()

	res, err := remote.Search(ctx, query.NewTerm("body", "hello"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 2 || len(res.Hits) != 2 {
		t.Fatalf("total %d hits %d, want 2 and 2", res.Total, len(res.Hits))
	}
	if res.Hits[0].Fields["body"] == nil {
		t.Error("stored fields did not cross the wire")
	}

	n, err := remote.Count(ctx, query.MatchAll{})
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v, want 3", n, err)
	}

	facets, err := remote.Facets(ctx, query.MatchAll{}, "color")
	if err != nil {
		t.Fatalf("Facets: %v", err)
	}
	colors := facets["color"]
	if len(colors) != 2 || colors[0].Value != "red" || colors[0].Count != 2 {
		t.Errorf("facets %v, want red=2 first", colors)
	}
}

func TestRemoteUnavailable(t *testing.T) {
	remote := NewRemote("127.0.0.1:1", 100*time.Millisecond)
	_, err := remote.Search(context.Background(), query.MatchAll{}, 1)
	if !errors.Is(err, scerrors.ErrShardUnavailable) {
		t.Errorf("err = %v, want ErrShardUnavailable", err)
	}
}

func TestShardsMerge(t *testing.T) {
	a := buildLocal(t,
		ddoc("a1", "hello world", "red"),
		ddoc("a2", "other text", "green"),
	)
	b := buildLocal(t,
		ddoc("b1", "hello hello hello", "red"),
		ddoc("b2", "hello there", "blue"),
	)
	shards := NewShards([]Backend{a, b}, nil, config.Default().Distribution, nil)
	ctx := context.Background()

	res, err := shards.Search(ctx, query.NewTerm("body", "hello"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 3 || len(res.Hits) != 3 {
		t.Fatalf("total %d hits %d, want 3 and 3", res.Total, len(res.Hits))
	}
	if !sort.SliceIsSorted(res.Hits, func(i, j int) bool {
		return res.Hits[i].Score > res.Hits[j].Score
	}) {
		t.Errorf("merged hits out of score order: %+v", res.Hits)
	}
	seen := map[string]bool{}
	for _, h := range res.Hits {
		seen[h.ID] = true
	}
	for _, id := range []string{"a1", "b1", "b2"} {
		if !seen[id] {
			t.Errorf("merged hits missing %s: %v", id, seen)
		}
	}
	if res.Degraded() {
		t.Error("healthy fan-out reported degraded")
	}

	// Limit truncates the merged page but not the total.
	res, err = shards.Search(ctx, query.NewTerm("body", "hello"), 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 3 || len(res.Hits) != 2 {
		t.Errorf("limited page total %d hits %d, want 3 and 2", res.Total, len(res.Hits))
	}

	n, err := shards.Count(ctx, query.MatchAll{})
	if err != nil || n != 4 {
		t.Errorf("Count = %d, %v, want 4", n, err)
	}

	facets, err := shards.Facets(ctx, query.MatchAll{}, "color")
	if err != nil {
		t.Fatalf("Facets: %v", err)
	}
	colors := facets["color"]
	if len(colors) != 3 || colors[0].Value != "red" || colors[0].Count != 2 {
		t.Errorf("merged facets %v, want red=2 first", colors)
	}
}

func TestShardsDegraded(t *testing.T) {
	a := buildLocal(t, ddoc("a1", "hello world", "red"))
	down := NewRemote("127.0.0.1:1", 100*time.Millisecond)
	shards := NewShards([]Backend{a, down}, nil, config.Default().Distribution, nil)
	ctx := context.Background()

	res, err := shards.Search(ctx, query.NewTerm("body", "hello"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Degraded() || len(res.Missing) != 1 || res.Missing[0] != "shard-1" {
		t.Errorf("missing = %v, want [shard-1]", res.Missing)
	}
	if res.Total != 1 {
		t.Errorf("degraded total %d, want 1", res.Total)
	}

	// Counts refuse to silently undercount.
	if _, err := shards.Count(ctx, query.MatchAll{}); !errors.Is(err, scerrors.ErrShardUnavailable) {
		t.Errorf("Count err = %v, want ErrShardUnavailable", err)
	}

	// Every partition down fails the search outright.
	allDown := NewShards([]Backend{down}, nil, config.Default().Distribution, nil)
	if _, err := allDown.Search(ctx, query.MatchAll{}, 1); !errors.Is(err, scerrors.ErrShardUnavailable) {
		t.Errorf("all-down err = %v, want ErrShardUnavailable", err)
	}
}

// failing is a Backend that always errors.
type failing struct{ calls int }

func (f *failing) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	f.calls++
	return nil, errors.New("boom")
}

func (f *failing) Count(ctx context.Context, q query.Node) (int, error) {
	f.calls++
	return 0, errors.New("boom")
}

func (f *failing) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestReplicasFailover(t *testing.T) {
	bad := &failing{}
	good := buildLocal(t, ddoc("a", "hello world", "red"))
	replicas := NewReplicas([]Backend{bad, good}, resilience.BreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := replicas.Search(ctx, query.NewTerm("body", "hello"), 10)
		if err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
		if res.Total != 1 {
			t.Errorf("Search %d total %d, want 1", i, res.Total)
		}
	}
	// The breaker opened after two failures, so the third search skipped the
	// bad replica.
	if bad.calls != 2 {
		t.Errorf("bad replica called %d times, want 2", bad.calls)
	}

	none := NewReplicas(nil, resilience.BreakerConfig{})
	if _, err := none.Count(ctx, query.MatchAll{}); !errors.Is(err, scerrors.ErrShardUnavailable) {
		t.Errorf("empty group err = %v, want ErrShardUnavailable", err)
	}
}

func TestClusterFromConfig(t *testing.T) {
	var addrs []string
	for _, docs := range [][]*field.Document{
		{ddoc("a1", "hello world", "red"), ddoc("a2", "goodbye", "green")},
		{ddoc("b1", "hello hello", "red")},
	} {
		srv := NewServer(buildLocal(t, docs...), nil)
		if err := srv.Start("127.0.0.1:0"); err != nil {
			t.Fatalf("Start: %v", err)
		}
		t.Cleanup(srv.Stop)
		addrs = append(addrs, srv.Addr())
	}

	cfg := config.Default()
	cfg.Distribution.Shards = addrs
	cfg.Redis.CacheTTL = 0

	cluster, err := NewCluster(cfg, nil)
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer cluster.Close(context.Background())

	res, err := cluster.Backend.Search(context.Background(), query.NewTerm("body", "hello"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2", res.Total)
	}
	if res.Degraded() {
		t.Errorf("unexpected missing shards %v", res.Missing)
	}

	n, err := cluster.Backend.Count(context.Background(), query.MatchAll{})
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v, want 3", n, err)
	}
}
