package benchmark

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// benchExecutor indexes docCount documents once and returns an executor over
// them.
func benchExecutor(b *testing.B, docCount int) *search.Executor {
	b.Helper()
	dir := b.TempDir()
	w, err := index.Open(dir, benchSchema(b), config.Default().Index, nil)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < docCount; i++ {
		if err := w.Add(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		b.Fatal(err)
	}
	if err := w.Close(); err != nil {
		b.Fatal(err)
	}
	s, err := index.OpenSearcher(dir, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { s.Close() })
	return search.NewExecutor(s, config.Default().Search, nil)
}

// BenchmarkTermSearch measures ranked retrieval of a term matching every
// document.
func BenchmarkTermSearch(b *testing.B) {
	e := benchExecutor(b, 10000)
	q := query.NewTerm("body", "search")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hits, err := e.Search(q, 10)
		if err != nil {
			b.Fatal(err)
		}
		hits.Close()
	}
}

// BenchmarkBooleanSearch measures a conjunction with an exclusion.
func BenchmarkBooleanSearch(b *testing.B) {
	e := benchExecutor(b, 10000)
	q := query.AndNot(
		query.And(query.NewTerm("body", "search"), query.NewTerm("body", "segment")),
		query.NewTerm("color", "red"),
	)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hits, err := e.Search(q, 10)
		if err != nil {
			b.Fatal(err)
		}
		hits.Close()
	}
}

// BenchmarkPhraseSearch measures position-verified retrieval.
func BenchmarkPhraseSearch(b *testing.B) {
	e := benchExecutor(b, 10000)
	q := query.NewPhrase("body", "search", "engine")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hits, err := e.Search(q, 10)
		if err != nil {
			b.Fatal(err)
		}
		hits.Close()
	}
}

// BenchmarkSearchParallel measures concurrent read throughput over shared
// snapshots.
func BenchmarkSearchParallel(b *testing.B) {
	e := benchExecutor(b, 10000)
	q := query.NewTerm("body", "search")
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			hits, err := e.Search(q, 10)
			if err != nil {
				b.Fatal(err)
			}
			hits.Close()
		}
	})
}

// BenchmarkFacets measures doc-values grouping over the full corpus.
func BenchmarkFacets(b *testing.B) {
	e := benchExecutor(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Facets(query.MatchAll{}, "color"); err != nil {
			b.Fatal(err)
		}
	}
}
