package search

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
)

func testSchema(t *testing.T) *field.Schema {
	t.Helper()
	s := field.NewSchema()
	for _, f := range []*field.Field{
		field.Keyword(field.IDField, field.Store()),
		field.Text("body", field.Store()),
		field.Keyword("color", field.DocValued()),
		field.Numeric("year", field.DocValued()),
		field.DateTime("date"),
	} {
		if err := s.Define(f); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func sdoc(id, body, color string, year int, date string) *field.Document {
	d := field.NewDocument().Set(field.IDField, id).Set("body", body)
	if color != "" {
		d.Set("color", color)
	}
	if year != 0 {
		d.Set("year", year)
	}
	if date != "" {
		d.Set("date", date)
	}
	return d
}

// testDocs is the shared corpus; commit order fixes the global ordinals.
func testDocs() []*field.Document {
	return []*field.Document{
		sdoc("a", "hello world", "red", 1850, "1850-03-18"),
		sdoc("b", "hello hello world", "green", 1850, "1850-07-04"),
		sdoc("c", "goodbye world", "red", 1851, "1851-01-01"),
		sdoc("d", "hello planet", "blue", 1852, "1852-06-15"),
		sdoc("e", "world of wonders", "red", 0, ""),
	}
}

func testExecutor(t *testing.T, cfg config.SearchConfig, docs ...*field.Document) *Executor {
	t.Helper()
	dir := t.TempDir()
	w, err := index.Open(dir, testSchema(t), config.Default().Index, nil)
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
	return NewExecutor(s, cfg, metrics.New())
}

func ords(h *Hits) []int {
	out := make([]int, h.Len())
	for i := range out {
		out[i] = h.At(i).Ord
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearchRanking(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	hits, err := e.Search(query.NewTerm("body", "hello"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer hits.Close()
	if hits.Total() != 3 || hits.Len() != 3 {
		t.Fatalf("total %d len %d, want 3 and 3", hits.Total(), hits.Len())
	}
	// Doc 1 has two occurrences, docs 0 and 3 one each with equal length.
	if got := ords(hits); !equalInts(got, []int{1, 0, 3}) {
		t.Fatalf("ranking %v, want [1 0 3]", got)
	}
	if hits.At(0).Score <= hits.At(1).Score {
		t.Errorf("higher-frequency doc did not outrank: %v vs %v", hits.At(0).Score, hits.At(1).Score)
	}
	if hits.At(1).Score != hits.At(2).Score {
		t.Errorf("equal docs scored unequally: %v vs %v", hits.At(1).Score, hits.At(2).Score)
	}
}

func TestSearchLimits(t *testing.T) {
	cfg := config.SearchConfig{DefaultLimit: 2, MaxLimit: 3}
	e := testExecutor(t, cfg, testDocs()...)

	hits, err := e.Search(query.MatchAll{}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Len() != 2 || hits.Total() != 5 {
		t.Errorf("default limit: len %d total %d, want 2 and 5", hits.Len(), hits.Total())
	}
	hits.Close()

	hits, err = e.Search(query.MatchAll{}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Len() != 3 {
		t.Errorf("max limit: len %d, want 3", hits.Len())
	}
	hits.Close()
}

func TestHitsDoc(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	hits, err := e.Search(query.NewTerm(field.IDField, "a"), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer hits.Close()
	if hits.Len() != 1 {
		t.Fatalf("len %d, want 1", hits.Len())
	}
	doc, err := hits.Doc(0)
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	if got := doc.Get("body"); got != "hello world" {
		t.Errorf("body %v, want hello world", got)
	}
	if got := doc.Get(field.IDField); got != "a" {
		t.Errorf("id %v, want a", got)
	}
	score, ok := doc.Get(field.ScoreField).(float64)
	if !ok || score <= 0 {
		t.Errorf("score pseudo-field %v, want positive float", doc.Get(field.ScoreField))
	}
	again, err := hits.Doc(0)
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	if again != doc {
		t.Error("stored fields resolved twice instead of cached")
	}
}

func TestSearchSorted(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	hits, err := e.SearchSorted(query.MatchAll{}, "year", false, 10)
	if err != nil {
		t.Fatalf("SearchSorted: %v", err)
	}
	// Doc 4 has no year and sorts last.
	if got := ords(hits); !equalInts(got, []int{0, 1, 2, 3, 4}) {
		t.Errorf("ascending %v, want [0 1 2 3 4]", got)
	}
	hits.Close()

	hits, err = e.SearchSorted(query.MatchAll{}, "year", true, 10)
	if err != nil {
		t.Fatalf("SearchSorted: %v", err)
	}
	if got := ords(hits); !equalInts(got, []int{3, 2, 0, 1, 4}) {
		t.Errorf("descending %v, want [3 2 0 1 4]", got)
	}
	hits.Close()
}

func TestCount(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	if n, err := e.Count(query.MatchAll{}); err != nil || n != 5 {
		t.Errorf("Count(all) = %d, %v, want 5", n, err)
	}
	if n, err := e.Count(query.NewTerm("body", "hello")); err != nil || n != 3 {
		t.Errorf("Count(hello) = %d, %v, want 3", n, err)
	}
	if n, err := e.Count(query.NewTerm("body", "absent")); err != nil || n != 0 {
		t.Errorf("Count(absent) = %d, %v, want 0", n, err)
	}
}

func TestGroupBy(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	hits, err := e.Search(query.NewTerm("body", "world"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer hits.Close()
	groups := hits.GroupBy("color")
	if len(groups) != 2 {
		t.Fatalf("groups %d, want 2", len(groups))
	}
	if groups[0].Value != "red" || len(groups[0].Hits) != 3 {
		t.Errorf("first group %q with %d hits, want red with 3", groups[0].Value, len(groups[0].Hits))
	}
	if groups[1].Value != "green" || len(groups[1].Hits) != 1 {
		t.Errorf("second group %q with %d hits, want green with 1", groups[1].Value, len(groups[1].Hits))
	}
}

func TestHitsSorted(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	hits, err := e.Search(query.NewTerm("body", "world"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer hits.Close()
	byOrdDesc := hits.Sorted(func(h Hit) string { return fmt.Sprintf("%03d", 100-h.Ord) })
	defer byOrdDesc.Close()
	if got := ords(byOrdDesc); !equalInts(got, []int{4, 2, 1, 0}) {
		t.Errorf("reordered %v, want [4 2 1 0]", got)
	}
	// The original page keeps rank order.
	if got := ords(hits); !equalInts(got, []int{0, 2, 4, 1}) {
		t.Errorf("original %v, want [0 2 4 1]", got)
	}
}

func TestFacets(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	facets, err := e.Facets(query.NewTerm("body", "world"), "color")
	if err != nil {
		t.Fatalf("Facets: %v", err)
	}
	colors := facets["color"]
	want := []FacetCount{{Value: "red", Count: 3}, {Value: "green", Count: 1}}
	if len(colors) != len(want) {
		t.Fatalf("facets %v, want %v", colors, want)
	}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("facet %d = %v, want %v", i, colors[i], want[i])
		}
	}

	// All documents: equal counts order by value.
	facets, err = e.Facets(query.MatchAll{}, "color")
	if err != nil {
		t.Fatalf("Facets: %v", err)
	}
	colors = facets["color"]
	want = []FacetCount{{Value: "red", Count: 3}, {Value: "blue", Count: 1}, {Value: "green", Count: 1}}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("facet %d = %v, want %v", i, colors[i], want[i])
		}
	}
}

func TestFacetQueries(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)
	date := field.DateTime("date")

	counts, err := e.FacetQueries(query.NewTerm("body", "hello"), map[string]query.Node{
		"1850": query.DatePrefix(date, "1850"),
		"1851": query.DatePrefix(date, "1851"),
		"1852": query.DatePrefix(date, "1852"),
	})
	if err != nil {
		t.Fatalf("FacetQueries: %v", err)
	}
	want := map[string]int{"1850": 2, "1851": 0, "1852": 1}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("bucket %s = %d, want %d", name, counts[name], n)
		}
	}
	if len(counts) != len(want) {
		t.Errorf("buckets %v, want %v", counts, want)
	}
}

func TestDateQueries(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)
	date := field.DateTime("date")

	if n, err := e.Count(query.DatePrefix(date, "1850")); err != nil || n != 2 {
		t.Errorf("Count(1850*) = %d, %v, want 2", n, err)
	}
	if n, err := e.Count(query.DateRange(date, "1850", "1851")); err != nil || n != 3 {
		t.Errorf("Count(1850..1851) = %d, %v, want 3", n, err)
	}
	if n, err := e.Count(query.DateRange(date, "1850-03", "1850-12")); err != nil || n != 2 {
		t.Errorf("Count(1850-03..1850-12) = %d, %v, want 2", n, err)
	}
	if n, err := e.Count(query.DatePrefix(date, "1850-03-18")); err != nil || n != 1 {
		t.Errorf("Count(1850-03-18) = %d, %v, want 1", n, err)
	}
}

func TestSpellChecker(t *testing.T) {
	e := testExecutor(t, config.Default().Search, testDocs()...)

	sc := e.SpellChecker("color")
	if got := sc.Complete("gr", 5); len(got) != 1 || got[0] != "green" {
		t.Errorf("Complete(gr) = %v, want [green]", got)
	}
	// No prefix lists the whole dictionary, most frequent first.
	want := []string{"red", "blue", "green"}
	got := sc.Complete("", 0)
	if len(got) != len(want) {
		t.Fatalf("Complete() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Complete()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := sc.Suggest("red", 3); len(got) != 1 || got[0] != "red" {
		t.Errorf("Suggest(red) = %v, want [red]", got)
	}
	if got := sc.Suggest("rad", 3); len(got) == 0 || got[0] != "red" {
		t.Errorf("Suggest(rad) = %v, want red first", got)
	}
	if got := sc.Suggest("grean", 2); len(got) == 0 || got[0] != "green" {
		t.Errorf("Suggest(grean) = %v, want green first", got)
	}

	if again := e.SpellChecker("color"); again != sc {
		t.Error("checker rebuilt within one generation")
	}
}
