package field

import (
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

func TestTextInvert(t *testing.T) {
	f := Text("body")
	inv, err := f.Invert(0, "Hello World", "hello again")
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if inv.Length != 4 {
		t.Errorf("Length = %d, want 4", inv.Length)
	}
	// Second value starts past the first value's positions.
	byTerm := make(map[string][]int)
	for _, term := range inv.Terms {
		byTerm[term.Text] = term.Positions
	}
	if got := byTerm["hello"]; !reflect.DeepEqual(got, []int{0, 3}) {
		t.Errorf("hello positions = %v, want [0 3]", got)
	}
	if got := byTerm["world"]; !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("world positions = %v, want [1]", got)
	}
	if got := byTerm["again"]; !reflect.DeepEqual(got, []int{4}) {
		t.Errorf("again positions = %v, want [4]", got)
	}
}

func TestKeywordInvert(t *testing.T) {
	f := Keyword("color")
	inv, err := f.Invert(0, "Red")
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if len(inv.Terms) != 1 || inv.Terms[0].Text != "red" {
		t.Fatalf("Terms = %v, want single term %q", inv.Terms, "red")
	}
	if !reflect.DeepEqual(inv.DocValues, []string{"red"}) {
		t.Errorf("DocValues = %v, want [red]", inv.DocValues)
	}
}

func TestNumericEncodingOrder(t *testing.T) {
	values := []int64{-1 << 62, -1000, -1, 0, 1, 42, 1850, 1 << 62}
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = EncodeInt64(v)
		got, err := DecodeInt64(encoded[i])
		if err != nil || got != v {
			t.Fatalf("DecodeInt64(EncodeInt64(%d)) = %d, %v", v, got, err)
		}
	}
	if !sort.StringsAreSorted(encoded) {
		t.Errorf("encoded int64 terms not in value order: %v", encoded)
	}
}

func TestFloatEncodingOrder(t *testing.T) {
	values := []float64{-1e10, -3.14, -0.5, 0, 0.5, 2.71, 1e10}
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = EncodeFloat64(v)
		got, err := DecodeFloat64(encoded[i])
		if err != nil || got != v {
			t.Fatalf("DecodeFloat64(EncodeFloat64(%g)) = %g, %v", v, got, err)
		}
	}
	if !sort.StringsAreSorted(encoded) {
		t.Errorf("encoded float64 terms not in value order: %v", encoded)
	}
}

func TestDateTimeInvert(t *testing.T) {
	f := DateTime("date")
	when := time.Date(1850, 3, 18, 0, 0, 0, 0, time.UTC)
	inv, err := f.Invert(0, when)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	want := map[string]string{
		"date:Y":           "1850",
		"date:Y-m":         "1850-03",
		"date:Y-m-d":       "1850-03-18",
		"date:Y-m-d-H":     "1850-03-18 00",
		"date:Y-m-d-H-M":   "1850-03-18 00:00",
		"date:Y-m-d-H-M-S": "1850-03-18 00:00:00",
	}
	got := make(map[string]string)
	for _, term := range inv.Terms {
		got[term.Field] = term.Text
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("datetime terms = %v, want %v", got, want)
	}
}

func TestDateTimePrefixAndRange(t *testing.T) {
	f := DateTime("date")
	name, term, err := f.PrefixOf("1850")
	if err != nil {
		t.Fatalf("PrefixOf: %v", err)
	}
	if name != "date:Y" || term != "1850" {
		t.Errorf("PrefixOf(1850) = %q %q", name, term)
	}
	name, lo, hi, err := f.RangeOf("1850", "1851-03")
	if err != nil {
		t.Fatalf("RangeOf: %v", err)
	}
	if name != "date:Y-m" {
		t.Errorf("range subfield = %q, want date:Y-m", name)
	}
	// The shorter bound still orders below any term at the deeper depth.
	if !(lo < "1850-01" && hi == "1851-03") {
		t.Errorf("range bounds = %q..%q", lo, hi)
	}
}

func TestNestedInvert(t *testing.T) {
	f := Nested("path", "/")
	inv, err := f.Invert(0, "usr/local/bin")
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	want := map[string]string{
		"path:1": "usr",
		"path:2": "usr/local",
		"path:3": "usr/local/bin",
	}
	got := make(map[string]string)
	for _, term := range inv.Terms {
		got[term.Field] = term.Text
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("nested terms = %v, want %v", got, want)
	}
}

func TestPointInvert(t *testing.T) {
	f := Point("loc", 15)
	inv, err := f.Invert(0, LngLat{Lng: -122.4, Lat: 37.7})
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if len(inv.Terms) != 1 {
		t.Fatalf("Terms = %v, want one quadkey", inv.Terms)
	}
	key := inv.Terms[0].Text
	if len(key) != 15 {
		t.Errorf("quadkey %q length = %d, want 15", key, len(key))
	}
	// A nearby point shares a coarse tile prefix.
	inv2, err := f.Invert(0, "-122.41,37.71")
	if err != nil {
		t.Fatalf("Invert from string: %v", err)
	}
	if key[:8] != inv2.Terms[0].Text[:8] {
		t.Errorf("nearby points diverge too early: %q vs %q", key, inv2.Terms[0].Text)
	}
}

func TestTileRoundTrip(t *testing.T) {
	for _, zoom := range []int{1, 5, 12} {
		tile := NewTile(3%(1<<zoom), 1%(1<<zoom), zoom)
		x, y := tile.Coords()
		if again := NewTile(x, y, zoom); again != tile {
			t.Errorf("zoom %d: tile %q round-tripped to %q", zoom, tile, again)
		}
	}
}

func TestTileContainsPoint(t *testing.T) {
	p := NewPoint(2.35, 48.85)
	tile := p.Tile(12)
	if d := tile.Distance(p); d != 0 {
		t.Errorf("point outside its own tile by %g meters", d)
	}
	for _, sub := range tile.Subtiles() {
		if sub[:len(tile)] != tile {
			t.Errorf("subtile %q does not extend %q", sub, tile)
		}
	}
}

func TestWithinTiles(t *testing.T) {
	f := Point("loc", 10)
	keys := f.WithinTiles(2.35, 48.85, 50000)
	if len(keys) == 0 {
		t.Fatal("no tiles within 50km")
	}
	home := NewPoint(2.35, 48.85).Tile(10).Quadkey()
	found := false
	for _, key := range keys {
		if key == home {
			found = true
		}
		if len(key) != 10 {
			t.Errorf("tile %q not at precision 10", key)
		}
	}
	if !found {
		t.Errorf("home tile %q missing from %v", home, keys)
	}
}

func TestFormatSpec(t *testing.T) {
	f := Keyword("num", WithFormat("%07d"))
	inv, err := f.Invert(0, 42)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if inv.Terms[0].Text != "0000042" {
		t.Errorf("formatted term = %q, want 0000042", inv.Terms[0].Text)
	}
}

func TestInvalidValues(t *testing.T) {
	f := Numeric("count")
	if _, err := f.Invert(0, "not a number"); !errors.Is(err, scerrors.ErrInvalidValue) {
		t.Errorf("bad numeric value: err = %v, want ErrInvalidValue", err)
	}
	if err := Nested("path", "").Validate(); !errors.Is(err, scerrors.ErrInvalidValue) {
		t.Errorf("nested without separator: err = %v, want ErrInvalidValue", err)
	}
	if err := Point("loc", 0).Validate(); !errors.Is(err, scerrors.ErrInvalidValue) {
		t.Errorf("point precision 0: err = %v, want ErrInvalidValue", err)
	}
}

func TestDocumentOrderAndValues(t *testing.T) {
	doc := NewDocument().
		Set(IDField, "doc1").
		Add("color", "red").
		Add("color", "green").
		Set("title", "hello world")
	if got := doc.Keys(); !reflect.DeepEqual(got, []string{IDField, "color", "title"}) {
		t.Errorf("Keys = %v", got)
	}
	if doc.ID() != "doc1" {
		t.Errorf("ID = %q", doc.ID())
	}
	if got := doc.GetAll("color"); !reflect.DeepEqual(got, []any{"red", "green"}) {
		t.Errorf("GetAll(color) = %v", got)
	}
	if doc.Contains("missing") {
		t.Error("Contains(missing) = true")
	}
	m := doc.ToMap()
	if !reflect.DeepEqual(m["color"], []any{"red", "green"}) || m["title"] != "hello world" {
		t.Errorf("ToMap = %v", m)
	}
	back := FromMap(m)
	if !reflect.DeepEqual(back.GetAll("color"), []any{"red", "green"}) {
		t.Errorf("FromMap lost multi-values: %v", back.GetAll("color"))
	}
}

func TestSchemaDefine(t *testing.T) {
	s := NewSchema()
	if err := s.Define(Text("title")); err != nil {
		t.Fatalf("Define: %v", err)
	}
	// Identical redefinition is a no-op.
	if err := s.Define(Text("title")); err != nil {
		t.Fatalf("identical redefine: %v", err)
	}
	// Conflicting redefinition is rejected.
	if err := s.Define(Keyword("title")); !errors.Is(err, scerrors.ErrInvalidValue) {
		t.Fatalf("conflicting redefine: err = %v, want ErrInvalidValue", err)
	}
	if got := s.Get("title"); got == nil || got.Kind != KindText {
		t.Errorf("Get(title) = %v", got)
	}
}

func TestSchemaJSONRoundTrip(t *testing.T) {
	s := NewSchema()
	for _, f := range []*Field{Text("title"), Keyword("color"), Numeric("year"), DateTime("date")} {
		if err := s.Define(f); err != nil {
			t.Fatalf("Define(%s): %v", f.Name, err)
		}
	}
	data, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var back Schema
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !reflect.DeepEqual(s.Fields(), back.Fields()) {
		t.Errorf("schema changed across JSON round trip:\n%v\n%v", s.Fields(), back.Fields())
	}
}
