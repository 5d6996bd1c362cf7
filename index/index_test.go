package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

func testSchema(t *testing.T) *field.Schema {
	t.Helper()
	s := field.NewSchema()
	for _, f := range []*field.Field{
		field.Keyword(field.IDField, field.Store()),
		field.Text("body"),
		field.Keyword("color"),
		field.Numeric("year"),
	} {
		if err := s.Define(f); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func testWriter(t *testing.T, dir string) *Writer {
	t.Helper()
	w, err := Open(dir, testSchema(t), config.Default().Index, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func doc(id, body, color string, year int) *field.Document {
	d := field.NewDocument().Set(field.IDField, id).Set("body", body)
	if color != "" {
		d.Set("color", color)
	}
	if year != 0 {
		d.Set("year", year)
	}
	return d
}

func TestAddCommitSearch(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)

	if err := w.Add(doc("a", "hello world", "red", 1850)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Add(doc("b", "goodbye world", "green", 1851)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatalf("OpenSearcher: %v", err)
	}
	defer s.Close()

	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
	snap := s.Snapshot()
	defer snap.Release()
	p, err := snap.Postings("body", "world")
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("world postings = %+v", p)
	}

	got, found, err := s.Get("a")
	if err != nil || !found {
		t.Fatalf("Get(a) = %v, %v, %v", got, found, err)
	}
	if got.Get("body") != "hello world" {
		t.Errorf("stored body = %v", got.Get("body"))
	}
	if _, found, _ := s.Get("nope"); found {
		t.Error("Get(nope) found a document")
	}
}

func TestUncommittedInvisible(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	if err := w.Add(doc("a", "hello", "", 0)); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Count() != 0 {
		t.Errorf("uncommitted doc visible: count = %d", s.Count())
	}

	// Realtime refresh sees it without a commit.
	if err := s.RefreshRealtime(w); err != nil {
		t.Fatalf("RefreshRealtime: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("realtime count = %d, want 1", s.Count())
	}

	// A committed refresh falls back to the published state.
	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 0 {
		t.Errorf("count after refresh = %d, want 0", s.Count())
	}
}

func TestDeleteVisibilityAndSnapshotIsolation(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	for i := 0; i < 3; i++ {
		if err := w.Add(doc(fmt.Sprintf("d%d", i), "hello", "", 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	old := s.Snapshot()
	defer old.Release()

	if err := w.DeleteByID("d1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	// The acquired snapshot still sees all three.
	if old.LiveCount() != 3 {
		t.Errorf("old snapshot live = %d, want 3", old.LiveCount())
	}

	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 2 {
		t.Errorf("count after delete = %d, want 2", s.Count())
	}
	if _, found, _ := s.Get("d1"); found {
		t.Error("deleted document still retrievable")
	}
}

func TestUpdateReplaces(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	if err := w.Add(doc("a", "old text", "red", 0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := w.Update(doc("a", "new text", "blue", 0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Count() != 1 {
		t.Fatalf("count = %d, want 1", s.Count())
	}
	got, found, err := s.Get("a")
	if err != nil || !found {
		t.Fatalf("Get: %v, %v", found, err)
	}
	if got.Get("body") != "new text" {
		t.Errorf("body = %v, want replacement", got.Get("body"))
	}
}

func TestUpdateInSameBatch(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	// Both versions in one uncommitted batch: only the replacement survives.
	if err := w.Add(doc("a", "first", "", 0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Update(doc("a", "second", "", 0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Count() != 1 {
		t.Errorf("count = %d, want 1", s.Count())
	}
	got, _, _ := s.Get("a")
	if got == nil || got.Get("body") != "second" {
		t.Errorf("surviving doc = %v", got)
	}
}

func TestReopenIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	if err := w.Add(doc("a", "hello", "red", 1850)); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening changes nothing and the schema round-trips.
	w2, err := Open(dir, nil, config.Default().Index, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.Close()
	if w2.DocCount() != 1 {
		t.Errorf("DocCount after reopen = %d", w2.DocCount())
	}
	if f := w2.Schema().Get("year"); f == nil || f.Kind != field.KindNumeric {
		t.Errorf("schema lost on reopen: %v", f)
	}

	// A conflicting schema is rejected at open.
	bad := field.NewSchema()
	if err := bad.Define(field.Text("year")); err != nil {
		t.Fatal(err)
	}
	w2.Close()
	if _, err := Open(dir, bad, config.Default().Index, nil); !errors.Is(err, scerrors.ErrInvalidValue) {
		t.Errorf("conflicting schema: err = %v, want ErrInvalidValue", err)
	}
}

func TestWriterExclusion(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	if _, err := Open(dir, nil, config.Default().Index, nil); !errors.Is(err, scerrors.ErrLockHeld) {
		t.Errorf("second writer: err = %v, want ErrLockHeld", err)
	}
	w.Close()
	w2, err := Open(dir, nil, config.Default().Index, nil)
	if err != nil {
		t.Fatalf("open after close: %v", err)
	}
	w2.Close()

	if err := w2.Add(doc("x", "text", "", 0)); !errors.Is(err, scerrors.ErrClosed) {
		t.Errorf("add on closed writer: err = %v, want ErrClosed", err)
	}
}

func TestAutoFlushAndMerge(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().Index
	cfg.FlushDocs = 2
	cfg.MaxSegments = 2
	cfg.MergeFactor = 3
	w, err := Open(dir, testSchema(t), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for i := 0; i < 7; i++ {
		if err := w.Add(doc(fmt.Sprintf("m%d", i), "hello hello", "", 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	snap := s.Snapshot()
	defer snap.Release()
	if len(snap.Segments()) > cfg.MaxSegments {
		t.Errorf("segments after commit = %d, want <= %d", len(snap.Segments()), cfg.MaxSegments)
	}
	if snap.LiveCount() != 7 {
		t.Errorf("live = %d, want 7", snap.LiveCount())
	}

	// An explicit full merge collapses to one segment.
	if err := w.Merge(1); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	snap2 := s.Snapshot()
	defer snap2.Release()
	if len(snap2.Segments()) != 1 {
		t.Errorf("segments after full merge = %d, want 1", len(snap2.Segments()))
	}
	if snap2.LiveCount() != 7 {
		t.Errorf("live after merge = %d, want 7", snap2.LiveCount())
	}
}

func TestFilterCache(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir)
	for i := 0; i < 4; i++ {
		color := "red"
		if i%2 == 1 {
			color = "green"
		}
		if err := w.Add(doc(fmt.Sprintf("f%d", i), "x", color, 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	red, err := s.Filter("color", "red")
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if red.GetCardinality() != 2 {
		t.Errorf("red filter = %v", red)
	}
	again, err := s.Filter("color", "red")
	if err != nil {
		t.Fatal(err)
	}
	if red != again {
		t.Error("filter not served from cache")
	}
}

func TestSnapshotBackup(t *testing.T) {
	dir := t.TempDir()
	backup := t.TempDir()
	w := testWriter(t, dir)
	if err := w.Add(doc("a", "hello", "", 0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := w.Snapshot(backup); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// The backup is independently openable and keeps working after the
	// source advances.
	if err := w.DeleteByID("a"); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSearcher(backup, nil)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer s.Close()
	if s.Count() != 1 {
		t.Errorf("backup count = %d, want 1", s.Count())
	}
}
