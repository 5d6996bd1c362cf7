package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/segment"
)

// registry shares open segment readers between snapshots, so a refresh that
// keeps most of the segment set reuses the existing file handles.
type registry struct {
	mu      sync.Mutex
	dir     string
	entries map[string]*regEntry
}

type regEntry struct {
	reader *segment.Reader
	refs   int
}

func newRegistry(dir string) *registry {
	return &registry{dir: dir, entries: make(map[string]*regEntry)}
}

func (g *registry) open(name string) (*segment.Reader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[name]; ok {
		e.refs++
		return e.reader, nil
	}
	r, err := segment.Open(g.dir, name)
	if err != nil {
		return nil, err
	}
	g.entries[name] = &regEntry{reader: r, refs: 1}
	return r, nil
}

func (g *registry) release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[name]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		e.reader.Release()
		delete(g.entries, name)
	}
}

// SegmentView is one segment inside a snapshot: its reader, the global
// ordinal of its first document, and the tombstones the snapshot sees.
type SegmentView struct {
	Reader  *segment.Reader
	Base    int
	Deleted *roaring.Bitmap
}

// Snapshot is a point-in-time, immutable view of the index: a fixed segment
// list with fixed deletions. Global ordinals are segment base plus local
// ordinal; they are stable for the snapshot's lifetime and densely ordered
// by segment age then insertion order.
type Snapshot struct {
	Generation uint64
	Realtime   bool

	schema   *field.Schema
	segs     []SegmentView
	maxDoc   int
	live     int
	registry *registry
	refs     atomic.Int32
}

func newSnapshot(reg *registry, gen uint64, realtime bool, schema *field.Schema, infos []segment.Info, deletes []*roaring.Bitmap) (*Snapshot, error) {
	snap := &Snapshot{
		Generation: gen,
		Realtime:   realtime,
		schema:     schema,
		registry:   reg,
	}
	snap.refs.Store(1)
	for i, info := range infos {
		r, err := reg.open(info.Name)
		if err != nil {
			snap.Release()
			return nil, err
		}
		deleted := deletes[i]
		if deleted == nil {
			deleted = roaring.New()
		}
		snap.segs = append(snap.segs, SegmentView{Reader: r, Base: snap.maxDoc, Deleted: deleted})
		snap.maxDoc += r.DocCount()
		snap.live += r.DocCount() - int(deleted.GetCardinality())
	}
	return snap, nil
}

// Acquire takes a reference for the duration of a search.
func (s *Snapshot) Acquire() *Snapshot {
	s.refs.Add(1)
	return s
}

// Release drops a reference; the last one returns the segment readers to
// the registry.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	for _, sv := range s.segs {
		s.registry.release(sv.Reader.Name())
	}
}

// Schema returns the field registry the snapshot's terms were encoded under.
func (s *Snapshot) Schema() *field.Schema { return s.schema }

// Segments returns the snapshot's segment views in base order.
func (s *Snapshot) Segments() []SegmentView { return s.segs }

// MaxDoc returns the ordinal space size, tombstones included.
func (s *Snapshot) MaxDoc() int { return s.maxDoc }

// LiveCount returns the number of searchable documents.
func (s *Snapshot) LiveCount() int { return s.live }

// segmentOf locates the segment containing a global ordinal.
func (s *Snapshot) segmentOf(ord int) *SegmentView {
	idx := sort.Search(len(s.segs), func(i int) bool { return s.segs[i].Base > ord }) - 1
	if idx < 0 || ord-s.segs[idx].Base >= s.segs[idx].Reader.DocCount() {
		return nil
	}
	return &s.segs[idx]
}

// Live reports whether the global ordinal refers to an undeleted document.
func (s *Snapshot) Live(ord int) bool {
	sv := s.segmentOf(ord)
	return sv != nil && !sv.Deleted.Contains(uint32(ord-sv.Base))
}

// Postings returns the live postings of a term across all segments, in
// ascending global ordinal order. A missing term is empty, not an error.
func (s *Snapshot) Postings(fieldName, term string) (segment.Postings, error) {
	var out segment.Postings
	for _, sv := range s.segs {
		p, err := sv.Reader.Postings(fieldName, term)
		if err != nil {
			return segment.Postings{}, err
		}
		for i, ord := range p.Docs {
			if sv.Deleted.Contains(ord) {
				continue
			}
			out.Docs = append(out.Docs, ord+uint32(sv.Base))
			out.Freqs = append(out.Freqs, p.Freqs[i])
			if p.Positions != nil {
				out.Positions = append(out.Positions, p.Positions[i])
			}
		}
	}
	return out, nil
}

// DocFreq returns the term's document frequency from the dictionaries alone,
// tombstones not subtracted. Scoring tolerates the overcount the same way
// merged-on-commit engines usually do.
func (s *Snapshot) DocFreq(fieldName, term string) int {
	df := 0
	for _, sv := range s.segs {
		df += sv.Reader.DocFreq(fieldName, term)
	}
	return df
}

// SumLength returns the field's total token count across segments.
func (s *Snapshot) SumLength(fieldName string) int64 {
	var sum int64
	for _, sv := range s.segs {
		sum += sv.Reader.SumLength(fieldName)
	}
	return sum
}

// AvgLength returns the field's mean token count per document.
func (s *Snapshot) AvgLength(fieldName string) float64 {
	if s.maxDoc == 0 {
		return 0
	}
	return float64(s.SumLength(fieldName)) / float64(s.maxDoc)
}

// Norm returns the field's token count in one document.
func (s *Snapshot) Norm(fieldName string, ord int) int {
	sv := s.segmentOf(ord)
	if sv == nil {
		return 0
	}
	return sv.Reader.Norm(fieldName, ord-sv.Base)
}

// DocValues returns the document's columnar values for a field.
func (s *Snapshot) DocValues(fieldName string, ord int) []string {
	sv := s.segmentOf(ord)
	if sv == nil {
		return nil
	}
	return sv.Reader.DocValues(fieldName, ord-sv.Base)
}

// HasDocValues reports whether any segment carries the field's column.
func (s *Snapshot) HasDocValues(fieldName string) bool {
	for _, sv := range s.segs {
		if sv.Reader.HasDocValues(fieldName) {
			return true
		}
	}
	return false
}

// Stored reads a document's stored fields by global ordinal. Deleted
// documents remain readable within the snapshot that predates the delete.
func (s *Snapshot) Stored(ord int) (map[string]any, error) {
	sv := s.segmentOf(ord)
	if sv == nil {
		return nil, nil
	}
	return sv.Reader.StoredDoc(ord - sv.Base)
}

// Terms calls fn for each distinct term of the field at or after start, in
// lexicographic order with segment-summed document frequencies. Iteration
// stops when fn returns false.
func (s *Snapshot) Terms(fieldName, start string, fn func(term string, docFreq int) bool) {
	if len(s.segs) == 1 {
		s.segs[0].Reader.Terms(fieldName, start, fn)
		return
	}
	merged := make(map[string]int)
	for _, sv := range s.segs {
		sv.Reader.Terms(fieldName, start, func(term string, docFreq int) bool {
			merged[term] += docFreq
			return true
		})
	}
	terms := make([]string, 0, len(merged))
	for term := range merged {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		if !fn(term, merged[term]) {
			return
		}
	}
}

// TermsRange calls fn for each term of the field within [lo, hi].
func (s *Snapshot) TermsRange(fieldName, lo, hi string, fn func(term string, docFreq int) bool) {
	s.Terms(fieldName, lo, func(term string, docFreq int) bool {
		if term > hi {
			return false
		}
		return fn(term, docFreq)
	})
}

// Fields returns the distinct indexed field names across segments.
func (s *Snapshot) Fields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, sv := range s.segs {
		for _, f := range sv.Reader.Fields() {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// AllLive returns the bitmap of live global ordinals.
func (s *Snapshot) AllLive() *roaring.Bitmap {
	live := roaring.New()
	for _, sv := range s.segs {
		for ord := 0; ord < sv.Reader.DocCount(); ord++ {
			if !sv.Deleted.Contains(uint32(ord)) {
				live.Add(uint32(sv.Base + ord))
			}
		}
	}
	return live
}
