package index

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/segment"
)

// Searcher opens read-only views over an index directory. It never takes
// the write lock; any number of searchers may coexist with one writer. The
// view is frozen at open time and advances only on Refresh.
type Searcher struct {
	dir      string
	registry *registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	snap *Snapshot

	filterMu    sync.Mutex
	filters     map[string]*roaring.Bitmap
	filterGroup singleflight.Group
	closed      bool
}

// OpenSearcher opens a searcher on the directory's current commit. A
// directory with no commit yet yields an empty, searchable view.
func OpenSearcher(dir string, m *metrics.Metrics) (*Searcher, error) {
	s := &Searcher{
		dir:      dir,
		registry: newRegistry(dir),
		logger:   logger.WithIndex("index.searcher", dir),
		metrics:  m,
		filters:  make(map[string]*roaring.Bitmap),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the current view with a reference held; the caller must
// Release it when done.
func (s *Searcher) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Acquire()
}

// Refresh advances to the latest committed generation. When nothing new has
// been committed the current view is kept as is.
func (s *Searcher) Refresh() error {
	commit, err := segment.ReadCommit(s.dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("index.refresh", s.dir, errors.ErrClosed, "")
	}
	if s.snap != nil && !s.snap.Realtime && s.snap.Generation == commit.Generation {
		return nil
	}
	deletes := make([]*roaring.Bitmap, len(commit.Segments))
	for i, info := range commit.Segments {
		if deletes[i], err = segment.ReadDeletes(s.dir, info.DelFile); err != nil {
			return err
		}
	}
	snap, err := newSnapshot(s.registry, commit.Generation, false, commit.Schema, commit.Segments, deletes)
	if err != nil {
		return err
	}
	s.swapLocked(snap)
	s.logger.Debug("refreshed", "generation", snap.Generation, "segments", len(snap.segs), "docs", snap.LiveCount())
	return nil
}

// RefreshRealtime advances to the writer's current uncommitted state,
// flushing its buffer first. The view includes unpublished segments and
// tombstones; it is near-realtime, not durable.
func (s *Searcher) RefreshRealtime(w *Writer) error {
	infos, deletes, err := w.realtimeView()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("index.refresh", s.dir, errors.ErrClosed, "")
	}
	snap, err := newSnapshot(s.registry, w.generation, true, w.schema, infos, deletes)
	if err != nil {
		return err
	}
	s.swapLocked(snap)
	s.logger.Debug("realtime refresh", "segments", len(snap.segs), "docs", snap.LiveCount())
	return nil
}

func (s *Searcher) swapLocked(snap *Snapshot) {
	old := s.snap
	s.snap = snap
	if old != nil {
		old.Release()
	}
	// Cached filters are per generation; drop them wholesale.
	s.filterMu.Lock()
	s.filters = make(map[string]*roaring.Bitmap)
	s.filterMu.Unlock()
}

// Get retrieves a document's stored fields by its identity value. The
// second return is false when no live document matches.
func (s *Searcher) Get(id string) (*field.Document, bool, error) {
	snap := s.Snapshot()
	defer snap.Release()
	term := id
	if f := snap.schema.Get(field.IDField); f != nil {
		if inv, err := f.Invert(0, id); err == nil && len(inv.Terms) == 1 {
			term = inv.Terms[0].Text
		}
	}
	p, err := snap.Postings(field.IDField, term)
	if err != nil {
		return nil, false, err
	}
	if p.Len() == 0 {
		return nil, false, nil
	}
	// Later segments hold newer documents; the last posting wins.
	stored, err := snap.Stored(int(p.Docs[p.Len()-1]))
	if err != nil {
		return nil, false, err
	}
	return field.FromMap(stored), true, nil
}

// Filter returns the cached bitmap of live documents containing the term.
// Concurrent requests for the same uncached filter are collapsed to one
// computation.
func (s *Searcher) Filter(fieldName, term string) (*roaring.Bitmap, error) {
	snap := s.Snapshot()
	defer snap.Release()
	return s.filterOn(snap, fieldName, term)
}

func (s *Searcher) filterOn(snap *Snapshot, fieldName, term string) (*roaring.Bitmap, error) {
	key := fmt.Sprintf("%d\x00%v\x00%s\x00%s", snap.Generation, snap.Realtime, fieldName, term)
	s.filterMu.Lock()
	if cached, ok := s.filters[key]; ok {
		s.filterMu.Unlock()
		if s.metrics != nil {
			s.metrics.FilterCacheHits.Inc()
		}
		return cached, nil
	}
	s.filterMu.Unlock()

	v, err, _ := s.filterGroup.Do(key, func() (any, error) {
		p, err := snap.Postings(fieldName, term)
		if err != nil {
			return nil, err
		}
		bitmap := roaring.BitmapOf(p.Docs...)
		s.filterMu.Lock()
		s.filters[key] = bitmap
		s.filterMu.Unlock()
		return bitmap, nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.FilterCacheMisses.Inc()
	}
	return v.(*roaring.Bitmap), nil
}

// Sorter returns an ordering key accessor over the field's doc values.
func (s *Searcher) Sorter(fieldName string) *Sorter {
	return &Sorter{searcher: s, field: fieldName}
}

// Count returns the searchable document count.
func (s *Searcher) Count() int {
	snap := s.Snapshot()
	defer snap.Release()
	return snap.LiveCount()
}

// Close releases the current view. Snapshots already acquired stay valid
// until their holders release them.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.snap != nil {
		s.snap.Release()
		s.snap = nil
	}
	return nil
}

// Sorter resolves per-document ordering keys from a doc-values column. Keys
// compare bytewise, which matches value order for the sortable encodings.
type Sorter struct {
	searcher *Searcher
	field    string
}

// Key returns the document's primary sort key, empty when the document has
// no value.
func (s *Sorter) Key(snap *Snapshot, ord int) string {
	values := snap.DocValues(s.field, ord)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
