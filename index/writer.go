package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/searchcore/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/segment"
)

// segState tracks one live segment inside the writer: its commit info, the
// accumulated deletions, and the add-sequence of its first document so
// delete-by-term only tombstones documents added before the delete.
type segState struct {
	info     segment.Info
	deleted  *roaring.Bitmap
	firstSeq int64
	dirty    bool // deletions changed since last commit
}

// pendingDelete is a registered delete-by-term, resolved against segments at
// flush and commit time. Seq orders it relative to document adds, so an
// Update never deletes its own replacement.
type pendingDelete struct {
	field string
	term  string
	seq   int64
}

// Writer is the single mutating handle on an index directory. It holds the
// directory's exclusive lock from Open until Close; a second concurrent
// writer fails with ErrLockHeld. Methods are safe for concurrent use but
// adds are serialised internally, so ordering is the caller's arrival order.
type Writer struct {
	dir     string
	cfg     config.IndexConfig
	lock    *segment.Lock
	segw    *segment.Writer
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	schema     *field.Schema
	generation uint64
	segs       []*segState
	buf        *buffer
	pending    []pendingDelete
	seq        int64 // documents added this session
	closed     bool
}

// Open acquires the directory's write lock and loads the committed state.
// Field definitions in schema extend the persisted schema; a conflicting
// redefinition of a committed field fails with ErrInvalidValue.
func Open(dir string, schema *field.Schema, cfg config.IndexConfig, m *metrics.Metrics) (*Writer, error) {
	lock, err := segment.AcquireLock(dir)
	if err != nil {
		return nil, err
	}
	commit, err := segment.ReadCommit(dir)
	if err != nil {
		lock.Release()
		return nil, err
	}
	merged := commit.Schema
	if schema != nil {
		for _, f := range schema.Fields() {
			if err := merged.Define(f); err != nil {
				lock.Release()
				return nil, err
			}
		}
	}
	w := &Writer{
		dir:        dir,
		cfg:        cfg,
		lock:       lock,
		segw:       segment.NewWriter(dir),
		logger:     logger.WithIndex("index.writer", dir),
		metrics:    m,
		schema:     merged,
		generation: commit.Generation,
		buf:        newBuffer(),
	}
	for _, info := range commit.Segments {
		deleted, err := segment.ReadDeletes(dir, info.DelFile)
		if err != nil {
			lock.Release()
			return nil, err
		}
		// Committed documents predate every delete registered this session.
		w.segs = append(w.segs, &segState{info: info, deleted: deleted, firstSeq: -1})
	}
	w.logger.Info("writer opened",
		"generation", w.generation,
		"segments", len(w.segs),
		"docs", commit.DocCount(),
	)
	return w, nil
}

// Schema returns the writer's field registry. Definitions added to it apply
// to subsequent adds and are persisted at the next commit.
func (w *Writer) Schema() *field.Schema {
	return w.schema
}

// Dir returns the index directory.
func (w *Writer) Dir() string { return w.dir }

// Add buffers one document. It becomes durable at Commit and searchable at
// the next committed or realtime refresh. The buffer flushes to a segment
// automatically when it exceeds the configured thresholds.
func (w *Writer) Add(doc *field.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.add", w.dir, errors.ErrClosed, "")
	}
	if _, err := w.buf.add(w.schema, doc); err != nil {
		return err
	}
	w.seq++
	if w.metrics != nil {
		w.metrics.DocsIndexedTotal.Inc()
	}
	if (w.cfg.FlushDocs > 0 && w.buf.count() >= w.cfg.FlushDocs) ||
		(w.cfg.FlushBytes > 0 && w.buf.bytes() >= w.cfg.FlushBytes) {
		return w.flushLocked()
	}
	return nil
}

// Update atomically replaces every document whose identity field equals the
// new document's. The delete applies only to documents added earlier, so the
// replacement itself survives.
func (w *Writer) Update(doc *field.Document) error {
	id := doc.ID()
	if id == "" {
		return errors.Newf("index.update", w.dir, errors.ErrInvalidValue, "document has no %s", field.IDField)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.update", w.dir, errors.ErrClosed, "")
	}
	w.deleteTermLocked(field.IDField, w.idTermLocked(id))
	if _, err := w.buf.add(w.schema, doc); err != nil {
		return err
	}
	w.seq++
	if w.metrics != nil {
		w.metrics.DocsIndexedTotal.Inc()
	}
	return nil
}

// Delete registers a delete of every document containing the field value.
// The value is encoded per the field's descriptor, so deleting a keyword
// field is case-insensitive exactly like matching it. Tombstones become
// visible at the next commit.
func (w *Writer) Delete(name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.delete", w.dir, errors.ErrClosed, "")
	}
	f := w.schema.Get(name)
	if f == nil {
		return errors.Newf("index.delete", w.dir, errors.ErrInvalidValue, "undefined field %q", name)
	}
	inv, err := f.Invert(0, value)
	if err != nil {
		return err
	}
	if len(inv.Terms) == 0 {
		return errors.Newf("index.delete", w.dir, errors.ErrInvalidValue, "field %q value produced no terms", name)
	}
	for _, t := range inv.Terms {
		w.deleteTermLocked(t.Field, t.Text)
	}
	return nil
}

// DeleteByID deletes the document with the given identity value.
func (w *Writer) DeleteByID(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.delete", w.dir, errors.ErrClosed, "")
	}
	w.deleteTermLocked(field.IDField, w.idTermLocked(id))
	return nil
}

// idTermLocked encodes an identity value the way the identity field indexes
// it, falling back to plain normalisation when the field is undeclared.
func (w *Writer) idTermLocked(id string) string {
	if f := w.schema.Get(field.IDField); f != nil {
		if inv, err := f.Invert(0, id); err == nil && len(inv.Terms) == 1 {
			return inv.Terms[0].Text
		}
	}
	return analysis.Normalize(id)
}

func (w *Writer) deleteTermLocked(fieldName, term string) {
	w.pending = append(w.pending, pendingDelete{field: fieldName, term: term, seq: w.seq})
	if w.metrics != nil {
		w.metrics.DocsDeletedTotal.Inc()
	}
}

// Flush writes the buffer out as a new uncommitted segment. Searchers do not
// see it until Commit, but a realtime refresh does.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.flush", w.dir, errors.ErrClosed, "")
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	data := w.buf.snapshot()
	if data == nil {
		return nil
	}
	name, err := w.segw.Write(data)
	if err != nil {
		return err
	}
	w.segs = append(w.segs, &segState{
		info:     segment.Info{Name: name, DocCount: data.DocCount},
		deleted:  roaring.New(),
		firstSeq: w.seq - int64(data.DocCount),
	})
	w.buf.reset()
	if w.metrics != nil {
		w.metrics.SegmentFlushesTotal.Inc()
		w.metrics.ActiveSegments.Set(float64(len(w.segs)))
	}
	w.logger.Info("buffer flushed", "segment", name, "docs", data.DocCount, "segments", len(w.segs))
	return nil
}

// applyDeletesLocked resolves every pending delete to tombstones. A delete
// hits a document when the document contains the term and was added before
// the delete was registered; all committed documents qualify.
func (w *Writer) applyDeletesLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	for _, s := range w.segs {
		r, err := segment.Open(w.dir, s.info.Name)
		if err != nil {
			return err
		}
		for _, del := range w.pending {
			p, err := r.Postings(del.field, del.term)
			if err != nil {
				r.Release()
				return err
			}
			for _, ord := range p.Docs {
				if s.firstSeq >= 0 && s.firstSeq+int64(ord) >= del.seq {
					continue
				}
				if s.deleted.CheckedAdd(ord) {
					s.dirty = true
				}
			}
		}
		r.Release()
	}
	w.pending = nil
	return nil
}

// Commit flushes the buffer, applies pending deletes, runs the merge policy,
// and atomically publishes the new generation. On return every previously
// added document is durable; searchers pick the generation up on refresh.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.commit", w.dir, errors.ErrClosed, "")
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.applyDeletesLocked(); err != nil {
		return err
	}
	if w.cfg.MaxSegments > 0 && len(w.segs) > w.cfg.MaxSegments {
		if err := w.mergeLocked(w.cfg.MergeFactor); err != nil {
			return err
		}
	}
	return w.commitLocked()
}

func (w *Writer) commitLocked() error {
	gen := w.generation + 1
	commit := &segment.Commit{
		Version:    segment.FormatVersion,
		Generation: gen,
		Schema:     w.schema,
	}
	live := w.segs[:0]
	for _, s := range w.segs {
		if int(s.deleted.GetCardinality()) >= s.info.DocCount {
			// Fully deleted; drop the segment from the commit.
			s.dirty = false
			continue
		}
		if s.dirty {
			delFile, err := segment.WriteDeletes(w.dir, s.info.Name, gen, s.deleted)
			if err != nil {
				return err
			}
			s.info.DelFile = delFile
			s.dirty = false
		}
		live = append(live, s)
		commit.Segments = append(commit.Segments, s.info)
	}
	w.segs = live
	if err := commit.Write(w.dir); err != nil {
		return err
	}
	w.generation = gen
	w.cleanupLocked(commit)
	if w.metrics != nil {
		w.metrics.CommitsTotal.Inc()
		w.metrics.ActiveSegments.Set(float64(len(w.segs)))
		w.metrics.IndexDocCount.Set(float64(w.docCountLocked()))
	}
	w.logger.Info("committed", "generation", gen, "segments", len(w.segs), "docs", commit.DocCount())
	return nil
}

// cleanupLocked removes files no longer referenced by the published commit.
// Open searchers keep their own file handles, so unlinking is safe.
func (w *Writer) cleanupLocked(commit *segment.Commit) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("cleanup skipped", "error", err)
		return
	}
	live := commit.LiveFiles()
	for _, entry := range entries {
		name := entry.Name()
		if live[name] || entry.IsDir() {
			continue
		}
		if !strings.HasPrefix(name, "seg_") {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
			w.logger.Warn("cleanup failed", "file", name, "error", err)
		}
	}
}

// Merge combines the smallest segments down to at most maxSegments live
// segments, dropping tombstoned documents. The merged segment becomes
// visible at the next commit.
func (w *Writer) Merge(maxSegments int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.merge", w.dir, errors.ErrClosed, "")
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.applyDeletesLocked(); err != nil {
		return err
	}
	if maxSegments < 1 {
		maxSegments = 1
	}
	for len(w.segs) > maxSegments {
		n := len(w.segs) - maxSegments + 1
		if err := w.mergeLocked(n); err != nil {
			return err
		}
	}
	return nil
}

// mergeLocked merges the n smallest segments into one.
func (w *Writer) mergeLocked(n int) error {
	if n < 2 {
		n = 2
	}
	if n > len(w.segs) {
		n = len(w.segs)
	}
	if n < 2 {
		return nil
	}
	// Pick the smallest segments; keep their relative age order.
	bySize := make([]*segState, len(w.segs))
	copy(bySize, w.segs)
	sort.SliceStable(bySize, func(i, j int) bool {
		return bySize[i].info.DocCount < bySize[j].info.DocCount
	})
	victims := make(map[*segState]bool, n)
	for _, s := range bySize[:n] {
		victims[s] = true
	}

	var readers []*segment.Reader
	var deletes []*roaring.Bitmap
	defer func() {
		for _, r := range readers {
			r.Release()
		}
	}()
	var kept []*segState
	var firstSeq int64 = -1
	for _, s := range w.segs {
		if !victims[s] {
			kept = append(kept, s)
			continue
		}
		r, err := segment.Open(w.dir, s.info.Name)
		if err != nil {
			return err
		}
		readers = append(readers, r)
		deletes = append(deletes, s.deleted)
		if s.firstSeq >= 0 && (firstSeq < 0 || s.firstSeq < firstSeq) {
			firstSeq = s.firstSeq
		}
	}

	data, err := segment.Merge(readers, deletes)
	if err != nil {
		return err
	}
	if data.DocCount > 0 {
		name, err := w.segw.Write(data)
		if err != nil {
			return err
		}
		kept = append(kept, &segState{
			info:     segment.Info{Name: name, DocCount: data.DocCount},
			deleted:  roaring.New(),
			firstSeq: firstSeq,
		})
	}
	w.segs = kept
	if w.metrics != nil {
		w.metrics.SegmentMergesTotal.Inc()
		w.metrics.ActiveSegments.Set(float64(len(w.segs)))
	}
	w.logger.Info("segments merged", "merged", len(readers), "docs", data.DocCount, "segments", len(w.segs))
	return nil
}

// DocCount returns the number of buffered plus committed documents, not
// counting tombstones.
func (w *Writer) DocCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.docCountLocked()
}

func (w *Writer) docCountLocked() int {
	total := w.buf.count()
	for _, s := range w.segs {
		total += s.info.DocCount - int(s.deleted.GetCardinality())
	}
	return total
}

// Snapshot hard-links the current commit's files into dst, an instant
// consistent backup that shares storage with the live index. Cross-device
// targets fall back to copying.
func (w *Writer) Snapshot(dst string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("index.snapshot", w.dir, errors.ErrClosed, "")
	}
	commit, err := segment.ReadCommit(w.dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return errors.New("index.snapshot", w.dir, err, "creating snapshot directory")
	}
	for name := range commit.LiveFiles() {
		if name == segment.LockFile {
			continue
		}
		src := filepath.Join(w.dir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		target := filepath.Join(dst, name)
		if err := os.Link(src, target); err != nil {
			data, rerr := os.ReadFile(src)
			if rerr != nil {
				return errors.New("index.snapshot", w.dir, rerr, name)
			}
			if werr := os.WriteFile(target, data, 0644); werr != nil {
				return errors.New("index.snapshot", w.dir, werr, name)
			}
		}
	}
	w.logger.Info("snapshot taken", "dst", dst, "generation", commit.Generation)
	return nil
}

// realtimeView exposes the writer's current segment set, including
// uncommitted flushes and unpublished tombstones, for realtime searchers.
// The buffer is flushed first so every added document is segment-backed.
func (w *Writer) realtimeView() ([]segment.Info, []*roaring.Bitmap, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, nil, errors.New("index.realtime", w.dir, errors.ErrClosed, "")
	}
	if err := w.flushLocked(); err != nil {
		return nil, nil, err
	}
	if err := w.applyDeletesLocked(); err != nil {
		return nil, nil, err
	}
	infos := make([]segment.Info, len(w.segs))
	deletes := make([]*roaring.Bitmap, len(w.segs))
	for i, s := range w.segs {
		infos[i] = s.info
		deletes[i] = s.deleted.Clone()
	}
	return infos, deletes, nil
}

// Close releases the write lock. Uncommitted buffered documents and pending
// deletes are discarded; call Commit first to keep them.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Info("writer closed", "generation", w.generation)
	return w.lock.Release()
}
