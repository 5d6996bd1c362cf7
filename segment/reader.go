package segment

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Reader provides random access into one immutable segment file. Readers are
// shared between searcher snapshots and reference counted: the file closes
// when the last holder releases it.
type Reader struct {
	file *os.File
	name string
	dir  string

	header Header
	meta   fileMeta

	refs atomic.Int32
}

// Open maps a published segment for reading. The meta section checksum is
// verified up front; a mismatch fails with ErrCorrupted, a newer format
// version with ErrFutureVersion.
func Open(dir, name string) (*Reader, error) {
	const op = "segment.open"
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(op, dir, err, name)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "%s: short header: %v", name, err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "%s: bad magic %x", name, header.Magic)
	}
	if header.Version > FormatVersion {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrFutureVersion, "%s: format version %d", name, header.Version)
	}

	metaBytes := make([]byte, header.MetaSize)
	if _, err := f.ReadAt(metaBytes, header.MetaOffset); err != nil {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "%s: short meta: %v", name, err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.MetaOffset+header.MetaSize); err != nil {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "%s: short footer: %v", name, err)
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(metaBytes) {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "%s: meta checksum mismatch", name)
	}

	var meta fileMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		f.Close()
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "%s: meta: %v", name, err)
	}

	r := &Reader{file: f, name: name, dir: dir, header: header, meta: meta}
	r.refs.Store(1)
	return r, nil
}

// Name returns the segment's file name.
func (r *Reader) Name() string { return r.name }

// DocCount returns the number of documents in the segment, deleted or not.
func (r *Reader) DocCount() int { return int(r.header.DocCount) }

// TermCount returns the number of distinct (field, term) keys.
func (r *Reader) TermCount() int { return len(r.meta.Dict) }

// Retain takes another reference.
func (r *Reader) Retain() { r.refs.Add(1) }

// Release drops a reference, closing the file at zero.
func (r *Reader) Release() error {
	if r.refs.Add(-1) == 0 {
		return r.file.Close()
	}
	return nil
}

func (r *Reader) find(field, term string) (DictEntry, bool) {
	idx := sort.Search(len(r.meta.Dict), func(i int) bool {
		e := r.meta.Dict[i]
		if e.Field != field {
			return e.Field > field
		}
		return e.Term >= term
	})
	if idx >= len(r.meta.Dict) {
		return DictEntry{}, false
	}
	e := r.meta.Dict[idx]
	return e, e.Field == field && e.Term == term
}

// DocFreq returns the number of documents containing the term, without
// reading the postings blob.
func (r *Reader) DocFreq(field, term string) int {
	if e, ok := r.find(field, term); ok {
		return e.DocFreq
	}
	return 0
}

// Postings reads the postings list for a term. A missing term returns an
// empty list and no error.
func (r *Reader) Postings(field, term string) (Postings, error) {
	e, ok := r.find(field, term)
	if !ok {
		return Postings{}, nil
	}
	blob := make([]byte, e.Len)
	if _, err := r.file.ReadAt(blob, r.header.PostOffset+e.Offset); err != nil {
		return Postings{}, errors.Newf("segment.postings", r.dir, errors.ErrCorrupted,
			"%s: %s:%s: %v", r.name, field, term, err)
	}
	var p Postings
	if err := json.Unmarshal(blob, &p); err != nil {
		return Postings{}, errors.Newf("segment.postings", r.dir, errors.ErrCorrupted,
			"%s: %s:%s: %v", r.name, field, term, err)
	}
	return p, nil
}

// Terms calls fn for each term of the field in lexicographic order, starting
// at the first term >= start. Iteration stops when fn returns false.
func (r *Reader) Terms(field, start string, fn func(term string, docFreq int) bool) {
	idx := sort.Search(len(r.meta.Dict), func(i int) bool {
		e := r.meta.Dict[i]
		if e.Field != field {
			return e.Field > field
		}
		return e.Term >= start
	})
	for ; idx < len(r.meta.Dict); idx++ {
		e := r.meta.Dict[idx]
		if e.Field != field {
			return
		}
		if !fn(e.Term, e.DocFreq) {
			return
		}
	}
}

// TermsRange calls fn for each term of the field in [lo, hi].
func (r *Reader) TermsRange(field, lo, hi string, fn func(term string, docFreq int) bool) {
	r.Terms(field, lo, func(term string, docFreq int) bool {
		if term > hi {
			return false
		}
		return fn(term, docFreq)
	})
}

// TermsPrefix calls fn for each term of the field with the given prefix.
func (r *Reader) TermsPrefix(field, prefix string, fn func(term string, docFreq int) bool) {
	r.Terms(field, prefix, func(term string, docFreq int) bool {
		if !strings.HasPrefix(term, prefix) {
			return false
		}
		return fn(term, docFreq)
	})
}

// Fields returns the distinct indexed field names in the segment.
func (r *Reader) Fields() []string {
	var fields []string
	for i, e := range r.meta.Dict {
		if i == 0 || fields[len(fields)-1] != e.Field {
			fields = append(fields, e.Field)
		}
	}
	return fields
}

// StoredDoc reads one stored document by local ordinal. Documents flushed
// without stored fields decode as nil.
func (r *Reader) StoredDoc(ord int) (map[string]any, error) {
	if ord < 0 || ord >= len(r.meta.Docs) {
		return nil, errors.Newf("segment.stored", r.dir, errors.ErrNotFound, "%s: ordinal %d", r.name, ord)
	}
	e := r.meta.Docs[ord]
	blob := make([]byte, e.Len)
	if _, err := r.file.ReadAt(blob, r.header.DocsOffset+e.Offset); err != nil {
		return nil, errors.Newf("segment.stored", r.dir, errors.ErrCorrupted, "%s: doc %d: %v", r.name, ord, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, errors.Newf("segment.stored", r.dir, errors.ErrCorrupted, "%s: doc %d: %v", r.name, ord, err)
	}
	return doc, nil
}

// DocValues returns the columnar values of a field for one document, sorted
// in encoded order. Absent values return nil.
func (r *Reader) DocValues(field string, ord int) []string {
	col := r.meta.DocValues[field]
	if ord < 0 || ord >= len(col) {
		return nil
	}
	return col[ord]
}

// HasDocValues reports whether the field carries a doc-values column.
func (r *Reader) HasDocValues(field string) bool {
	_, ok := r.meta.DocValues[field]
	return ok
}

// Norm returns the token count of a field in one document.
func (r *Reader) Norm(field string, ord int) int {
	col := r.meta.Norms[field]
	if ord < 0 || ord >= len(col) {
		return 0
	}
	return col[ord]
}

// SumLength returns the total token count of a field across the segment,
// the numerator of the average field length used by scoring.
func (r *Reader) SumLength(field string) int64 {
	return r.meta.SumLength[field]
}
