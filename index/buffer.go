// Package index implements the writer and reader halves of an index
// directory: a single exclusive Writer that buffers documents and publishes
// immutable segments through atomic commits, and Searchers that open
// point-in-time snapshots of the committed state.
package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/segment"
)

// buffer accumulates inverted documents between flushes. It is the only
// mutable index structure; a flush turns its contents into an immutable
// segment and resets it.
type buffer struct {
	mu        sync.RWMutex
	postings  map[string]*segment.Postings // field + "\x00" + term
	stored    []map[string]any
	docValues map[string][][]string
	norms     map[string][]int
	sumLength map[string]int64
	docCount  int
	size      int64
}

func newBuffer() *buffer {
	return &buffer{
		postings:  make(map[string]*segment.Postings),
		docValues: make(map[string][][]string),
		norms:     make(map[string][]int),
		sumLength: make(map[string]int64),
	}
}

// add inverts one document against the schema and appends it at the next
// local ordinal. Every named field must be defined in the schema.
func (b *buffer) add(schema *field.Schema, doc *field.Document) (int, error) {
	type invertedField struct {
		f   *field.Field
		inv field.Inverted
	}
	inverted := make([]invertedField, 0, doc.Len())
	var stored map[string]any
	for _, name := range doc.Keys() {
		f := schema.Get(name)
		if f == nil {
			return 0, errors.Newf("index.add", "", errors.ErrInvalidValue, "undefined field %q", name)
		}
		inv, err := f.Invert(0, doc.GetAll(name)...)
		if err != nil {
			return 0, err
		}
		inverted = append(inverted, invertedField{f: f, inv: inv})
		if f.Stored {
			if stored == nil {
				stored = make(map[string]any)
			}
			values := doc.GetAll(name)
			if len(values) == 1 {
				stored[name] = values[0]
			} else {
				stored[name] = values
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ord := b.docCount
	for _, part := range inverted {
		for _, term := range part.inv.Terms {
			key := term.Field + "\x00" + term.Text
			p, ok := b.postings[key]
			if !ok {
				p = &segment.Postings{}
				b.postings[key] = p
				b.size += int64(len(key) + 48)
			}
			p.Docs = append(p.Docs, uint32(ord))
			p.Freqs = append(p.Freqs, uint32(len(term.Positions)))
			positions := make([]uint32, len(term.Positions))
			for i, pos := range term.Positions {
				positions[i] = uint32(pos)
			}
			p.Positions = append(p.Positions, positions)
			b.size += int64(8 + 4*len(positions))
		}
		if part.f.DocValues && len(part.inv.DocValues) > 0 {
			values := append([]string(nil), part.inv.DocValues...)
			sort.Strings(values)
			col := b.docValues[part.f.Name]
			b.docValues[part.f.Name] = append(growColumn(col, ord), values)
			for _, v := range values {
				b.size += int64(len(v))
			}
		}
		if part.inv.Length > 0 {
			col := b.norms[part.f.Name]
			b.norms[part.f.Name] = append(growNorms(col, ord), part.inv.Length)
			b.sumLength[part.f.Name] += int64(part.inv.Length)
		}
	}
	b.stored = append(b.stored, stored)
	b.size += int64(64 * len(stored))
	b.docCount++
	return ord, nil
}

// growColumn pads a doc-values column with nils up to ordinal ord.
func growColumn(col [][]string, ord int) [][]string {
	for len(col) < ord {
		col = append(col, nil)
	}
	return col
}

func growNorms(col []int, ord int) []int {
	for len(col) < ord {
		col = append(col, 0)
	}
	return col
}

// termDocs returns the buffered local ordinals containing the term, for
// realtime delete resolution.
func (b *buffer) termDocs(fieldName, term string) []uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.postings[fieldName+"\x00"+term]
	if !ok {
		return nil
	}
	return append([]uint32(nil), p.Docs...)
}

func (b *buffer) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.docCount
}

func (b *buffer) bytes() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// snapshot converts the buffer into a segment payload: terms sorted by
// field then term, columns padded to the document count.
func (b *buffer) snapshot() *segment.Data {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.docCount == 0 {
		return nil
	}
	data := &segment.Data{
		DocCount:  b.docCount,
		Stored:    append([]map[string]any(nil), b.stored...),
		DocValues: make(map[string][][]string, len(b.docValues)),
		Norms:     make(map[string][]int, len(b.norms)),
		SumLength: make(map[string]int64, len(b.sumLength)),
	}
	keys := make([]string, 0, len(b.postings))
	for key := range b.postings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sep := 0
		for i := 0; i < len(key); i++ {
			if key[i] == 0 {
				sep = i
				break
			}
		}
		data.Terms = append(data.Terms, segment.TermPostings{
			Field:    key[:sep],
			Term:     key[sep+1:],
			Postings: *b.postings[key],
		})
	}
	for name, col := range b.docValues {
		data.DocValues[name] = growColumn(append([][]string(nil), col...), b.docCount)
	}
	for name, col := range b.norms {
		data.Norms[name] = growNorms(append([]int(nil), col...), b.docCount)
	}
	for name, sum := range b.sumLength {
		data.SumLength[name] = sum
	}
	return data
}

func (b *buffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postings = make(map[string]*segment.Postings)
	b.stored = nil
	b.docValues = make(map[string][][]string)
	b.norms = make(map[string][]int)
	b.sumLength = make(map[string]int64)
	b.docCount = 0
	b.size = 0
}
