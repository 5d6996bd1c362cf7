package field

import "sort"

// Reserved document keys. IDField identifies a document for updates and
// deletes; ScoreField carries the ranking score on retrieved hits and is
// never indexed.
const (
	IDField    = "_id"
	ScoreField = "_score"
)

// Document is an ordered multimap of field name to values. Field order is
// the order names were first set, so stored-field round trips are stable.
type Document struct {
	keys   []string
	values map[string][]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string][]any)}
}

// FromMap builds a document from a plain map. Multi-valued fields may be
// passed as []any; insertion order is not preserved across map iteration,
// so keys are sorted lexically for determinism.
func FromMap(m map[string]any) *Document {
	doc := NewDocument()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if vs, ok := m[name].([]any); ok {
			doc.Add(name, vs...)
			continue
		}
		doc.Add(name, m[name])
	}
	return doc
}

// Set replaces all values of the named field.
func (d *Document) Set(name string, values ...any) *Document {
	if _, ok := d.values[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.values[name] = values
	return d
}

// Add appends values to the named field.
func (d *Document) Add(name string, values ...any) *Document {
	if _, ok := d.values[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.values[name] = append(d.values[name], values...)
	return d
}

// Get returns the first value of the named field, or nil.
func (d *Document) Get(name string) any {
	if vs := d.values[name]; len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// GetAll returns all values of the named field.
func (d *Document) GetAll(name string) []any { return d.values[name] }

// Contains reports whether the field has at least one value.
func (d *Document) Contains(name string) bool { return len(d.values[name]) > 0 }

// Keys returns field names in insertion order.
func (d *Document) Keys() []string { return d.keys }

// Len returns the number of distinct field names.
func (d *Document) Len() int { return len(d.keys) }

// ID returns the document's identity value, if any.
func (d *Document) ID() string {
	if v := d.Get(IDField); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ToMap flattens the document: single-valued fields map to their value,
// multi-valued fields to a []any slice.
func (d *Document) ToMap() map[string]any {
	m := make(map[string]any, len(d.keys))
	for _, name := range d.keys {
		vs := d.values[name]
		if len(vs) == 1 {
			m[name] = vs[0]
			continue
		}
		m[name] = vs
	}
	return m
}
