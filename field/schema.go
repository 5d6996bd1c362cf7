package field

import (
	"encoding/json"
	"sort"
	"sync"

	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Schema is the registry of field descriptors for an index. A name maps to
// exactly one descriptor for the index's lifetime; redefining a name with a
// different descriptor is rejected so segments written at different times
// agree on every field's encoding.
type Schema struct {
	mu     sync.RWMutex
	fields map[string]*Field
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]*Field)}
}

// Define registers a field descriptor. Redefining a name with an identical
// descriptor is a no-op; a conflicting redefinition fails with
// ErrInvalidValue.
func (s *Schema) Define(f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.fields[f.Name]; ok {
		if *existing != *f {
			return scerrors.Newf("schema.define", "", scerrors.ErrInvalidValue,
				"field %q already defined with a different descriptor", f.Name)
		}
		return nil
	}
	s.fields[f.Name] = f
	return nil
}

// Get returns the descriptor for name, or nil.
func (s *Schema) Get(name string) *Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[name]
}

// Fields returns all descriptors sorted by name.
func (s *Schema) Fields() []*Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MarshalJSON encodes the schema as a sorted array of descriptors.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}

// UnmarshalJSON replaces the schema's contents with the decoded descriptors.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var fields []*Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = make(map[string]*Field, len(fields))
	for _, f := range fields {
		s.fields[f.Name] = f
	}
	return nil
}
