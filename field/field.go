// Package field implements the typed field model: descriptors governing how a
// value is tokenized, encoded, stored, and kept as a doc-value column, plus
// the transient Document type consumed by the index writer.
//
// A field name maps to exactly one descriptor per index generation;
// re-declaring a name with different settings is rejected and requires
// reindexing.
package field

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/analysis"
	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Mode selects how raw values become index terms.
type Mode int

const (
	// ModeNone indexes nothing; the field is stored and/or doc-valued only.
	ModeNone Mode = iota
	// ModeNormalized indexes the whole value as a single lower-cased term.
	ModeNormalized
	// ModeTokenized runs the full analysis pipeline.
	ModeTokenized
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeNormalized:
		return "normalized"
	case ModeTokenized:
		return "tokenized"
	default:
		return "unknown"
	}
}

// Kind distinguishes the value encodings built on top of Mode.
type Kind int

const (
	KindText Kind = iota
	KindKeyword
	KindNumeric
	KindFloat
	KindDateTime
	KindNested
	KindPoint
)

// Field is a descriptor: every setting that governs how one named field's
// values are analysed, encoded, stored, and columnised.
type Field struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Mode      Mode   `json:"mode"`
	Stored    bool   `json:"stored"`
	DocValues bool   `json:"docValues"`
	// Dims is the dimensionality for point/numeric multi-dimensional
	// indexing; zero for ordinary fields.
	Dims int `json:"dims,omitempty"`
	// Separator splits nested values into per-depth component fields.
	Separator string `json:"separator,omitempty"`
	// Precision is the tile depth for geospatial point fields.
	Precision int `json:"precision,omitempty"`
	// FormatSpec is an optional fmt verb applied to raw values before
	// encoding, e.g. "%07d" to zero-pad sortable identifiers.
	FormatSpec string `json:"format,omitempty"`
}

// Option mutates a descriptor at construction time.
type Option func(*Field)

// Store retains the original value verbatim for retrieval.
func Store() Option { return func(f *Field) { f.Stored = true } }

// DocValued keeps a columnar per-document value for sort/facet/range access.
func DocValued() Option { return func(f *Field) { f.DocValues = true } }

// WithFormat applies a fmt verb to raw values before term encoding.
func WithFormat(spec string) Option { return func(f *Field) { f.FormatSpec = spec } }

// Text declares a tokenized full-text field, stored by default.
func Text(name string, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindText, Mode: ModeTokenized, Stored: true}
	return f.apply(opts)
}

// Keyword declares a single-term normalized field with doc-values, the usual
// shape for facet and filter fields.
func Keyword(name string, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindKeyword, Mode: ModeNormalized, DocValues: true}
	return f.apply(opts)
}

// Numeric declares an integer field encoded as order-preserving fixed-width
// text, so range and prefix queries reduce to byte-range dictionary scans.
func Numeric(name string, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindNumeric, Mode: ModeNone, DocValues: true, Dims: 1}
	return f.apply(opts)
}

// Float declares a float64 field with the same sortable encoding guarantees
// as Numeric.
func Float(name string, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindFloat, Mode: ModeNone, DocValues: true, Dims: 1}
	return f.apply(opts)
}

// DateTime declares a date-decomposed field: each datetime component is
// indexed under its own per-depth subfield in sortable ISO order, so a range
// over years never has to enumerate days.
func DateTime(name string, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindDateTime, Mode: ModeNone, Stored: true}
	return f.apply(opts)
}

// Nested declares a separator-decomposed field (e.g. paths a/b/c) indexing
// every component prefix under its own subfield.
func Nested(name, separator string, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindNested, Mode: ModeNone, Separator: separator}
	return f.apply(opts)
}

// Point declares a geospatial lng/lat field indexed as quadkey tiles at the
// given precision (tile depth).
func Point(name string, precision int, opts ...Option) *Field {
	f := &Field{Name: name, Kind: KindPoint, Mode: ModeNone, Dims: 2, Precision: precision, Stored: true}
	return f.apply(opts)
}

func (f *Field) apply(opts []Option) *Field {
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Validate rejects descriptors with unusable settings at declaration time.
func (f *Field) Validate() error {
	if f.Name == "" {
		return scerrors.Newf("field", "", scerrors.ErrInvalidValue, "empty field name")
	}
	if f.Kind == KindNested && f.Separator == "" {
		return scerrors.Newf("field", "", scerrors.ErrInvalidValue, "nested field %q needs a separator", f.Name)
	}
	if f.Kind == KindPoint && (f.Precision < 1 || f.Precision > maxTilePrecision) {
		return scerrors.Newf("field", "", scerrors.ErrInvalidValue,
			"point field %q precision %d out of range 1..%d", f.Name, f.Precision, maxTilePrecision)
	}
	if f.Mode == ModeNone && !f.Stored && !f.DocValues && f.Kind == KindText {
		return scerrors.Newf("field", "", scerrors.ErrInvalidValue, "field %q indexes nothing", f.Name)
	}
	return nil
}

// Term is one inverted entry produced from a field value: the (possibly
// derived) field name, the encoded term text, and token positions.
type Term struct {
	Field     string
	Text      string
	Positions []int
}

// Inverted is the indexable form of one field's values within a document.
type Inverted struct {
	Terms []Term
	// DocValues are the columnar values, encoded so that lexicographic
	// order matches value order.
	DocValues []string
	// Length is the token count, used for length-normalised scoring.
	Length int
}

// Invert encodes values per the descriptor. startPos offsets token positions
// so multiple values of one field occupy disjoint position ranges.
func (f *Field) Invert(startPos int, values ...any) (Inverted, error) {
	var inv Inverted
	pos := startPos
	byText := make(map[string]*Term)
	add := func(name, text string, positions ...int) {
		key := name + "\x00" + text
		if t, ok := byText[key]; ok {
			t.Positions = append(t.Positions, positions...)
			return
		}
		byText[key] = &Term{Field: name, Text: text, Positions: positions}
	}
	for _, value := range values {
		text, err := f.format(value)
		if err != nil {
			return Inverted{}, err
		}
		switch f.Mode {
		case ModeTokenized:
			tokens := analysis.Tokenize(text)
			for _, tok := range tokens {
				add(f.Name, tok.Term, pos+tok.Position)
			}
			pos += len(tokens) + 1
			inv.Length += len(tokens)
		case ModeNormalized:
			add(f.Name, analysis.Normalize(text), pos)
			pos++
			inv.Length++
		case ModeNone:
			if err := f.invertEncoded(&inv, add, value, text); err != nil {
				return Inverted{}, err
			}
		}
		if f.DocValues {
			dv, err := f.docValue(value, text)
			if err != nil {
				return Inverted{}, err
			}
			inv.DocValues = append(inv.DocValues, dv)
		}
	}
	keys := make([]string, 0, len(byText))
	for key := range byText {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		inv.Terms = append(inv.Terms, *byText[key])
	}
	return inv, nil
}

// invertEncoded handles the ModeNone kinds that index derived terms.
func (f *Field) invertEncoded(inv *Inverted, add func(name, text string, positions ...int), value any, text string) error {
	switch f.Kind {
	case KindNumeric:
		n, err := toInt64(value)
		if err != nil {
			return scerrors.Newf("field", "", scerrors.ErrInvalidValue, "field %q: %v", f.Name, err)
		}
		add(f.Name, EncodeInt64(n))
	case KindFloat:
		x, err := toFloat64(value)
		if err != nil {
			return scerrors.Newf("field", "", scerrors.ErrInvalidValue, "field %q: %v", f.Name, err)
		}
		add(f.Name, EncodeFloat64(x))
	case KindDateTime, KindNested:
		comps, err := f.Components(text)
		if err != nil {
			return err
		}
		for depth := 1; depth <= len(comps); depth++ {
			add(f.SubField(depth), f.JoinComponents(comps[:depth]))
		}
	case KindPoint:
		lng, lat, err := toLngLat(value, text)
		if err != nil {
			return scerrors.Newf("field", "", scerrors.ErrInvalidValue, "field %q: %v", f.Name, err)
		}
		add(f.Name, NewPoint(lng, lat).Tile(f.Precision).Quadkey())
	}
	return nil
}

// docValue encodes one value for the columnar store, order-preserving.
func (f *Field) docValue(value any, text string) (string, error) {
	switch f.Kind {
	case KindNumeric:
		n, err := toInt64(value)
		if err != nil {
			return "", scerrors.Newf("field", "", scerrors.ErrInvalidValue, "field %q: %v", f.Name, err)
		}
		return EncodeInt64(n), nil
	case KindFloat:
		x, err := toFloat64(value)
		if err != nil {
			return "", scerrors.Newf("field", "", scerrors.ErrInvalidValue, "field %q: %v", f.Name, err)
		}
		return EncodeFloat64(x), nil
	case KindKeyword:
		return analysis.Normalize(text), nil
	default:
		return text, nil
	}
}

// format applies the optional format spec and renders the value as text.
func (f *Field) format(value any) (string, error) {
	if f.FormatSpec != "" {
		return fmt.Sprintf(f.FormatSpec, value), nil
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format("2006-01-02 15:04:05"), nil
	case LngLat:
		return v.String(), nil
	default:
		return "", scerrors.Newf("field", "", scerrors.ErrInvalidValue,
			"field %q: unsupported value type %T", f.Name, value)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot encode %T as int64", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot encode %T as float64", value)
	}
}
