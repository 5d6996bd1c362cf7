// Package query defines the immutable query tree and its evaluation against
// an index snapshot. Nodes are values: combinators build new trees and never
// mutate their operands, so queries are safe to share and reuse.
package query

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
)

// Node is one query tree vertex. All implementations are immutable.
type Node interface {
	fmt.Stringer
	eval(ev *evaluator) (*Result, error)
}

// MatchAll matches every live document with a constant score of one.
type MatchAll struct{}

func (MatchAll) String() string { return "*:*" }

// MatchNone matches nothing.
type MatchNone struct{}

func (MatchNone) String() string { return "-*:*" }

// Term matches documents containing the exact indexed term.
type Term struct {
	Field string
	Text  string
}

// NewTerm builds a single-term query.
func NewTerm(fieldName, text string) Term { return Term{Field: fieldName, Text: text} }

func (t Term) String() string { return t.Field + ":" + t.Text }

// TermSet matches documents containing any of the terms, scored as the sum
// of the per-term scores.
type TermSet struct {
	Field string
	Terms []string
}

// NewTermSet builds a disjunction over literal terms.
func NewTermSet(fieldName string, terms ...string) TermSet {
	return TermSet{Field: fieldName, Terms: append([]string(nil), terms...)}
}

func (t TermSet) String() string {
	return t.Field + ":(" + strings.Join(t.Terms, " ") + ")"
}

// Phrase matches term sequences in order. Slop is the number of extra
// positions allowed between the first and last term; zero means adjacent.
type Phrase struct {
	Field string
	Terms []string
	Slop  int
}

// NewPhrase builds an exact phrase query over already-analysed terms.
func NewPhrase(fieldName string, terms ...string) Phrase {
	return Phrase{Field: fieldName, Terms: append([]string(nil), terms...)}
}

// WithSlop returns a copy allowing up to n filler positions.
func (p Phrase) WithSlop(n int) Phrase {
	p.Slop = n
	return p
}

func (p Phrase) String() string {
	s := p.Field + ":\"" + strings.Join(p.Terms, " ") + "\""
	if p.Slop > 0 {
		s += fmt.Sprintf("~%d", p.Slop)
	}
	return s
}

// Range matches terms within bounds. Empty Lo or Hi leaves that side open.
// Matches score a constant one, like any rewritten multi-term query.
type Range struct {
	Field  string
	Lo, Hi string
	IncLo  bool
	IncHi  bool
}

// NewRange builds an inclusive term range query.
func NewRange(fieldName, lo, hi string) Range {
	return Range{Field: fieldName, Lo: lo, Hi: hi, IncLo: true, IncHi: true}
}

func (r Range) String() string {
	lb, rb := "{", "}"
	if r.IncLo {
		lb = "["
	}
	if r.IncHi {
		rb = "]"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", r.Field, lb, r.Lo, r.Hi, rb)
}

// Prefix matches every term starting with the prefix, constant scored.
type Prefix struct {
	Field string
	Text  string
}

func (p Prefix) String() string { return p.Field + ":" + p.Text + "*" }

// Wildcard matches terms against a pattern of literals, `*` (any run) and
// `?` (any single character), constant scored.
type Wildcard struct {
	Field   string
	Pattern string
}

func (w Wildcard) String() string { return w.Field + ":" + w.Pattern }

// Fuzzy matches terms within MaxEdits Levenshtein distance of Text,
// constant scored.
type Fuzzy struct {
	Field    string
	Text     string
	MaxEdits int
}

func (f Fuzzy) String() string { return fmt.Sprintf("%s:%s~%d", f.Field, f.Text, f.MaxEdits) }

// Boolean combines clauses: every Must and no MustNot may match, and at
// least MinShould of the Should clauses (default one when there are Should
// clauses and no Must).
type Boolean struct {
	Must      []Node
	Should    []Node
	MustNot   []Node
	MinShould int
}

func (b Boolean) String() string {
	var parts []string
	for _, n := range b.Must {
		parts = append(parts, "+"+n.String())
	}
	for _, n := range b.Should {
		parts = append(parts, n.String())
	}
	for _, n := range b.MustNot {
		parts = append(parts, "-"+n.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// And returns a conjunction of the nodes.
func And(nodes ...Node) Node {
	return Boolean{Must: append([]Node(nil), nodes...)}
}

// Or returns a disjunction of the nodes.
func Or(nodes ...Node) Node {
	return Boolean{Should: append([]Node(nil), nodes...), MinShould: 1}
}

// AndNot returns documents matching include but not exclude.
func AndNot(include, exclude Node) Node {
	return Boolean{Must: []Node{include}, MustNot: []Node{exclude}}
}

// Not returns every live document not matching the node.
func Not(n Node) Node {
	return Boolean{Must: []Node{MatchAll{}}, MustNot: []Node{n}}
}

// Builder accumulates boolean clauses mutably, for assembling a query in
// steps before freezing it with Build.
type Builder struct {
	b Boolean
}

// NewBuilder returns an empty boolean builder.
func NewBuilder() *Builder { return &Builder{} }

// AddMust appends required clauses.
func (bl *Builder) AddMust(nodes ...Node) *Builder {
	bl.b.Must = append(bl.b.Must, nodes...)
	return bl
}

// AddShould appends optional clauses.
func (bl *Builder) AddShould(nodes ...Node) *Builder {
	bl.b.Should = append(bl.b.Should, nodes...)
	return bl
}

// AddMustNot appends excluded clauses.
func (bl *Builder) AddMustNot(nodes ...Node) *Builder {
	bl.b.MustNot = append(bl.b.MustNot, nodes...)
	return bl
}

// SetMinShould requires at least n optional clauses to match.
func (bl *Builder) SetMinShould(n int) *Builder {
	bl.b.MinShould = n
	return bl
}

// Build freezes the accumulated clauses into an immutable node.
func (bl *Builder) Build() Node {
	frozen := Boolean{
		Must:      append([]Node(nil), bl.b.Must...),
		Should:    append([]Node(nil), bl.b.Should...),
		MustNot:   append([]Node(nil), bl.b.MustNot...),
		MinShould: bl.b.MinShould,
	}
	return frozen
}

// Match analyses free text against a field descriptor and returns the
// natural query: one term, a phrase for several, MatchNone for none.
func Match(f *field.Field, text string) Node {
	inv, err := f.Invert(0, text)
	if err != nil || len(inv.Terms) == 0 {
		return MatchNone{}
	}
	// Recover token order from positions.
	byPos := make(map[int]string)
	max := -1
	for _, t := range inv.Terms {
		for _, pos := range t.Positions {
			byPos[pos] = t.Text
			if pos > max {
				max = pos
			}
		}
	}
	ordered := make([]string, 0, max+1)
	for pos := 0; pos <= max; pos++ {
		if term, ok := byPos[pos]; ok {
			ordered = append(ordered, term)
		}
	}
	if len(ordered) == 1 {
		return Term{Field: inv.Terms[0].Field, Text: inv.Terms[0].Text}
	}
	return Phrase{Field: f.Name, Terms: ordered}
}

// IntRange builds a range query over a numeric field's encoded terms.
func IntRange(f *field.Field, lo, hi int64) Node {
	name, start, stop := f.IntRange(lo, hi)
	return NewRange(name, start, stop)
}

// FloatRange builds a range query over a float field's encoded terms.
func FloatRange(f *field.Field, lo, hi float64) Node {
	name, start, stop := f.FloatRange(lo, hi)
	return NewRange(name, start, stop)
}

// DatePrefix matches every document whose value starts with the given
// datetime or nested component prefix, e.g. "1850" or "1850-03".
func DatePrefix(f *field.Field, value string) Node {
	name, term, err := f.PrefixOf(value)
	if err != nil {
		return MatchNone{}
	}
	return Term{Field: name, Text: term}
}

// DateRange matches component values in [start, stop], resolved at the
// deeper bound's depth.
func DateRange(f *field.Field, start, stop string) Node {
	name, lo, hi, err := f.RangeOf(start, stop)
	if err != nil {
		return MatchNone{}
	}
	return NewRange(name, lo, hi)
}

// Within matches point-field documents within distance meters of the
// coordinate, by tile cover at the field's precision.
func Within(f *field.Field, lng, lat, distance float64) Node {
	keys := f.WithinTiles(lng, lat, distance)
	if len(keys) == 0 {
		return MatchNone{}
	}
	return TermSet{Field: f.Name, Terms: keys}
}
