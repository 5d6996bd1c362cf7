package query

import (
	"fmt"
	"sort"
	"strings"
)

// span is a token position window [Start, End) within one document's field.
type span struct {
	start, end int
}

// spanner is a node that can enumerate position windows, the building block
// for phrase and proximity queries.
type spanner interface {
	Node
	spans(ev *evaluator) (field string, perDoc map[uint32][]span, weight float64, err error)
}

// scoreSpans turns per-document span counts into a result, scoring span
// frequency with the same saturation as term frequency and the summed
// clause weight in place of a single-term idf.
func scoreSpans(ev *evaluator, fieldName string, perDoc map[uint32][]span, weight float64) *Result {
	docs := make([]uint32, 0, len(perDoc))
	for ord := range perDoc {
		docs = append(docs, ord)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i] < docs[j] })
	res := &Result{Docs: docs, Scores: make([]float64, len(docs))}
	for i, ord := range docs {
		res.Scores[i] = weight * ev.tfNorm(fieldName, int(ord), float64(len(perDoc[ord])))
	}
	return res
}

func (t Term) spans(ev *evaluator) (string, map[uint32][]span, float64, error) {
	p, err := ev.snap.Postings(t.Field, t.Text)
	if err != nil {
		return "", nil, 0, err
	}
	perDoc := make(map[uint32][]span, len(p.Docs))
	for i, ord := range p.Docs {
		if i >= len(p.Positions) {
			break
		}
		spans := make([]span, len(p.Positions[i]))
		for j, pos := range p.Positions[i] {
			spans[j] = span{start: int(pos), end: int(pos) + 1}
		}
		perDoc[ord] = spans
	}
	return t.Field, perDoc, ev.idf(t.Field, t.Text), nil
}

func (p Phrase) eval(ev *evaluator) (*Result, error) {
	fieldName, perDoc, weight, err := p.spans(ev)
	if err != nil {
		return nil, err
	}
	return scoreSpans(ev, fieldName, perDoc, weight), nil
}

func (p Phrase) spans(ev *evaluator) (string, map[uint32][]span, float64, error) {
	if len(p.Terms) == 0 {
		return p.Field, nil, 0, nil
	}
	clauses := make([]spanner, len(p.Terms))
	for i, term := range p.Terms {
		clauses[i] = Term{Field: p.Field, Text: term}
	}
	perDoc, weight, err := nearSpans(ev, clauses, p.Slop, true)
	return p.Field, perDoc, weight, err
}

// SpanNear matches documents where all clauses occur within Slop filler
// positions, in clause order when Ordered.
type SpanNear struct {
	Clauses []Node
	Slop    int
	Ordered bool
}

func (s SpanNear) String() string {
	parts := make([]string, len(s.Clauses))
	for i, c := range s.Clauses {
		parts[i] = c.String()
	}
	kind := "near"
	if s.Ordered {
		kind = "onear"
	}
	return fmt.Sprintf("%s(%s)~%d", kind, strings.Join(parts, " "), s.Slop)
}

func (s SpanNear) eval(ev *evaluator) (*Result, error) {
	fieldName, perDoc, weight, err := s.spans(ev)
	if err != nil {
		return nil, err
	}
	return scoreSpans(ev, fieldName, perDoc, weight), nil
}

func (s SpanNear) spans(ev *evaluator) (string, map[uint32][]span, float64, error) {
	clauses, fieldName, err := asSpanners(s.Clauses)
	if err != nil {
		return "", nil, 0, err
	}
	perDoc, weight, err := nearSpans(ev, clauses, s.Slop, s.Ordered)
	return fieldName, perDoc, weight, err
}

// SpanOr matches spans of any clause.
type SpanOr struct {
	Clauses []Node
}

func (s SpanOr) String() string {
	parts := make([]string, len(s.Clauses))
	for i, c := range s.Clauses {
		parts[i] = c.String()
	}
	return "or(" + strings.Join(parts, " ") + ")"
}

func (s SpanOr) eval(ev *evaluator) (*Result, error) {
	fieldName, perDoc, weight, err := s.spans(ev)
	if err != nil {
		return nil, err
	}
	return scoreSpans(ev, fieldName, perDoc, weight), nil
}

func (s SpanOr) spans(ev *evaluator) (string, map[uint32][]span, float64, error) {
	clauses, fieldName, err := asSpanners(s.Clauses)
	if err != nil {
		return "", nil, 0, err
	}
	merged := make(map[uint32][]span)
	var weight float64
	for _, c := range clauses {
		_, perDoc, w, err := c.spans(ev)
		if err != nil {
			return "", nil, 0, err
		}
		weight += w
		for ord, spans := range perDoc {
			merged[ord] = append(merged[ord], spans...)
		}
	}
	for ord := range merged {
		spans := merged[ord]
		sort.Slice(spans, func(i, j int) bool {
			if spans[i].start != spans[j].start {
				return spans[i].start < spans[j].start
			}
			return spans[i].end < spans[j].end
		})
		merged[ord] = spans
	}
	return fieldName, merged, weight, nil
}

// SpanNot matches Include spans that do not overlap any Exclude span.
type SpanNot struct {
	Include Node
	Exclude Node
}

func (s SpanNot) String() string {
	return "not(" + s.Include.String() + " " + s.Exclude.String() + ")"
}

func (s SpanNot) eval(ev *evaluator) (*Result, error) {
	fieldName, perDoc, weight, err := s.spans(ev)
	if err != nil {
		return nil, err
	}
	return scoreSpans(ev, fieldName, perDoc, weight), nil
}

func (s SpanNot) spans(ev *evaluator) (string, map[uint32][]span, float64, error) {
	clauses, fieldName, err := asSpanners([]Node{s.Include, s.Exclude})
	if err != nil {
		return "", nil, 0, err
	}
	_, include, weight, err := clauses[0].spans(ev)
	if err != nil {
		return "", nil, 0, err
	}
	_, excl, _, err := clauses[1].spans(ev)
	if err != nil {
		return "", nil, 0, err
	}
	kept := make(map[uint32][]span)
	for ord, spans := range include {
		bad := excl[ord]
		for _, sp := range spans {
			overlaps := false
			for _, x := range bad {
				if sp.start < x.end && x.start < sp.end {
					overlaps = true
					break
				}
			}
			if !overlaps {
				kept[ord] = append(kept[ord], sp)
			}
		}
	}
	return fieldName, kept, weight, nil
}

func asSpanners(nodes []Node) ([]spanner, string, error) {
	clauses := make([]spanner, len(nodes))
	fieldName := ""
	for i, n := range nodes {
		sp, ok := n.(spanner)
		if !ok {
			return nil, "", fmt.Errorf("query: %s cannot produce position spans", n)
		}
		clauses[i] = sp
		f := spannerField(sp)
		if fieldName == "" {
			fieldName = f
		} else if f != "" && f != fieldName {
			return nil, "", fmt.Errorf("query: span clauses mix fields %s and %s", fieldName, f)
		}
	}
	return clauses, fieldName, nil
}

func spannerField(sp spanner) string {
	switch v := sp.(type) {
	case Term:
		return v.Field
	case Phrase:
		return v.Field
	case SpanNear:
		if len(v.Clauses) > 0 {
			if inner, ok := v.Clauses[0].(spanner); ok {
				return spannerField(inner)
			}
		}
	case SpanOr:
		if len(v.Clauses) > 0 {
			if inner, ok := v.Clauses[0].(spanner); ok {
				return spannerField(inner)
			}
		}
	case SpanNot:
		if inner, ok := v.Include.(spanner); ok {
			return spannerField(inner)
		}
	}
	return ""
}

// nearSpans finds windows covering one span from each clause with at most
// slop filler positions between the first span's start and the last span's
// end, honoring clause order when ordered.
func nearSpans(ev *evaluator, clauses []spanner, slop int, ordered bool) (map[uint32][]span, float64, error) {
	if len(clauses) == 0 {
		return nil, 0, nil
	}
	perClause := make([]map[uint32][]span, len(clauses))
	var weight float64
	for i, c := range clauses {
		_, perDoc, w, err := c.spans(ev)
		if err != nil {
			return nil, 0, err
		}
		perClause[i] = perDoc
		weight += w
	}

	out := make(map[uint32][]span)
	for ord, first := range perClause[0] {
		candidate := true
		for _, pc := range perClause[1:] {
			if len(pc[ord]) == 0 {
				candidate = false
				break
			}
		}
		if !candidate {
			continue
		}
		// Try each occurrence of the first clause as a window anchor.
		for _, anchor := range first {
			if sp, ok := completeWindow(perClause[1:], ord, anchor, slop+windowLen(clauses), ordered); ok {
				out[ord] = append(out[ord], sp)
			}
		}
		if spans := out[ord]; spans != nil {
			sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
			out[ord] = dedupeSpans(spans)
		}
	}
	return out, weight, nil
}

// windowLen is the minimum token footprint of the clause sequence.
func windowLen(clauses []spanner) int {
	n := 0
	for _, c := range clauses {
		if p, ok := c.(Phrase); ok {
			n += len(p.Terms)
		} else {
			n++
		}
	}
	return n
}

// completeWindow greedily extends an anchor span with the nearest usable
// span of each remaining clause, then checks the window bound.
func completeWindow(rest []map[uint32][]span, ord uint32, anchor span, window int, ordered bool) (span, bool) {
	current := anchor
	for _, pc := range rest {
		found := false
		for _, sp := range pc[ord] {
			if ordered && sp.start < current.end {
				continue
			}
			if !ordered && sp.end <= anchor.start-window {
				continue
			}
			if sp.start >= anchor.start+window {
				break
			}
			if sp.start < current.start {
				current.start = sp.start
			}
			if sp.end > current.end {
				current.end = sp.end
			}
			found = true
			break
		}
		if !found {
			return span{}, false
		}
	}
	if current.end-current.start > window {
		return span{}, false
	}
	return current, true
}

func dedupeSpans(spans []span) []span {
	out := spans[:0]
	for i, sp := range spans {
		if i > 0 && sp == out[len(out)-1] {
			continue
		}
		out = append(out, sp)
	}
	return out
}
