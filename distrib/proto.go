package distrib

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// RPC method names served by every partition.
const (
	MethodSearch = "Search.Query"
	MethodCount  = "Search.Count"
	MethodFacets = "Search.Facets"
	MethodHealth = "Health.Check"
)

// QuerySpec is the wire form of a query tree. Kind selects which of the
// remaining fields apply.
type QuerySpec struct {
	Kind     string      `json:"kind"`
	Field    string      `json:"field,omitempty"`
	Terms    []string    `json:"terms,omitempty"`
	Slop     int         `json:"slop,omitempty"`
	Ordered  bool        `json:"ordered,omitempty"`
	Lo       string      `json:"lo,omitempty"`
	Hi       string      `json:"hi,omitempty"`
	IncLo    bool        `json:"incLo,omitempty"`
	IncHi    bool        `json:"incHi,omitempty"`
	MaxEdits int         `json:"maxEdits,omitempty"`
	Clauses  []QuerySpec `json:"clauses,omitempty"`
	Must     []QuerySpec `json:"must,omitempty"`
	Should   []QuerySpec `json:"should,omitempty"`
	MustNot  []QuerySpec `json:"mustNot,omitempty"`
	MinMatch int         `json:"minMatch,omitempty"`
}

// SearchRequest asks a partition for its top hits.
type SearchRequest struct {
	Query QuerySpec `json:"query"`
	Limit int       `json:"limit"`
}

// HitPayload is one scored document with its stored fields resolved, so the
// coordinator can merge without a second round trip.
type HitPayload struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields,omitempty"`
}

// SearchResponse is a partition's slice of the result set.
type SearchResponse struct {
	Total int          `json:"total"`
	Hits  []HitPayload `json:"hits"`
}

// CountRequest asks a partition for its match count.
type CountRequest struct {
	Query QuerySpec `json:"query"`
}

// CountResponse carries one partition's count.
type CountResponse struct {
	Count int `json:"count"`
}

// FacetsRequest asks a partition for per-value counts over doc-values
// fields.
type FacetsRequest struct {
	Query  QuerySpec `json:"query"`
	Fields []string  `json:"fields"`
}

// FacetsResponse carries one partition's facet counts.
type FacetsResponse struct {
	Facets map[string][]search.FacetCount `json:"facets"`
}

// EncodeQuery converts a query tree to its wire form.
func EncodeQuery(q query.Node) (QuerySpec, error) {
	switch n := q.(type) {
	case query.MatchAll:
		return QuerySpec{Kind: "all"}, nil
	case query.MatchNone:
		return QuerySpec{Kind: "none"}, nil
	case query.Term:
		return QuerySpec{Kind: "term", Field: n.Field, Terms: []string{n.Text}}, nil
	case query.TermSet:
		return QuerySpec{Kind: "terms", Field: n.Field, Terms: n.Terms}, nil
	case query.Phrase:
		return QuerySpec{Kind: "phrase", Field: n.Field, Terms: n.Terms, Slop: n.Slop}, nil
	case query.Range:
		return QuerySpec{Kind: "range", Field: n.Field, Lo: n.Lo, Hi: n.Hi, IncLo: n.IncLo, IncHi: n.IncHi}, nil
	case query.Prefix:
		return QuerySpec{Kind: "prefix", Field: n.Field, Terms: []string{n.Text}}, nil
	case query.Wildcard:
		return QuerySpec{Kind: "wildcard", Field: n.Field, Terms: []string{n.Pattern}}, nil
	case query.Fuzzy:
		return QuerySpec{Kind: "fuzzy", Field: n.Field, Terms: []string{n.Text}, MaxEdits: n.MaxEdits}, nil
	case query.Boolean:
		spec := QuerySpec{Kind: "bool", MinMatch: n.MinShould}
		var err error
		if spec.Must, err = encodeClauses(n.Must); err != nil {
			return QuerySpec{}, err
		}
		if spec.Should, err = encodeClauses(n.Should); err != nil {
			return QuerySpec{}, err
		}
		if spec.MustNot, err = encodeClauses(n.MustNot); err != nil {
			return QuerySpec{}, err
		}
		return spec, nil
	case query.SpanNear:
		clauses, err := encodeClauses(n.Clauses)
		if err != nil {
			return QuerySpec{}, err
		}
		return QuerySpec{Kind: "near", Clauses: clauses, Slop: n.Slop, Ordered: n.Ordered}, nil
	case query.SpanOr:
		clauses, err := encodeClauses(n.Clauses)
		if err != nil {
			return QuerySpec{}, err
		}
		return QuerySpec{Kind: "spanOr", Clauses: clauses}, nil
	case query.SpanNot:
		clauses, err := encodeClauses([]query.Node{n.Include, n.Exclude})
		if err != nil {
			return QuerySpec{}, err
		}
		return QuerySpec{Kind: "spanNot", Clauses: clauses}, nil
	default:
		return QuerySpec{}, fmt.Errorf("query %T is not transportable", q)
	}
}

func encodeClauses(nodes []query.Node) ([]QuerySpec, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	specs := make([]QuerySpec, len(nodes))
	for i, n := range nodes {
		spec, err := EncodeQuery(n)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
	}
	return specs, nil
}

// DecodeQuery converts a wire spec back into a query tree.
func DecodeQuery(spec QuerySpec) (query.Node, error) {
	switch spec.Kind {
	case "all":
		return query.MatchAll{}, nil
	case "none":
		return query.MatchNone{}, nil
	case "term":
		if len(spec.Terms) != 1 {
			return nil, fmt.Errorf("term spec wants one term, got %d", len(spec.Terms))
		}
		return query.Term{Field: spec.Field, Text: spec.Terms[0]}, nil
	case "terms":
		return query.TermSet{Field: spec.Field, Terms: spec.Terms}, nil
	case "phrase":
		return query.Phrase{Field: spec.Field, Terms: spec.Terms, Slop: spec.Slop}, nil
	case "range":
		return query.Range{Field: spec.Field, Lo: spec.Lo, Hi: spec.Hi, IncLo: spec.IncLo, IncHi: spec.IncHi}, nil
	case "prefix":
		if len(spec.Terms) != 1 {
			return nil, fmt.Errorf("prefix spec wants one term, got %d", len(spec.Terms))
		}
		return query.Prefix{Field: spec.Field, Text: spec.Terms[0]}, nil
	case "wildcard":
		if len(spec.Terms) != 1 {
			return nil, fmt.Errorf("wildcard spec wants one pattern, got %d", len(spec.Terms))
		}
		return query.Wildcard{Field: spec.Field, Pattern: spec.Terms[0]}, nil
	case "fuzzy":
		if len(spec.Terms) != 1 {
			return nil, fmt.Errorf("fuzzy spec wants one term, got %d", len(spec.Terms))
		}
		return query.Fuzzy{Field: spec.Field, Text: spec.Terms[0], MaxEdits: spec.MaxEdits}, nil
	case "bool":
		var node query.Boolean
		var err error
		if node.Must, err = decodeClauses(spec.Must); err != nil {
			return nil, err
		}
		if node.Should, err = decodeClauses(spec.Should); err != nil {
			return nil, err
		}
		if node.MustNot, err = decodeClauses(spec.MustNot); err != nil {
			return nil, err
		}
		node.MinShould = spec.MinMatch
		return node, nil
	case "near":
		clauses, err := decodeClauses(spec.Clauses)
		if err != nil {
			return nil, err
		}
		return query.SpanNear{Clauses: clauses, Slop: spec.Slop, Ordered: spec.Ordered}, nil
	case "spanOr":
		clauses, err := decodeClauses(spec.Clauses)
		if err != nil {
			return nil, err
		}
		return query.SpanOr{Clauses: clauses}, nil
	case "spanNot":
		clauses, err := decodeClauses(spec.Clauses)
		if err != nil {
			return nil, err
		}
		if len(clauses) != 2 {
			return nil, fmt.Errorf("spanNot spec wants two clauses, got %d", len(clauses))
		}
		return query.SpanNot{Include: clauses[0], Exclude: clauses[1]}, nil
	default:
		return nil, fmt.Errorf("unknown query kind %q", spec.Kind)
	}
}

func decodeClauses(specs []QuerySpec) ([]query.Node, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	nodes := make([]query.Node, len(specs))
	for i, spec := range specs {
		node, err := DecodeQuery(spec)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}
