package query

import (
	"math"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/searchcore/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// Result is an evaluated query: matching global ordinals in ascending order
// with parallel scores.
type Result struct {
	Docs   []uint32
	Scores []float64
}

// Len returns the number of matching documents.
func (r *Result) Len() int { return len(r.Docs) }

// Bitmap returns the matches as a bitmap, dropping scores.
func (r *Result) Bitmap() *roaring.Bitmap {
	return roaring.BitmapOf(r.Docs...)
}

// Execute evaluates a query tree against a snapshot. Results are
// deterministic for a given snapshot: ordinal order in, stable scores out.
func Execute(snap *index.Snapshot, n Node) (*Result, error) {
	return n.eval(&evaluator{snap: snap})
}

// Matching evaluates a query to its document bitmap, for filters and
// facet intersection counts.
func Matching(snap *index.Snapshot, n Node) (*roaring.Bitmap, error) {
	res, err := Execute(snap, n)
	if err != nil {
		return nil, err
	}
	return res.Bitmap(), nil
}

type evaluator struct {
	snap *index.Snapshot
}

func (ev *evaluator) idf(fieldName, term string) float64 {
	df := ev.snap.DocFreq(fieldName, term)
	if df == 0 {
		return 0
	}
	n := ev.snap.LiveCount()
	return math.Log((float64(n)-float64(df))/(float64(df)+0.5) + 1)
}

// tfNorm is the BM25 term-frequency saturation with document length
// normalisation.
func (ev *evaluator) tfNorm(fieldName string, ord int, freq float64) float64 {
	avg := ev.snap.AvgLength(fieldName)
	if avg == 0 {
		return 0
	}
	ratio := float64(ev.snap.Norm(fieldName, ord)) / avg
	return (freq * (k1 + 1)) / (freq + k1*(1-b+b*ratio))
}

func (ev *evaluator) scoreTerm(fieldName, term string) (*Result, error) {
	p, err := ev.snap.Postings(fieldName, term)
	if err != nil {
		return nil, err
	}
	res := &Result{Docs: p.Docs, Scores: make([]float64, len(p.Docs))}
	idf := ev.idf(fieldName, term)
	for i, ord := range p.Docs {
		res.Scores[i] = idf * ev.tfNorm(fieldName, int(ord), float64(p.Freqs[i]))
	}
	return res, nil
}

func (ev *evaluator) matchAll() *Result {
	live := ev.snap.AllLive()
	res := &Result{Docs: live.ToArray(), Scores: make([]float64, int(live.GetCardinality()))}
	for i := range res.Scores {
		res.Scores[i] = 1
	}
	return res
}

// constant builds a constant-score result from sorted unique ordinals.
func constant(docs []uint32) *Result {
	res := &Result{Docs: docs, Scores: make([]float64, len(docs))}
	for i := range res.Scores {
		res.Scores[i] = 1
	}
	return res
}

func (MatchAll) eval(ev *evaluator) (*Result, error)  { return ev.matchAll(), nil }
func (MatchNone) eval(ev *evaluator) (*Result, error) { return &Result{}, nil }

func (t Term) eval(ev *evaluator) (*Result, error) {
	return ev.scoreTerm(t.Field, t.Text)
}

func (t TermSet) eval(ev *evaluator) (*Result, error) {
	acc := &Result{}
	for _, term := range t.Terms {
		r, err := ev.scoreTerm(t.Field, term)
		if err != nil {
			return nil, err
		}
		acc = union(acc, r)
	}
	return acc, nil
}

func (bq Boolean) eval(ev *evaluator) (*Result, error) {
	var acc *Result
	for _, n := range bq.Must {
		r, err := n.eval(ev)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = r
		} else {
			acc = intersect(acc, r)
		}
	}

	if len(bq.Should) > 0 {
		min := bq.MinShould
		if min <= 0 {
			if len(bq.Must) == 0 {
				min = 1
			}
		}
		shoulds := make([]*Result, 0, len(bq.Should))
		for _, n := range bq.Should {
			r, err := n.eval(ev)
			if err != nil {
				return nil, err
			}
			shoulds = append(shoulds, r)
		}
		opt := unionMin(shoulds, min)
		if acc == nil {
			acc = opt
		} else if min > 0 {
			acc = intersect(acc, opt)
		} else {
			// Pure score boost: keep the Must doc set, add Should scores.
			acc = boost(acc, opt)
		}
	}
	if acc == nil {
		acc = ev.matchAll()
	}

	for _, n := range bq.MustNot {
		r, err := n.eval(ev)
		if err != nil {
			return nil, err
		}
		acc = exclude(acc, r)
	}
	return acc, nil
}

func (r Range) eval(ev *evaluator) (*Result, error) {
	docs := roaring.New()
	var firstErr error
	ev.snap.Terms(r.Field, r.Lo, func(term string, _ int) bool {
		if r.Hi != "" && (term > r.Hi || (!r.IncHi && term == r.Hi)) {
			return false
		}
		if !r.IncLo && term == r.Lo {
			return true
		}
		p, err := ev.snap.Postings(r.Field, term)
		if err != nil {
			firstErr = err
			return false
		}
		docs.AddMany(p.Docs)
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return constant(docs.ToArray()), nil
}

func (p Prefix) eval(ev *evaluator) (*Result, error) {
	return ev.scanTerms(p.Field, p.Text, func(string) bool { return true })
}

func (w Wildcard) eval(ev *evaluator) (*Result, error) {
	return ev.scanTerms(w.Field, literalPrefix(w.Pattern), func(term string) bool {
		return matchWildcard(w.Pattern, term)
	})
}

func (f Fuzzy) eval(ev *evaluator) (*Result, error) {
	maxEdits := f.MaxEdits
	if maxEdits <= 0 {
		maxEdits = 2
	}
	return ev.scanTerms(f.Field, "", func(term string) bool {
		return analysis.EditDistanceAtMost(f.Text, term, maxEdits)
	})
}

// scanTerms unions postings of every dictionary term that shares the prefix
// and is accepted by match. An empty prefix scans the whole field.
func (ev *evaluator) scanTerms(fieldName, prefix string, match func(string) bool) (*Result, error) {
	docs := roaring.New()
	var firstErr error
	ev.snap.Terms(fieldName, prefix, func(term string, _ int) bool {
		if prefix != "" && (len(term) < len(prefix) || term[:len(prefix)] != prefix) {
			return false
		}
		if !match(term) {
			return true
		}
		p, err := ev.snap.Postings(fieldName, term)
		if err != nil {
			firstErr = err
			return false
		}
		docs.AddMany(p.Docs)
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return constant(docs.ToArray()), nil
}

// intersect keeps documents in both results, summing scores.
func intersect(a, fb *Result) *Result {
	out := &Result{}
	i, j := 0, 0
	for i < len(a.Docs) && j < len(fb.Docs) {
		switch {
		case a.Docs[i] < fb.Docs[j]:
			i++
		case a.Docs[i] > fb.Docs[j]:
			j++
		default:
			out.Docs = append(out.Docs, a.Docs[i])
			out.Scores = append(out.Scores, a.Scores[i]+fb.Scores[j])
			i++
			j++
		}
	}
	return out
}

// union keeps documents in either result, summing scores of shared ones.
func union(a, fb *Result) *Result {
	out := &Result{Docs: make([]uint32, 0, len(a.Docs)+len(fb.Docs))}
	i, j := 0, 0
	for i < len(a.Docs) || j < len(fb.Docs) {
		switch {
		case j >= len(fb.Docs) || (i < len(a.Docs) && a.Docs[i] < fb.Docs[j]):
			out.Docs = append(out.Docs, a.Docs[i])
			out.Scores = append(out.Scores, a.Scores[i])
			i++
		case i >= len(a.Docs) || fb.Docs[j] < a.Docs[i]:
			out.Docs = append(out.Docs, fb.Docs[j])
			out.Scores = append(out.Scores, fb.Scores[j])
			j++
		default:
			out.Docs = append(out.Docs, a.Docs[i])
			out.Scores = append(out.Scores, a.Scores[i]+fb.Scores[j])
			i++
			j++
		}
	}
	return out
}

// unionMin keeps documents matching at least min of the results.
func unionMin(results []*Result, min int) *Result {
	if min <= 1 {
		acc := &Result{}
		for _, r := range results {
			acc = union(acc, r)
		}
		return acc
	}
	type hit struct {
		score float64
		count int
	}
	hits := make(map[uint32]*hit)
	for _, r := range results {
		for i, ord := range r.Docs {
			h, ok := hits[ord]
			if !ok {
				h = &hit{}
				hits[ord] = h
			}
			h.score += r.Scores[i]
			h.count++
		}
	}
	docs := roaring.New()
	for ord, h := range hits {
		if h.count >= min {
			docs.Add(ord)
		}
	}
	out := &Result{Docs: docs.ToArray()}
	out.Scores = make([]float64, len(out.Docs))
	for i, ord := range out.Docs {
		out.Scores[i] = hits[ord].score
	}
	return out
}

// exclude removes documents present in fb.
func exclude(a, fb *Result) *Result {
	out := &Result{}
	j := 0
	for i, ord := range a.Docs {
		for j < len(fb.Docs) && fb.Docs[j] < ord {
			j++
		}
		if j < len(fb.Docs) && fb.Docs[j] == ord {
			continue
		}
		out.Docs = append(out.Docs, ord)
		out.Scores = append(out.Scores, a.Scores[i])
	}
	return out
}

// boost keeps a's doc set and adds fb's scores where docs overlap.
func boost(a, fb *Result) *Result {
	out := &Result{Docs: a.Docs, Scores: append([]float64(nil), a.Scores...)}
	j := 0
	for i, ord := range a.Docs {
		for j < len(fb.Docs) && fb.Docs[j] < ord {
			j++
		}
		if j < len(fb.Docs) && fb.Docs[j] == ord {
			out.Scores[i] += fb.Scores[j]
		}
	}
	return out
}
