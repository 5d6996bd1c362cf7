package segment

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Merge combines segments into one Data payload, dropping deleted documents
// and renumbering the survivors. Input order defines output ordinal order,
// so relative document age is preserved across merges.
func Merge(readers []*Reader, deletes []*roaring.Bitmap) (*Data, error) {
	if len(readers) != len(deletes) {
		return nil, errors.Newf("segment.merge", "", errors.ErrInvalidValue,
			"%d readers, %d deletion bitmaps", len(readers), len(deletes))
	}

	// Old ordinal -> new ordinal per input; -1 for tombstones.
	remaps := make([][]int, len(readers))
	newCount := 0
	for i, r := range readers {
		remap := make([]int, r.DocCount())
		for ord := 0; ord < r.DocCount(); ord++ {
			if deletes[i] != nil && deletes[i].Contains(uint32(ord)) {
				remap[ord] = -1
				continue
			}
			remap[ord] = newCount
			newCount++
		}
		remaps[i] = remap
	}

	out := &Data{
		DocCount:  newCount,
		Stored:    make([]map[string]any, newCount),
		DocValues: make(map[string][][]string),
		Norms:     make(map[string][]int),
		SumLength: make(map[string]int64),
	}

	type key struct{ field, term string }
	keys := make(map[key]struct{})
	for _, r := range readers {
		for _, e := range r.meta.Dict {
			keys[key{e.Field, e.Term}] = struct{}{}
		}
	}
	sorted := make([]key, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].field != sorted[j].field {
			return sorted[i].field < sorted[j].field
		}
		return sorted[i].term < sorted[j].term
	})

	for _, k := range sorted {
		var merged Postings
		for i, r := range readers {
			p, err := r.Postings(k.field, k.term)
			if err != nil {
				return nil, err
			}
			for j, old := range p.Docs {
				newOrd := remaps[i][old]
				if newOrd < 0 {
					continue
				}
				merged.Docs = append(merged.Docs, uint32(newOrd))
				merged.Freqs = append(merged.Freqs, p.Freqs[j])
				if p.Positions != nil {
					merged.Positions = append(merged.Positions, p.Positions[j])
				}
			}
		}
		if len(merged.Docs) == 0 {
			continue
		}
		out.Terms = append(out.Terms, TermPostings{Field: k.field, Term: k.term, Postings: merged})
	}

	for i, r := range readers {
		for ord, newOrd := range remaps[i] {
			if newOrd < 0 {
				continue
			}
			stored, err := r.StoredDoc(ord)
			if err != nil {
				return nil, err
			}
			out.Stored[newOrd] = stored
		}
		for field, col := range r.meta.DocValues {
			dst := out.DocValues[field]
			if dst == nil {
				dst = make([][]string, newCount)
				out.DocValues[field] = dst
			}
			for ord, values := range col {
				if newOrd := remaps[i][ord]; newOrd >= 0 {
					dst[newOrd] = values
				}
			}
		}
		for field, col := range r.meta.Norms {
			dst := out.Norms[field]
			if dst == nil {
				dst = make([]int, newCount)
				out.Norms[field] = dst
			}
			for ord, n := range col {
				if newOrd := remaps[i][ord]; newOrd >= 0 {
					dst[newOrd] = n
					out.SumLength[field] += int64(n)
				}
			}
		}
	}
	return out, nil
}
