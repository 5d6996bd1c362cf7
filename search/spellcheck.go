package search

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchcore/analysis"
)

// SpellChecker suggests corrections and completions from one field's term
// dictionary, frozen at build time. Executors cache one per field and
// rebuild on generation change, since the dictionary only moves on refresh.
type SpellChecker struct {
	terms []string
	freqs map[string]int
}

// SpellChecker returns the checker for a field's dictionary, cached per
// snapshot generation.
func (e *Executor) SpellChecker(fieldName string) *SpellChecker {
	snap := e.searcher.Snapshot()
	defer snap.Release()

	e.spellMu.Lock()
	defer e.spellMu.Unlock()
	if e.spellGen != snap.Generation || snap.Realtime {
		e.spell = make(map[string]*SpellChecker)
		e.spellGen = snap.Generation
	}
	if sc, ok := e.spell[fieldName]; ok {
		return sc
	}
	sc := &SpellChecker{freqs: make(map[string]int)}
	snap.Terms(fieldName, "", func(term string, docFreq int) bool {
		sc.terms = append(sc.terms, term)
		sc.freqs[term] = docFreq
		return true
	})
	e.spell[fieldName] = sc
	return sc
}

// Complete returns up to count dictionary terms with the prefix, most
// frequent first, ties alphabetical.
func (sc *SpellChecker) Complete(prefix string, count int) []string {
	lo := sort.SearchStrings(sc.terms, prefix)
	var matched []string
	for i := lo; i < len(sc.terms) && strings.HasPrefix(sc.terms[i], prefix); i++ {
		matched = append(matched, sc.terms[i])
	}
	sort.SliceStable(matched, func(i, j int) bool {
		fi, fj := sc.freqs[matched[i]], sc.freqs[matched[j]]
		if fi != fj {
			return fi > fj
		}
		return matched[i] < matched[j]
	})
	if count > 0 && len(matched) > count {
		matched = matched[:count]
	}
	return matched
}

// Suggest returns up to count dictionary terms within rising edit distance
// of the word: distance-one candidates first, then distance two, each tier
// most frequent first. A word already in the dictionary suggests itself.
func (sc *SpellChecker) Suggest(word string, count int) []string {
	if sc.freqs[word] > 0 {
		return []string{word}
	}
	var out []string
	seen := make(map[string]bool)
	for _, maxEdits := range []int{1, 2} {
		var tier []string
		for _, term := range sc.terms {
			if seen[term] {
				continue
			}
			if abs(len(term)-len(word)) > maxEdits {
				continue
			}
			if analysis.EditDistanceAtMost(word, term, maxEdits) {
				tier = append(tier, term)
				seen[term] = true
			}
		}
		sort.SliceStable(tier, func(i, j int) bool {
			fi, fj := sc.freqs[tier[i]], sc.freqs[tier[j]]
			if fi != fj {
				return fi > fj
			}
			return tier[i] < tier[j]
		})
		out = append(out, tier...)
		if count > 0 && len(out) >= count {
			return out[:count]
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
