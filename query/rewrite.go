package query

// literalPrefix returns the pattern's leading run of literal characters,
// used to bound the dictionary scan.
func literalPrefix(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' || pattern[i] == '?' {
			return pattern[:i]
		}
	}
	return pattern
}

// matchWildcard reports whether term matches the pattern, where `*` matches
// any run and `?` any single character. Iterative with backtracking on the
// last star, linear in practice.
func matchWildcard(pattern, term string) bool {
	p, t := 0, 0
	star, mark := -1, 0
	for t < len(term) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == term[t]):
			p++
			t++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = t
			p++
		case star >= 0:
			p = star + 1
			mark++
			t = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
