package examgen

import (
	"sort"
	"strings"
	"unicode"
)

// similarityRatio computes a case-insensitive alignment ratio in [0,1]
// between two texts: 2*LCS/(len(a)+len(b)). 1 means identical, 0 means no
// common subsequence.
func similarityRatio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(ra, rb)) / float64(len(ra)+len(rb))
}

// lcsLength is the longest-common-subsequence length, computed with a
// two-row DP to keep memory linear in the shorter input.
func lcsLength(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// extractDomainTerms pulls candidate domain terms out of text: words longer
// than 4 characters that are capitalized or all-caps. Original casing is
// preserved; callers normalize as needed.
func extractDomainTerms(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var terms []string
	for _, w := range words {
		if len([]rune(w)) <= 4 {
			continue
		}
		if isAllCaps(w) || isCapitalized(w) {
			terms = append(terms, w)
		}
	}
	return terms
}

func isAllCaps(w string) bool {
	sawLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			sawLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return sawLetter
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// termSet returns the lowercased domain-term set of a text, for overlap
// comparison.
func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range extractDomainTerms(text) {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}

// jaccard computes the Jaccard overlap of two sets. Two empty sets overlap
// completely in no terms; treated as 0 so empty questions never count as
// duplicates by term overlap.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// topDomainTerms counts domain-term frequency across the given question texts
// and returns up to limit terms, most frequent first. Frequency ties resolve
// alphabetically so the ordering is stable.
func topDomainTerms(texts []string, limit int) []string {
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, text := range texts {
		for _, t := range extractDomainTerms(text) {
			key := strings.ToLower(t)
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = t
			}
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if limit > len(keys) {
		limit = len(keys)
	}
	terms := make([]string, 0, limit)
	for _, k := range keys[:limit] {
		terms = append(terms, display[k])
	}
	return terms
}
