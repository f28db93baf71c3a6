// Package matching scores normalized names and finds the best fuzzy
// candidate for a tenant's entity pool.
package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// TokenSortRatio returns a 0-100 similarity between two normalized names.
// Tokens are sorted before comparison so word order does not matter:
// "smith jon" scores 100 against "jon smith".
func TokenSortRatio(a, b string) float64 {
	a = tokenSort(a)
	b = tokenSort(b)

	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	dist := levenshtein.ComputeDistance(a, b)
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if dist >= maxLen {
		return 0
	}

	return 100 * float64(maxLen-dist) / float64(maxLen)
}

func tokenSort(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
