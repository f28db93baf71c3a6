package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{name: "identical", a: "jon smith", b: "jon smith", expected: 100},
		{name: "word order ignored", a: "smith jon", b: "jon smith", expected: 100},
		{name: "three word reorder", a: "de la cruz maria", b: "maria de la cruz", expected: 100},
		{name: "both empty", a: "", b: "", expected: 100},
		{name: "one empty", a: "jon smith", b: "", expected: 0},
		{name: "nothing in common", a: "abc", b: "xyz", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TokenSortRatio(tt.a, tt.b))
		})
	}
}

// Three substitutions over twenty runes is exactly 85; four over twenty-five
// is exactly 84. These pin the score to the 0-100 scale the thresholds use.
func TestTokenSortRatioBoundaries(t *testing.T) {
	score85 := TokenSortRatio("abcdefghijklmnopqrst", "abcdezghijklmnozqrsz")
	assert.Equal(t, 85.0, score85)

	score84 := TokenSortRatio("abcdefghijklmnopqrstuvwxy", "abcdzfghijzlmnopzrstuvzxy")
	assert.Equal(t, 84.0, score84)
}

func TestTokenSortRatioSymmetry(t *testing.T) {
	a, b := "jonathan smith", "jon smith"
	assert.Equal(t, TokenSortRatio(a, b), TokenSortRatio(b, a))
}
