// Package similarity scores how alike two short labels are.
package similarity

import (
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

var bigramDice = &metrics.SorensenDice{CaseSensitive: true, NgramSize: 2}

// Normalize lowercases s and keeps only letters and digits, so that
// "Ohm's Law" and "ohms law" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Dice returns the Sørensen-Dice coefficient of the character bigrams of the
// normalized inputs, in [0, 1].
func Dice(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return strutil.Similarity(a, b, bigramDice)
}

// BestMatch returns the candidate most similar to target. Earlier candidates
// win ties. ok is false when candidates is empty.
func BestMatch(target string, candidates []string) (best string, score float64, ok bool) {
	score = -1
	for _, c := range candidates {
		if s := Dice(target, c); s > score {
			best, score, ok = c, s, true
		}
	}
	if !ok {
		return "", 0, false
	}
	return best, score, true
}
