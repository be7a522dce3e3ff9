package knowledge

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, strips diacritics and punctuation, and collapses
// whitespace. Both indexed terms and queries pass through here so comparison
// is accent- and case-insensitive.
func Normalize(s string) string {
	s = strings.ToLower(s)
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from decomposition, drop it
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokens(s string) []string {
	return strings.Fields(s)
}

// ratio is 1 - normalizedEditDistance over rune length.
func ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(max)
}

// tokenScore compares token sets: each token of the shorter side is matched
// against its best counterpart and the scores averaged. Capped below 1 so a
// partial token match never beats a whole-string match.
func tokenScore(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	sum := 0.0
	for _, x := range ta {
		best := 0.0
		for _, y := range tb {
			if r := ratio(x, y); r > best {
				best = r
			}
		}
		sum += best
	}
	score := sum / float64(len(ta))
	if score > 0.95 {
		score = 0.95
	}
	return score
}

// Similarity scores how well a normalized query matches a normalized term.
// Single-token typos score through the whole-string ratio ("ceveja" vs
// "cerveja" is ~0.857), containment gives a floor of 0.8, and token overlap
// covers word-order and partial-name matches.
func Similarity(query, term string) float64 {
	if query == "" || term == "" {
		return 0
	}
	if query == term {
		return 1.0
	}
	best := ratio(query, term)
	if strings.Contains(term, query) || strings.Contains(query, term) {
		if best < 0.8 {
			best = 0.8
		}
	}
	if ts := tokenScore(query, term); ts > best {
		best = ts
	}
	return best
}
