package resolver

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"productradar/internal/normalize"
)

// Similarity scores two normalised keys on a 0-100 scale as the better of the
// token-sort and token-set ratios.
func Similarity(a, b string) float64 {
	ta, tb := normalize.Tokens(a), normalize.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	sortScore := tokenSortRatio(ta, tb)
	setScore := tokenSetRatio(ta, tb)
	if setScore > sortScore {
		return setScore
	}
	return sortScore
}

// ratio is the normalised Levenshtein similarity of two strings, 0-100.
func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

func tokenSortRatio(ta, tb []string) float64 {
	return ratio(sortedJoin(ta), sortedJoin(tb))
}

func tokenSetRatio(ta, tb []string) float64 {
	setA, setB := toSet(ta), toSet(tb)
	var inter, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sect := sortedJoin(inter)
	combinedA := strings.TrimSpace(sect + " " + sortedJoin(onlyA))
	combinedB := strings.TrimSpace(sect + " " + sortedJoin(onlyB))

	best := ratio(combinedA, combinedB)
	if sect != "" {
		if r := ratio(sect, combinedA); r > best {
			best = r
		}
		if r := ratio(sect, combinedB); r > best {
			best = r
		}
	}
	return best
}

func toSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

func sortedJoin(tokens []string) string {
	cp := append([]string(nil), tokens...)
	sort.Strings(cp)
	return strings.Join(cp, " ")
}
