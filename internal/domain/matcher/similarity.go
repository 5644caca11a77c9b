package matcher

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// transferKeywords mark a description as a transfer leg. Two sides of one
// transfer rarely share wording ("Online Transfer" vs "e-Transfer received")
// but both usually carry one of these.
var transferKeywords = map[string]bool{
	"transfer":  true,
	"xfer":      true,
	"tfr":       true,
	"trf":       true,
	"etransfer": true,
	"interac":   true,
	"payment":   true,
}

// Tokenize lowercases s and splits it on anything that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DescriptionSimilarity returns a value in [0,1]. It is 1 when both
// descriptions look like transfer legs, otherwise the mean of the token-set
// Jaccard index and the normalised edit similarity of the sorted token strings.
func DescriptionSimilarity(a, b string) float64 {
	ta := uniqueTokens(Tokenize(a))
	tb := uniqueTokens(Tokenize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if hasTransferKeyword(ta) && hasTransferKeyword(tb) {
		return 1
	}

	return (jaccard(ta, tb) + editSimilarity(ta, tb)) / 2
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func hasTransferKeyword(tokens []string) bool {
	for _, t := range tokens {
		if transferKeywords[t] {
			return true
		}
	}
	return false
}

func jaccard(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	shared := 0
	for _, t := range b {
		if set[t] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func editSimilarity(a, b []string) float64 {
	sa := strings.Join(a, " ")
	sb := strings.Join(b, " ")
	longest := utf8.RuneCountInString(sa)
	if n := utf8.RuneCountInString(sb); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(sa, sb)
	return 1 - float64(dist)/float64(longest)
}
