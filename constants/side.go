package constants

import (
	"strings"
	"unicode"
)

// CanonicalSide maps the ways a model tends to write a vinyl side ("a",
// "Side B", "B-side", "side c") to a single capital letter. The second result
// is false when no letter could be recovered.
func CanonicalSide(input string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return "", false
	}

	for _, affix := range []string{"SIDE ", "SIDE-", "SIDE"} {
		s = strings.TrimPrefix(s, affix)
	}
	for _, affix := range []string{" SIDE", "-SIDE", "SIDE"} {
		s = strings.TrimSuffix(s, affix)
	}
	s = strings.TrimSpace(s)

	if len(s) == 1 && unicode.IsUpper(rune(s[0])) && s[0] <= 'Z' {
		return s, true
	}
	return strings.ToUpper(strings.TrimSpace(input)), false
}
