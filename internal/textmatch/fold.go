// Package textmatch holds the small matching toolkit shared by the intent
// parser, the fact extractor and the zone resolver.
package textmatch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Fold lower-cases s, strips diacritics (NFKD, so "m²" becomes "m2") and
// collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(out), " "))
}

var (
	groupedDot   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d+)?$`)
	groupedComma = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// ParseAmount reads a number written the Chilean way: dots group
// thousands, a comma separates decimals. "12,000" is read as grouped.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, false
	case groupedDot.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case groupedComma.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Words splits folded text into alphanumeric tokens.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsWord reports whether phrase occurs in text on word boundaries.
// Both arguments are expected folded.
func ContainsWord(text, phrase string) bool {
	return IndexWord(text, phrase) >= 0
}

// IndexWord is like strings.Index but only accepts hits on word boundaries.
func IndexWord(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	from := 0
	for {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(phrase)
		if boundary(text, i-1) && boundary(text, end) {
			return i
		}
		from = i + 1
		if from >= len(text) {
			return -1
		}
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80)
}
