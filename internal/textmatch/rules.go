package textmatch

import (
	"regexp"
	"sort"
)

// Rule pairs a pattern with the handler that turns its submatches into a
// value. Handle may reject a match by returning false.
type Rule[T any] struct {
	Name    string
	Pattern *regexp.Regexp
	Handle  func(m []string) (T, bool)
}

// First evaluates rules in order against text and returns the value of the
// first accepted match together with the rule name.
func First[T any](rules []Rule[T], text string) (T, string, bool) {
	var zero T
	for _, r := range rules {
		for _, m := range r.Pattern.FindAllStringSubmatch(text, -1) {
			if v, ok := r.Handle(m); ok {
				return v, r.Name, true
			}
		}
	}
	return zero, "", false
}

type Keyword[T any] struct {
	Phrase string
	Value  T
}

// KeywordTable matches whole-word phrases, longest phrase first.
type KeywordTable[T any] struct {
	entries []Keyword[T]
}

// NewKeywordTable folds every phrase and orders entries by descending
// phrase length; ties keep their declaration order.
func NewKeywordTable[T any](entries []Keyword[T]) KeywordTable[T] {
	out := make([]Keyword[T], 0, len(entries))
	for _, e := range entries {
		if p := Fold(e.Phrase); p != "" {
			out = append(out, Keyword[T]{Phrase: p, Value: e.Value})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Phrase) > len(out[j].Phrase) })
	return KeywordTable[T]{entries: out}
}

// Longest returns the value of the longest phrase found in folded text.
func (t KeywordTable[T]) Longest(text string) (Keyword[T], bool) {
	for _, e := range t.entries {
		if ContainsWord(text, e.Phrase) {
			return e, true
		}
	}
	return Keyword[T]{}, false
}

// All returns every phrase hit, longest first. Text covered by a longer
// hit is masked so its substrings do not match again.
func (t KeywordTable[T]) All(text string) []Keyword[T] {
	var out []Keyword[T]
	masked := []byte(text)
	for _, e := range t.entries {
		i := IndexWord(string(masked), e.Phrase)
		if i < 0 {
			continue
		}
		out = append(out, e)
		for k := i; k < i+len(e.Phrase); k++ {
			masked[k] = '#'
		}
	}
	return out
}

func (t KeywordTable[T]) Len() int { return len(t.entries) }
