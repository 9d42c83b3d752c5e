// Package zones resolves a fuzzy zone qualifier ("sector alto") into named
// sectors, combining context search results with a table of known zones.
package zones

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"propsearch/internal/domain"
	"propsearch/internal/tables"
	"propsearch/internal/textmatch"
)

const (
	window   = 120
	maxWords = 4
	minLen   = 3
	maxLen   = 40
)

const properNoun = `(\p{Lu}[\p{L}']+(?:\s+(?:(?:de|del|la|las|los|el)\s+)?\p{Lu}[\p{L}']+){0,3})`

type pattern struct {
	re *regexp.Regexp
	// keepPrefix keeps the matched keyword when it is capitalised, so
	// "Barrio Inglés" stays whole while "el barrio Inglés" yields "Inglés".
	keepPrefix bool
	prefix     string
}

var patterns = []pattern{
	{re: regexp.MustCompile(`(?i:\b(sector|barrio|villa|condominio|poblaci[oó]n))\s+` + properNoun), keepPrefix: true},
	{re: regexp.MustCompile(`\b(Avenida|Av\.|avenida)\s+` + properNoun), prefix: "Avenida"},
	{re: regexp.MustCompile(`(?i:\b(vivir en|viven en|vive en|residir en))\s+` + properNoun)},
}

// Sector is a candidate sector seen in context text with its premium vote:
// positive leans premium, negative leans non-premium.
type Sector struct {
	Name string
	Vote int
}

type Resolver struct {
	known      []tables.KnownZone
	stop       map[string]bool
	premium    []string
	nonPremium []string
}

func New(t *tables.Tables) *Resolver {
	r := &Resolver{known: t.KnownZones, stop: make(map[string]bool, len(t.ZoneStopwords))}
	for _, w := range t.ZoneStopwords {
		r.stop[textmatch.Fold(w)] = true
	}
	for _, w := range t.PremiumIndicators {
		r.premium = append(r.premium, textmatch.Fold(w))
	}
	for _, w := range t.NonPremiumIndicators {
		r.nonPremium = append(r.nonPremium, textmatch.Fold(w))
	}
	return r
}

// Resolve builds the zone set for the intent's location and qualifier.
func (r *Resolver) Resolve(in domain.SearchIntent, context []domain.RawResult) domain.ResolvedZoneSet {
	loc := in.LocationName()
	premium := in.PremiumZone()

	var ctxMatch, ctxExcl []string
	votes := map[string]*Sector{}
	var order []string
	for _, res := range context {
		for _, s := range r.ExtractSectors(res.Title+". "+res.Snippet, loc) {
			k := textmatch.Fold(s.Name)
			if v, ok := votes[k]; ok {
				v.Vote += s.Vote
				continue
			}
			sc := s
			votes[k] = &sc
			order = append(order, k)
		}
	}
	for _, k := range order {
		s := votes[k]
		// Ties and non-premium qualifiers get the benefit of the doubt.
		if premium && s.Vote < 0 {
			ctxExcl = append(ctxExcl, s.Name)
		} else {
			ctxMatch = append(ctxMatch, s.Name)
		}
	}

	var tblMatch, tblExcl []string
	if in.ZoneQualifier != nil && loc != "" {
		for _, kz := range r.known {
			if textmatch.Fold(kz.City) == textmatch.Fold(loc) && kz.Tag == in.ZoneQualifier.Tag {
				tblMatch = append(tblMatch, kz.Matching...)
				tblExcl = append(tblExcl, kz.Excluded...)
			}
		}
	}

	matching := union(ctxMatch, tblMatch)
	inMatch := keys(matching)
	var excluded []string
	for _, e := range union(ctxExcl, tblExcl) {
		if !inMatch[textmatch.Fold(e)] {
			excluded = append(excluded, e)
		}
	}

	fromCtx := len(ctxMatch)+len(ctxExcl) > 0
	fromTbl := len(tblMatch)+len(tblExcl) > 0
	out := domain.ResolvedZoneSet{
		SectorsMatching: matching,
		SectorsExcluded: excluded,
		Confidence:      domain.ZoneLow,
		Source:          domain.ZoneSourceNone,
	}
	switch {
	case fromCtx && fromTbl:
		// agreement on a sector is high; a conflict stays low
		out.Source = domain.ZoneSourceBoth
		if overlaps(ctxMatch, tblMatch) {
			out.Confidence = domain.ZoneHigh
		}
	case fromCtx:
		out.Source, out.Confidence = domain.ZoneSourceContext, domain.ZoneMedium
	case fromTbl:
		out.Source, out.Confidence = domain.ZoneSourceTable, domain.ZoneMedium
	}
	return out
}

// ExtractSectors finds sector names in text and scores each occurrence by
// the premium and non-premium indicators in the surrounding window.
// The city itself is never reported as a sector.
func (r *Resolver) ExtractSectors(text, city string) []Sector {
	cityKey := textmatch.Fold(city)
	var out []Sector
	seen := map[string]int{}
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			kw, name := text[m[2]:m[3]], text[m[4]:m[5]]
			name = trimCity(name, cityKey)
			switch {
			case p.prefix != "":
				name = p.prefix + " " + name
			case p.keepPrefix && isUpper(kw):
				name = kw + " " + name
			}
			if !r.plausible(name, cityKey) {
				continue
			}
			vote := r.vote(text, m[0], m[1])
			k := textmatch.Fold(name)
			if i, ok := seen[k]; ok {
				out[i].Vote += vote
				continue
			}
			seen[k] = len(out)
			out = append(out, Sector{Name: name, Vote: vote})
		}
	}
	return out
}

func (r *Resolver) plausible(name, cityKey string) bool {
	if len(name) < minLen || len(name) > maxLen {
		return false
	}
	f := textmatch.Fold(name)
	if f == cityKey || r.stop[f] {
		return false
	}
	words := strings.Fields(f)
	if len(words) > maxWords {
		return false
	}
	for _, w := range words {
		if !r.stop[w] {
			return true
		}
	}
	return false
}

func (r *Resolver) vote(text string, start, end int) int {
	lo, hi := start-window, end+window
	if lo < 0 {
		lo = 0
	}
	if hi > len(text) {
		hi = len(text)
	}
	w := textmatch.Fold(text[lo:hi])
	n := 0
	for _, p := range r.premium {
		if textmatch.ContainsWord(w, p) {
			n++
		}
	}
	for _, p := range r.nonPremium {
		if textmatch.ContainsWord(w, p) {
			n--
		}
	}
	return n
}

// trimCity drops a trailing "de <city>" from names like "Centro de Temuco".
func trimCity(name, cityKey string) string {
	if cityKey == "" {
		return name
	}
	f := textmatch.Fold(name)
	for _, conn := range []string{" de ", " del "} {
		if strings.HasSuffix(f, conn+cityKey) {
			cut := len(strings.Fields(conn + cityKey))
			words := strings.Fields(name)
			if len(words) > cut {
				return strings.Join(words[:len(words)-cut], " ")
			}
		}
	}
	return name
}

func isUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func union(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		k := textmatch.Fold(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func keys(in []string) map[string]bool {
	m := make(map[string]bool, len(in))
	for _, s := range in {
		m[textmatch.Fold(s)] = true
	}
	return m
}

func overlaps(a, b []string) bool {
	kb := keys(b)
	for _, s := range a {
		if kb[textmatch.Fold(s)] {
			return true
		}
	}
	return false
}
