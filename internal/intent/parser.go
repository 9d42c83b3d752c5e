// Package intent turns a free-text property request into a SearchIntent.
// Parsing is pure and never fails: anything not recognised stays unknown.
package intent

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"propsearch/internal/domain"
	"propsearch/internal/tables"
	"propsearch/internal/textmatch"
)

const (
	defaultTolerance = 10.0
	approxTolerance  = 20.0
	landThresholdM2  = 1000.0
)

const (
	weightType     = 0.3
	weightLocation = 0.3
	weightBudget   = 0.15
	weightArea     = 0.1
	weightFeatures = 0.05
	weightRooms    = 0.1
)

const (
	questionType     = "¿Qué tipo de propiedad buscas (casa, departamento, terreno, oficina)?"
	questionLocation = "¿En qué ciudad o comuna estás buscando?"
)

type Parser struct {
	places     textmatch.KeywordTable[string]
	types      textmatch.KeywordTable[domain.PropertyType]
	rent       textmatch.KeywordTable[bool]
	features   textmatch.KeywordTable[string]
	qualifiers textmatch.KeywordTable[tables.Qualifier]
	approx     []string
	locStop    map[string]bool
}

func New(t *tables.Tables) *Parser {
	var places []textmatch.Keyword[string]
	for _, p := range t.Places {
		places = append(places, textmatch.Keyword[string]{Phrase: p.Name, Value: p.Name})
		for _, a := range p.Aliases {
			places = append(places, textmatch.Keyword[string]{Phrase: a, Value: p.Name})
		}
	}
	var types []textmatch.Keyword[domain.PropertyType]
	for _, p := range t.PropertyTypes {
		types = append(types, textmatch.Keyword[domain.PropertyType]{Phrase: p.Phrase, Value: domain.PropertyType(p.Value)})
	}
	var rent []textmatch.Keyword[bool]
	for _, k := range t.RentKeywords {
		rent = append(rent, textmatch.Keyword[bool]{Phrase: k, Value: true})
	}
	var feats []textmatch.Keyword[string]
	for _, f := range t.Features {
		feats = append(feats, textmatch.Keyword[string]{Phrase: f.Phrase, Value: f.Value})
	}
	var quals []textmatch.Keyword[tables.Qualifier]
	for _, q := range t.ZoneQualifiers {
		quals = append(quals, textmatch.Keyword[tables.Qualifier]{Phrase: q.Phrase, Value: q})
	}
	p := &Parser{
		places:     textmatch.NewKeywordTable(places),
		types:      textmatch.NewKeywordTable(types),
		rent:       textmatch.NewKeywordTable(rent),
		features:   textmatch.NewKeywordTable(feats),
		qualifiers: textmatch.NewKeywordTable(quals),
		locStop:    make(map[string]bool, len(t.LocationStopwords)),
	}
	for _, m := range t.ApproxMarkers {
		p.approx = append(p.approx, textmatch.Fold(m))
	}
	for _, w := range t.LocationStopwords {
		p.locStop[textmatch.Fold(w)] = true
	}
	return p
}

// Parse builds the intent for query.
func (p *Parser) Parse(query string) domain.SearchIntent {
	query = strings.TrimSpace(query)
	text := textmatch.Fold(query)
	in := domain.SearchIntent{
		Query:        query,
		PropertyType: domain.PropertyUnknown,
		Operation:    domain.OperationSale,
	}

	if _, ok := p.rent.Longest(text); ok {
		in.Operation = domain.OperationRent
	}

	// The location is found first and masked, so place names such as
	// "Padre Las Casas" do not leak into the type and feature tables.
	rest := text
	if loc, ok := p.location(query, text); ok {
		in.Location = &loc
		rest = mask(text, textmatch.Fold(loc.Raw))
	}

	if k, ok := p.types.Longest(rest); ok {
		in.PropertyType = k.Value
	}
	if k, ok := p.qualifiers.Longest(rest); ok {
		in.ZoneQualifier = &domain.ZoneQualifier{Raw: k.Phrase, Tag: k.Value.Tag, Premium: k.Value.Premium}
	}

	if b, _, ok := textmatch.First(budgetRules, text); ok {
		b.TolerancePct = defaultTolerance
		if p.approximate(text) {
			b.TolerancePct = approxTolerance
		}
		in.Budget = &b
	}
	if a, _, ok := textmatch.First(areaRules, text); ok {
		in.Area = &a
		if in.PropertyType == domain.PropertyUnknown && (a.Unit == domain.AreaHectare || a.M2 > landThresholdM2) {
			in.PropertyType = domain.PropertyLand
		}
	}
	if n, _, ok := textmatch.First(bedroomRules, text); ok {
		in.BedroomsMin = &n
	}
	if n, _, ok := textmatch.First(bathroomRules, text); ok {
		in.BathroomsMin = &n
	}

	seen := map[string]bool{}
	for _, k := range p.features.All(rest) {
		if !seen[k.Value] {
			seen[k.Value] = true
			in.RequiredFeatures = append(in.RequiredFeatures, k.Value)
		}
	}

	if in.Budget != nil {
		in.HardConstraints = append(in.HardConstraints, domain.ConstraintPrice)
	}
	if in.ZoneQualifier != nil {
		in.HardConstraints = append(in.HardConstraints, domain.ConstraintZone)
	}

	in.Confidence = confidence(in)
	if in.PropertyType == domain.PropertyUnknown {
		in.ClarifyingQuestions = append(in.ClarifyingQuestions, questionType)
	}
	if in.Location == nil {
		in.ClarifyingQuestions = append(in.ClarifyingQuestions, questionLocation)
	}
	return in
}

func (p *Parser) approximate(text string) bool {
	for _, m := range p.approx {
		if textmatch.ContainsWord(text, m) {
			return true
		}
	}
	return false
}

// location tries the gazetteer, longest name first, then the
// "en <words>" pattern over the original text.
func (p *Parser) location(query, folded string) (domain.Location, bool) {
	if k, ok := p.places.Longest(folded); ok {
		return domain.Location{Name: k.Value, Raw: k.Phrase}, true
	}

	words := strings.Fields(query)
	for i, w := range words {
		if textmatch.Fold(trimPunct(w)) != "en" {
			continue
		}
		var picked []string
		for _, nw := range words[i+1:] {
			clean := trimPunct(nw)
			f := textmatch.Fold(clean)
			if clean == "" || p.locStop[f] || !allLetters(clean) || len(picked) == 3 {
				break
			}
			picked = append(picked, clean)
			if clean != nw {
				break // punctuation ends the phrase
			}
		}
		if len(picked) > 0 {
			raw := strings.Join(picked, " ")
			return domain.Location{Name: titleCase(picked), Raw: raw}, true
		}
	}
	return domain.Location{}, false
}

func confidence(in domain.SearchIntent) float64 {
	c := 0.0
	if in.PropertyType != domain.PropertyUnknown {
		c += weightType
	}
	if in.Location != nil {
		c += weightLocation
	}
	if in.Budget != nil {
		c += weightBudget
	}
	if in.Area != nil {
		c += weightArea
	}
	if len(in.RequiredFeatures) > 0 {
		c += weightFeatures
	}
	if in.BedroomsMin != nil || in.BathroomsMin != nil {
		c += weightRooms
	}
	return math.Round(c*100) / 100
}

func mask(text, phrase string) string {
	i := textmatch.IndexWord(text, phrase)
	if i < 0 {
		return text
	}
	return text[:i] + strings.Repeat(" ", len(phrase)) + text[i+len(phrase):]
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
}

func allLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return true
}

func titleCase(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		w = strings.ToLower(w)
		r, size := utf8.DecodeRuneInString(w)
		out[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(out, " ")
}
