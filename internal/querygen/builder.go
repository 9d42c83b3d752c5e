// Package querygen derives the bounded list of provider queries for a
// request. Real-estate queries are assembled from parsed intent fields
// only; the raw request text is never sent to the provider as-is.
package querygen

import (
	"strings"

	"propsearch/internal/domain"
	"propsearch/internal/intent"
	"propsearch/internal/policy"
	"propsearch/internal/tables"
	"propsearch/internal/textmatch"
)

const (
	MaxQueries        = 8
	MaxContextQueries = 2
	maxSiteQueries    = 6
	maxFeatureTerms   = 2
	fallbackBrands    = 3
)

// Plan is everything the orchestrator needs to dispatch a search.
type Plan struct {
	Vertical       domain.Vertical
	Intent         domain.SearchIntent
	Queries        []string
	ContextQueries []string
}

type Builder struct {
	policy   *policy.Policy
	parser   *intent.Parser
	variants map[string]string
	features map[string]string // canonical tag -> first phrase
	abbrev   map[string]string
	noise    []string
}

func New(t *tables.Tables, p *policy.Policy, ip *intent.Parser) *Builder {
	b := &Builder{
		policy:   p,
		parser:   ip,
		variants: t.TypeVariants,
		features: make(map[string]string, len(t.Features)),
		abbrev:   make(map[string]string, len(t.Abbreviations)),
	}
	for _, f := range t.Features {
		if _, ok := b.features[f.Value]; !ok {
			b.features[f.Value] = textmatch.Fold(f.Phrase)
		}
	}
	for k, v := range t.Abbreviations {
		b.abbrev[textmatch.Fold(k)] = textmatch.Fold(v)
	}
	for _, n := range t.NoisePhrases {
		if f := textmatch.Fold(n); f != "" {
			b.noise = append(b.noise, f)
		}
	}
	return b
}

// Build resolves the vertical (auto runs detection) and produces the
// query plan.
func (b *Builder) Build(query string, v domain.Vertical) Plan {
	if v == domain.VerticalAuto || v == "" {
		v = b.policy.DetectVertical(query)
	}
	plan := Plan{Vertical: v, Intent: b.parser.Parse(query)}
	if v == domain.VerticalRealEstate {
		plan.Queries = b.realEstate(plan.Intent)
		plan.ContextQueries = ContextQueries(plan.Intent)
		return plan
	}
	plan.Queries = b.generic(query, v)
	return plan
}

func (b *Builder) realEstate(in domain.SearchIntent) []string {
	base := strings.Join(b.baseTerms(in), " ")
	portals := b.policy.Portals(domain.VerticalRealEstate)

	var qs []string
	for i, d := range portals {
		if i == maxSiteQueries {
			break
		}
		qs = append(qs, base+" site:"+d)
	}

	variant := []string{b.variants[string(in.PropertyType)]}
	if variant[0] == "" {
		variant[0] = "propiedades"
	}
	variant = append(variant, operationWord(in.Operation))
	if loc := in.LocationName(); loc != "" {
		variant = append(variant, textmatch.Fold(loc))
	}
	qs = append(qs, strings.Join(append(variant, "chile"), " "))

	brands := make([]string, 0, fallbackBrands)
	for _, d := range portals {
		if len(brands) == fallbackBrands {
			break
		}
		brands = append(brands, brand(d))
	}
	qs = append(qs, base+" "+strings.Join(brands, " "))

	return limit(dedupe(qs), MaxQueries)
}

func (b *Builder) baseTerms(in domain.SearchIntent) []string {
	terms := []string{domain.SpanishType(in.PropertyType), operationWord(in.Operation)}
	if in.Location != nil {
		terms = append(terms, in.Location.Name)
	}
	if in.ZoneQualifier != nil {
		terms = append(terms, in.ZoneQualifier.Raw)
	}
	if in.Area != nil {
		if in.Area.Unit == domain.AreaHectare {
			terms = append(terms, domain.FormatThousands(in.Area.Amount)+" hectareas")
		} else {
			terms = append(terms, domain.FormatThousands(in.Area.Amount)+" m2")
		}
	}
	for i, f := range in.RequiredFeatures {
		if i == maxFeatureTerms {
			break
		}
		if p := b.features[f]; p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

func (b *Builder) generic(query string, v domain.Vertical) []string {
	cleaned := b.Clean(query)
	if cleaned == "" {
		return nil
	}
	qs := []string{strings.TrimSpace(cleaned + " " + b.policy.Hint(v))}
	for _, d := range b.policy.Portals(v) {
		if b.policy.Tier(d, v) != domain.TierA {
			break
		}
		qs = append(qs, cleaned+" site:"+d)
	}
	return limit(dedupe(qs), MaxQueries)
}

// Clean folds the request, strips meta-instruction phrases and expands
// known abbreviations.
func (b *Builder) Clean(query string) string {
	text := textmatch.Fold(query)
	for _, n := range b.noise {
		for {
			i := textmatch.IndexWord(text, n)
			if i < 0 {
				break
			}
			text = text[:i] + " " + text[i+len(n):]
		}
	}
	words := textmatch.Words(text)
	for i, w := range words {
		if full, ok := b.abbrev[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// ContextQueries returns the neighbourhood and price-context queries used
// for zone resolution. Without a location there is nothing to resolve.
func ContextQueries(in domain.SearchIntent) []string {
	loc := in.LocationName()
	if loc == "" {
		return nil
	}
	var zone string
	if in.ZoneQualifier != nil {
		zone = "mejores sectores para vivir en " + loc + " " + in.ZoneQualifier.Raw
	} else {
		zone = "barrios residenciales recomendados en " + loc
	}
	price := []string{"precio promedio", domain.SpanishType(in.PropertyType), operationWord(in.Operation), loc}
	if in.Budget != nil {
		price = append(price, domain.FormatAmount(in.Budget.Amount, in.Budget.Currency))
	}
	return limit([]string{zone, strings.Join(price, " ")}, MaxContextQueries)
}

func operationWord(op domain.Operation) string {
	if op == domain.OperationRent {
		return "arriendo"
	}
	return "venta"
}

// brand turns "portalinmobiliario.com" into "portalinmobiliario".
func brand(d string) string {
	if i := strings.IndexByte(d, '.'); i > 0 {
		return d[:i]
	}
	return d
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, q := range in {
		q = strings.Join(strings.Fields(q), " ")
		k := strings.ToLower(q)
		if q == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, q)
	}
	return out
}

func limit(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
