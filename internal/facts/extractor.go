// Package facts pulls structured listing facts out of unstructured result
// text. Every field that no rule matches is left nil.
package facts

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"propsearch/internal/domain"
	"propsearch/internal/textmatch"
)

const num = `(\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?)`

var (
	clpRules = []textmatch.Rule[float64]{
		{Name: "clp_grouped", Pattern: regexp.MustCompile(`\$\s?(\d{1,3}(?:\.\d{3}){2,})`), Handle: amount(1)},
		{Name: "clp_grouped_suffix", Pattern: regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3}){2,})\s*(?:clp|pesos)\b`), Handle: amount(1)},
		{Name: "clp_millions", Pattern: regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(?:millones|millon|mm)\b`), Handle: amount(1e6)},
	}
	ufRules = []textmatch.Rule[float64]{
		{Name: "uf_suffix", Pattern: regexp.MustCompile(num + `\s?uf\b`), Handle: amount(1)},
		{Name: "uf_prefix", Pattern: regexp.MustCompile(`\buf\s?` + num), Handle: amount(1)},
	}
	areaRules = []textmatch.Rule[float64]{
		{Name: "m2", Pattern: regexp.MustCompile(num + `\s?(?:m2|mt2|mts2|mts|metros cuadrados)\b`), Handle: amount(1)},
		{Name: "hectare", Pattern: regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s?(?:hectareas|hectarea|ha|has)\b`), Handle: amount(10000)},
	}
	bedroomRules = []textmatch.Rule[int]{
		{Name: "bedroom_word", Pattern: regexp.MustCompile(`\b(\d{1,2})\s?(?:dormitorios|dormitorio|dorms?|habitaciones|habitacion|piezas|pieza)\b`), Handle: count},
		{Name: "bedroom_short", Pattern: regexp.MustCompile(`\b(\d{1,2})d(?:\d{1,2}b)?\b`), Handle: count},
	}
	bathroomRules = []textmatch.Rule[int]{
		{Name: "bathroom_word", Pattern: regexp.MustCompile(`\b(\d{1,2})\s?(?:banos|bano)\b`), Handle: count},
		{Name: "bathroom_short", Pattern: regexp.MustCompile(`\b(?:\d{1,2}d)?(\d{1,2})b\b`), Handle: count},
	}
)

func amount(mult float64) func([]string) (float64, bool) {
	return func(m []string) (float64, bool) {
		v, ok := textmatch.ParseAmount(m[1])
		if !ok || v <= 0 {
			return 0, false
		}
		return v * mult, true
	}
}

func count(m []string) (int, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 || n > 30 {
		return 0, false
	}
	return n, true
}

// Extractor is stateless; the zero value is ready to use.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract reads facts from text (title, snippet and optionally page text)
// and classifies the URL.
func (e *Extractor) Extract(text, rawURL string) domain.ExtractedFacts {
	f := textmatch.Fold(text)
	out := domain.ExtractedFacts{URLCategory: ClassifyURL(rawURL)}

	if v, _, ok := textmatch.First(clpRules, f); ok {
		out.PriceCLP = &v
	}
	if v, _, ok := textmatch.First(ufRules, f); ok {
		out.PriceUF = &v
	}
	if v, _, ok := textmatch.First(areaRules, f); ok {
		out.AreaM2 = &v
	}
	// Price per area only from an explicit CLP price, never from a UF
	// figure converted at some rate.
	if out.PriceCLP != nil && out.AreaM2 != nil && *out.AreaM2 > 0 {
		ppa := *out.PriceCLP / *out.AreaM2
		out.PricePerM2 = &ppa
	}
	if v, _, ok := textmatch.First(bedroomRules, f); ok {
		out.Bedrooms = &v
	}
	if v, _, ok := textmatch.First(bathroomRules, f); ok {
		out.Bathrooms = &v
	}
	return out
}

var (
	listingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[?&](?:page|pagina|p)=\d+`),
		regexp.MustCompile(`/(?:page|pagina)[/-]\d+`),
		regexp.MustCompile(`_desde_\d+`),
		regexp.MustCompile(`/(?:search|buscar|busqueda|resultados|listado|listados|categoria|category|tag)(?:/|$|\?)`),
		regexp.MustCompile(`/(?:venta|arriendo|arriendo-temporada)/`),
		regexp.MustCompile(`[?&](?:q|query|s|search)=`),
	}
	longID          = regexp.MustCompile(`\d{6,}`)
	specificPattern = []*regexp.Regexp{
		regexp.MustCompile(`/mlc-?\d+`),
		regexp.MustCompile(`/(?:propiedad|propiedades|inmueble|ficha|detalle|aviso|item|publicacion)/[^/]+`),
		regexp.MustCompile(`/p/\d+`),
		regexp.MustCompile(`-id-?\d+`),
		regexp.MustCompile(`\d{6,}`),
	}
)

// ClassifyURL tells a detail page from a listing page. Listing shapes are
// checked first; a listing-shaped path that still carries a long numeric
// id is a detail page.
func ClassifyURL(rawURL string) domain.URLCategory {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return domain.URLUnknown
	}
	path := strings.ToLower(u.EscapedPath())
	full := path
	if u.RawQuery != "" {
		full += "?" + strings.ToLower(u.RawQuery)
	}

	for _, re := range listingPatterns {
		if re.MatchString(full) {
			if longID.MatchString(path) {
				return domain.URLSpecific
			}
			return domain.URLListing
		}
	}
	for _, re := range specificPattern {
		if re.MatchString(path) {
			return domain.URLSpecific
		}
	}
	return domain.URLUnknown
}
