package app

import (
	"fmt"
	"strings"

	"propsearch/internal/domain"
)

const (
	noCandidatesNotice = "No se encontraron candidatos que cumplan los criterios. No existen avisos verificados para mostrar; no inventes propiedades, precios ni enlaces."
	insufficientNotice = "Resultados insuficientes: hay menos avisos individuales verificados que los esperados. Indícalo explícitamente y ofrece las sugerencias de ampliación."
	urlRule            = "Usa solamente las URLs de la lista permitida, citándolas tal cual. Nunca construyas ni completes una URL."
)

// payload is the context block handed to the answering model together
// with the URLs it may cite, numbered in the same order.
type payload struct {
	Text    string
	Allowed []string
}

// buildPayload lists individual candidates first and listing pages after
// them; the allow-list follows that order.
func buildPayload(res domain.SearchResult) payload {
	var individual, listings []domain.Candidate
	for _, c := range res.Results {
		if c.Validation.NonIndividual || c.Facts.URLCategory == domain.URLListing {
			listings = append(listings, c)
			continue
		}
		individual = append(individual, c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CONSULTA: %s\n", res.Intent.Query)
	if res.Vertical == domain.VerticalRealEstate {
		fmt.Fprintf(&b, "INTENCIÓN DETECTADA: %s\n", res.Intent.Summary())
	} else {
		fmt.Fprintf(&b, "VERTICAL: %s\n", res.Vertical)
	}
	if z := res.Zones; !z.Empty() {
		fmt.Fprintf(&b, "ZONAS RESUELTAS (confianza %s): coinciden: %s", z.Confidence, listOrDash(z.SectorsMatching))
		if len(z.SectorsExcluded) > 0 {
			fmt.Fprintf(&b, "; excluidas: %s", strings.Join(z.SectorsExcluded, ", "))
		}
		b.WriteByte('\n')
	}

	var allowed []string
	n := 0
	section := func(title string, cands []domain.Candidate) {
		if len(cands) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d):\n", title, len(cands))
		for _, c := range cands {
			n++
			allowed = append(allowed, c.Raw.URL)
			writeCandidate(&b, n, c)
		}
	}
	if res.Vertical == domain.VerticalRealEstate {
		section("PROPIEDADES INDIVIDUALES VERIFICADAS", individual)
		section("PÁGINAS DE LISTADO (no son propiedades individuales; no las presentes como un aviso)", listings)
	} else {
		section("RESULTADOS", append(individual, listings...))
	}

	if len(res.Results) == 0 {
		fmt.Fprintf(&b, "\nAVISO: %s\n", noCandidatesNotice)
	} else if res.Insufficient {
		fmt.Fprintf(&b, "\nAVISO: %s\n", insufficientNotice)
	}
	if len(res.ExpansionSuggestions) > 0 {
		b.WriteString("\nSUGERENCIAS DE AMPLIACIÓN:\n")
		for _, s := range res.ExpansionSuggestions {
			fmt.Fprintf(&b, "- %s\n", s.Text)
		}
	}

	b.WriteString("\nURLS PERMITIDAS:\n")
	if len(allowed) == 0 {
		b.WriteString("(ninguna)\n")
	}
	for i, u := range allowed {
		fmt.Fprintf(&b, "%d. %s\n", i+1, u)
	}
	b.WriteString(urlRule + "\n")

	return payload{Text: b.String(), Allowed: allowed}
}

func writeCandidate(b *strings.Builder, n int, c domain.Candidate) {
	fmt.Fprintf(b, "[%d] %s\n", n, oneLine(c.Raw.Title))
	fmt.Fprintf(b, "    URL: %s\n", c.Raw.URL)
	fmt.Fprintf(b, "    Fuente: %s (nivel %s) · Veredicto: %s\n", c.Domain, c.Tier, c.Validation.Verdict)
	if facts := factLine(c.Facts); facts != "" {
		fmt.Fprintf(b, "    Datos: %s\n", facts)
	}
	if c.Raw.Snippet != "" {
		fmt.Fprintf(b, "    Extracto: %s\n", oneLine(c.Raw.Snippet))
	}
	for _, w := range c.Validation.Warnings {
		fmt.Fprintf(b, "    Advertencia: %s\n", w)
	}
}

func factLine(f domain.ExtractedFacts) string {
	var parts []string
	switch {
	case f.PriceUF != nil:
		parts = append(parts, "precio "+domain.FormatAmount(*f.PriceUF, domain.CurrencyUF))
	case f.PriceCLP != nil:
		parts = append(parts, "precio "+domain.FormatAmount(*f.PriceCLP, domain.CurrencyCLP))
	}
	if f.AreaM2 != nil {
		parts = append(parts, domain.FormatThousands(*f.AreaM2)+" m²")
	}
	if f.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d dormitorios", *f.Bedrooms))
	}
	if f.Bathrooms != nil {
		parts = append(parts, fmt.Sprintf("%d baños", *f.Bathrooms))
	}
	return strings.Join(parts, " · ")
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

func listOrDash(in []string) string {
	if len(in) == 0 {
		return "-"
	}
	return strings.Join(in, ", ")
}
