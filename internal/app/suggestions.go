package app

import (
	"fmt"
	"math"
	"strings"

	"propsearch/internal/domain"
	"propsearch/internal/tables"
	"propsearch/internal/textmatch"
)

const (
	budgetStep  = 0.25
	areaRelax   = 0.20
	maxNearby   = 3
	refineHint  = "Reformular la búsqueda indicando comuna, tipo de propiedad y presupuesto."
	genericHint = "Reformular la consulta con términos más específicos o una fuente concreta."
)

// expander proposes concrete ways to widen a search that came back short.
type expander struct {
	nearby  map[string][]string // folded location -> display names
	broader map[domain.PropertyType]string
}

func newExpander(t *tables.Tables) expander {
	e := expander{
		nearby:  make(map[string][]string, len(t.NearbyLocations)),
		broader: make(map[domain.PropertyType]string, len(t.BroaderTypes)),
	}
	for loc, near := range t.NearbyLocations {
		e.nearby[textmatch.Fold(loc)] = near
	}
	for typ, s := range t.BroaderTypes {
		e.broader[domain.PropertyType(typ)] = s
	}
	return e
}

// Suggest never returns an empty list.
func (e expander) Suggest(in domain.SearchIntent, v domain.Vertical) []domain.Suggestion {
	if v != domain.VerticalRealEstate {
		return []domain.Suggestion{{Kind: domain.SuggestRefine, Text: genericHint}}
	}

	var out []domain.Suggestion
	if loc := in.LocationName(); loc != "" {
		if near := e.nearby[textmatch.Fold(loc)]; len(near) > 0 {
			if len(near) > maxNearby {
				near = near[:maxNearby]
			}
			out = append(out, domain.Suggestion{
				Kind: domain.SuggestNearby,
				Text: "Ampliar la búsqueda a localidades cercanas a " + loc + ": " + strings.Join(near, ", ") + ".",
			})
		}
	}
	if b := in.Budget; b != nil {
		raised := roundBudget(b.Amount*(1+budgetStep), b.Currency)
		out = append(out, domain.Suggestion{
			Kind: domain.SuggestBudget,
			Text: fmt.Sprintf("Subir el presupuesto en %.0f%%: hasta %s.", budgetStep*100, domain.FormatAmount(raised, b.Currency)),
		})
	}
	if a := in.Area; a != nil && a.M2 > 0 {
		relaxed := math.Round(a.M2 * (1 - areaRelax))
		out = append(out, domain.Suggestion{
			Kind: domain.SuggestArea,
			Text: fmt.Sprintf("Aceptar superficies desde %s m² (%.0f%% menos).", domain.FormatThousands(relaxed), areaRelax*100),
		})
	}
	if s, ok := e.broader[in.PropertyType]; ok {
		out = append(out, domain.Suggestion{
			Kind: domain.SuggestType,
			Text: "Considerar otros tipos de propiedad: " + s + ".",
		})
	}
	if q := in.ZoneQualifier; q != nil && in.Location != nil {
		out = append(out, domain.Suggestion{
			Kind: domain.SuggestRefine,
			Text: "Buscar en todo " + in.Location.Name + " sin limitar a \"" + q.Raw + "\".",
		})
	}
	if len(out) == 0 {
		out = append(out, domain.Suggestion{Kind: domain.SuggestRefine, Text: refineHint})
	}
	return out
}

// roundBudget keeps suggested amounts readable: UF to the unit, CLP to the
// nearest million.
func roundBudget(v float64, c domain.Currency) float64 {
	if c == domain.CurrencyCLP {
		return math.Round(v/1e6) * 1e6
	}
	return math.Round(v)
}
