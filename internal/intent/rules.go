package intent

import (
	"regexp"
	"strconv"

	"propsearch/internal/domain"
	"propsearch/internal/textmatch"
)

const num = `(\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?)`

// Budget rules run in priority order: reference unit first, then the
// "millones" shorthand, then grouped-digit peso amounts.
var budgetRules = []textmatch.Rule[domain.Budget]{
	{Name: "uf_range", Pattern: regexp.MustCompile(`\bentre\s+(?:uf\s?)?` + num + `\s*(?:uf)?\s*(?:y|a)\s+(?:uf\s?)?` + num + `\s*uf\b`), Handle: budgetRange(domain.CurrencyUF, 1)},
	{Name: "uf_range_prefix", Pattern: regexp.MustCompile(`\bentre\s+uf\s?` + num + `\s+(?:y|a)\s+(?:uf\s?)?` + num), Handle: budgetRange(domain.CurrencyUF, 1)},
	{Name: "uf_suffix", Pattern: regexp.MustCompile(num + `\s?uf\b`), Handle: budgetOf(domain.CurrencyUF, 1)},
	{Name: "uf_prefix", Pattern: regexp.MustCompile(`\buf\s?` + num), Handle: budgetOf(domain.CurrencyUF, 1)},
	{Name: "clp_millions_range", Pattern: regexp.MustCompile(`\bentre\s+(\d+(?:[.,]\d+)?)\s*(?:millones\s*)?(?:y|a)\s+(\d+(?:[.,]\d+)?)\s*(?:millones|millon|mill|mm)\b`), Handle: budgetRange(domain.CurrencyCLP, 1e6)},
	{Name: "clp_millions", Pattern: regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(?:millones|millon|mill|mm)\b`), Handle: budgetOf(domain.CurrencyCLP, 1e6)},
	{Name: "clp_grouped", Pattern: regexp.MustCompile(`\$\s?(\d{1,3}(?:\.\d{3}){2,})`), Handle: budgetOf(domain.CurrencyCLP, 1)},
	{Name: "clp_grouped_suffix", Pattern: regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3}){2,})\s*(?:pesos|clp)\b`), Handle: budgetOf(domain.CurrencyCLP, 1)},
}

func budgetOf(c domain.Currency, mult float64) func([]string) (domain.Budget, bool) {
	return func(m []string) (domain.Budget, bool) {
		v, ok := textmatch.ParseAmount(m[1])
		if !ok || v <= 0 {
			return domain.Budget{}, false
		}
		return domain.Budget{Amount: v * mult, Currency: c}, true
	}
}

func budgetRange(c domain.Currency, mult float64) func([]string) (domain.Budget, bool) {
	return func(m []string) (domain.Budget, bool) {
		lo, ok1 := textmatch.ParseAmount(m[1])
		hi, ok2 := textmatch.ParseAmount(m[2])
		if !ok1 || !ok2 || lo <= 0 || hi <= 0 {
			return domain.Budget{}, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		lo *= mult
		return domain.Budget{Amount: hi * mult, Min: &lo, Currency: c}, true
	}
}

var areaRules = []textmatch.Rule[domain.Area]{
	{Name: "hectare", Pattern: regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s?(?:hectareas|hectarea|has|ha)\b`), Handle: func(m []string) (domain.Area, bool) {
		v, ok := textmatch.ParseAmount(m[1])
		if !ok || v <= 0 {
			return domain.Area{}, false
		}
		return domain.Area{Amount: v, Unit: domain.AreaHectare, M2: v * 10000}, true
	}},
	{Name: "m2", Pattern: regexp.MustCompile(num + `\s?(?:m2|mt2|mts2|mts|metros cuadrados|metros)\b`), Handle: func(m []string) (domain.Area, bool) {
		v, ok := textmatch.ParseAmount(m[1])
		if !ok || v <= 0 {
			return domain.Area{}, false
		}
		return domain.Area{Amount: v, Unit: domain.AreaM2, M2: v}, true
	}},
}

var (
	bedroomRules = []textmatch.Rule[int]{
		{Name: "bedroom_word", Pattern: regexp.MustCompile(`\b(\d{1,2})\s?(?:o mas\s)?(?:dormitorios|dormitorio|dorms?|habitaciones|habitacion|piezas|pieza)\b`), Handle: roomCount},
		{Name: "bedroom_min", Pattern: regexp.MustCompile(`\b(?:minimo|al menos)\s(\d{1,2})\s?(?:dormitorios|dorms?|habitaciones|piezas)\b`), Handle: roomCount},
		{Name: "bedroom_short", Pattern: regexp.MustCompile(`\b(\d{1,2})d(?:\d{1,2}b)?\b`), Handle: roomCount},
	}
	bathroomRules = []textmatch.Rule[int]{
		{Name: "bathroom_word", Pattern: regexp.MustCompile(`\b(\d{1,2})\s?(?:o mas\s)?(?:banos|bano)\b`), Handle: roomCount},
		{Name: "bathroom_short", Pattern: regexp.MustCompile(`\b(?:\d{1,2}d)?(\d{1,2})b\b`), Handle: roomCount},
	}
)

func roomCount(m []string) (int, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 || n > 20 {
		return 0, false
	}
	return n, true
}
