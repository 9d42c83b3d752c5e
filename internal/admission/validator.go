// Package admission decides which ranked candidates may reach the
// downstream consumer. A candidate that cannot be verified against the
// stated constraints is excluded or flagged, never silently passed.
package admission

import (
	"fmt"
	"math"

	"propsearch/internal/domain"
	"propsearch/internal/textmatch"
)

// Config holds the premium-zone plausibility floors, as fractions of the
// stated budget.
type Config struct {
	PremiumHardFloor float64
	PremiumSoftFloor float64
}

func DefaultConfig() Config {
	return Config{PremiumHardFloor: 0.30, PremiumSoftFloor: 0.50}
}

type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	if cfg.PremiumHardFloor <= 0 && cfg.PremiumSoftFloor <= 0 {
		cfg = DefaultConfig()
	}
	return &Validator{cfg: cfg}
}

// Outcome partitions candidates by verdict. Each partition keeps the
// ranked order.
type Outcome struct {
	Passed     []domain.Candidate
	SoftFailed []domain.Candidate
	HardFailed []domain.Candidate
	Incomplete []domain.Candidate
	Counts     map[string]int
}

// Admitted keeps the passed and soft-failed candidates, in order.
func Admitted(cands []domain.Candidate) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range cands {
		if c.Validation.Verdict.Admitted() {
			out = append(out, c)
		}
	}
	return out
}

// Request bundles what a check needs besides the candidate itself.
type Request struct {
	Intent   domain.SearchIntent
	Zones    *domain.ResolvedZoneSet
	UFRate   float64
	Vertical domain.Vertical
}

// Validate sets a verdict on every candidate and partitions them.
func (v *Validator) Validate(cands []domain.Candidate, req Request) ([]domain.Candidate, Outcome) {
	out := make([]domain.Candidate, len(cands))
	res := Outcome{Counts: map[string]int{}}
	for i, c := range cands {
		c.Validation = v.Check(c, req)
		out[i] = c
		res.Counts[c.Validation.Verdict.String()]++
		switch c.Validation.Verdict {
		case domain.VerdictPass:
			res.Passed = append(res.Passed, c)
		case domain.VerdictSoftFail:
			res.SoftFailed = append(res.SoftFailed, c)
		case domain.VerdictHardFail:
			res.HardFailed = append(res.HardFailed, c)
		case domain.VerdictIncomplete:
			res.Incomplete = append(res.Incomplete, c)
		case domain.VerdictPending:
		}
	}
	return out, res
}

// Check evaluates one candidate.
func (v *Validator) Check(c domain.Candidate, req Request) domain.Validation {
	if req.Vertical != domain.VerticalRealEstate {
		return domain.Validation{Verdict: domain.VerdictPass}
	}
	if c.Facts.URLCategory == domain.URLListing {
		return domain.Validation{Verdict: domain.VerdictPass, NonIndividual: true}
	}

	var (
		val        domain.Validation
		incomplete bool
		in         = req.Intent
	)

	price, havePrice := c.Facts.PriceInUF(req.UFRate)
	budget, haveBudget := budgetInUF(in.Budget, req.UFRate)

	if in.IsHard(domain.ConstraintPrice) && in.Budget != nil {
		switch {
		case !havePrice || !haveBudget:
			incomplete = true
			val.Warnings = append(val.Warnings, "precio no disponible para verificar el presupuesto")
		case price > budget.ceiling:
			val.Failures = append(val.Failures, fmt.Sprintf(
				"precio %s UF supera el presupuesto de %s UF en %.0f%%",
				domain.FormatThousands(round(price)), domain.FormatThousands(round(budget.amount)),
				(price-budget.amount)/budget.amount*100))
		case budget.floor > 0 && price < budget.floor:
			val.Failures = append(val.Failures, fmt.Sprintf(
				"precio %s UF bajo el mínimo de %s UF en %.0f%%",
				domain.FormatThousands(round(price)), domain.FormatThousands(round(budget.min)),
				(budget.min-price)/budget.min*100))
		}
	}

	if in.IsHard(domain.ConstraintZone) && !req.Zones.Empty() {
		text := textmatch.Fold(c.Text())
		if s, hit := firstHit(text, req.Zones.SectorsExcluded); hit {
			val.Failures = append(val.Failures, "ubicada en sector excluido: "+s)
		} else if _, ok := firstHit(text, req.Zones.SectorsMatching); !ok && req.Zones.Confidence == domain.ZoneHigh {
			val.Warnings = append(val.Warnings, "no se pudo confirmar que esté en un sector buscado")
		}
	}

	if in.PremiumZone() && havePrice && haveBudget && budget.amount > 0 {
		ratio := price / budget.amount
		switch {
		case ratio < v.cfg.PremiumHardFloor:
			val.Failures = append(val.Failures, fmt.Sprintf(
				"precio implausible para zona premium (%.0f%% del presupuesto)", ratio*100))
		case ratio < v.cfg.PremiumSoftFloor:
			val.Warnings = append(val.Warnings, fmt.Sprintf(
				"precio bajo para zona premium (%.0f%% del presupuesto)", ratio*100))
		}
	}

	if in.BedroomsMin != nil && c.Facts.Bedrooms != nil && *c.Facts.Bedrooms < *in.BedroomsMin {
		val.Warnings = append(val.Warnings, fmt.Sprintf("%d dormitorios, se pidieron %d", *c.Facts.Bedrooms, *in.BedroomsMin))
	}
	if in.BathroomsMin != nil && c.Facts.Bathrooms != nil && *c.Facts.Bathrooms < *in.BathroomsMin {
		val.Warnings = append(val.Warnings, fmt.Sprintf("%d baños, se pidieron %d", *c.Facts.Bathrooms, *in.BathroomsMin))
	}

	switch {
	case len(val.Failures) > 0:
		val.Verdict = domain.VerdictHardFail
	case incomplete:
		val.Verdict = domain.VerdictIncomplete
	case len(val.Warnings) > 0:
		val.Verdict = domain.VerdictSoftFail
	default:
		val.Verdict = domain.VerdictPass
	}
	return val
}

type ufBudget struct {
	amount  float64
	ceiling float64
	min     float64
	floor   float64
}

// budgetInUF converts the budget into the reference unit.
func budgetInUF(b *domain.Budget, rate float64) (ufBudget, bool) {
	if b == nil {
		return ufBudget{}, false
	}
	conv := 1.0
	if b.Currency == domain.CurrencyCLP {
		if rate <= 0 {
			return ufBudget{}, false
		}
		conv = 1 / rate
	}
	out := ufBudget{amount: b.Amount * conv, ceiling: b.Ceiling() * conv}
	if b.Min != nil {
		out.min = *b.Min * conv
		out.floor = out.min * (1 - b.TolerancePct/100)
	}
	return out, true
}

func firstHit(text string, sectors []string) (string, bool) {
	for _, s := range sectors {
		if textmatch.ContainsWord(text, textmatch.Fold(s)) {
			return s, true
		}
	}
	return "", false
}

func round(f float64) float64 { return math.Round(f) }
