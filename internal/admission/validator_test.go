package admission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsearch/internal/admission"
	"propsearch/internal/domain"
	"propsearch/internal/facts"
	"propsearch/internal/intent"
	"propsearch/internal/tables"
)

const rate = 40000.0

func parse(q string) domain.SearchIntent { return intent.New(tables.Default()).Parse(q) }

func specific(title, snippet string) domain.Candidate {
	url := "https://www.portalinmobiliario.com/MLC-123456789-x"
	c := domain.Candidate{Raw: domain.RawResult{Title: title, URL: url, Snippet: snippet}}
	c.Facts = facts.New().Extract(c.Text(), url)
	return c
}

func check(c domain.Candidate, in domain.SearchIntent, z *domain.ResolvedZoneSet) domain.Validation {
	return admission.New(admission.DefaultConfig()).Check(c, admission.Request{
		Intent: in, Zones: z, UFRate: rate, Vertical: domain.VerticalRealEstate,
	})
}

func TestCheck_PriceWithinTolerance(t *testing.T) {
	in := parse("casa en Temuco hasta 5000 UF")
	v := check(specific("Casa Temuco", "5.400 UF"), in, nil)
	assert.Equal(t, domain.VerdictPass, v.Verdict)
}

func TestCheck_PriceAboveCeilingIsHardFail(t *testing.T) {
	in := parse("casa en Temuco hasta 5000 UF")
	v := check(specific("Casa Temuco", "6.000 UF"), in, nil)

	assert.Equal(t, domain.VerdictHardFail, v.Verdict)
	require.Len(t, v.Failures, 1)
	assert.Contains(t, v.Failures[0], "20%")
}

func TestCheck_CLPPriceConverted(t *testing.T) {
	in := parse("casa en Temuco hasta 5000 UF")
	v := check(specific("Casa Temuco", "$200.000.000"), in, nil)
	assert.Equal(t, domain.VerdictPass, v.Verdict, "200M CLP at 40.000 is exactly 5.000 UF")

	v = check(specific("Casa Temuco", "$260.000.000"), in, nil)
	assert.Equal(t, domain.VerdictHardFail, v.Verdict)
}

func TestCheck_CLPBudget(t *testing.T) {
	in := parse("casa en Temuco hasta 150 millones")
	assert.Equal(t, domain.VerdictPass, check(specific("Casa", "3.500 UF"), in, nil).Verdict)
	assert.Equal(t, domain.VerdictHardFail, check(specific("Casa", "4.500 UF"), in, nil).Verdict)
}

func TestCheck_RangeFloor(t *testing.T) {
	in := parse("casa en Temuco entre 4000 y 5000 UF")
	assert.Equal(t, domain.VerdictHardFail, check(specific("Casa", "3.000 UF"), in, nil).Verdict)
	assert.Equal(t, domain.VerdictPass, check(specific("Casa", "4.200 UF"), in, nil).Verdict)
}

func TestCheck_NoPriceIsIncomplete(t *testing.T) {
	in := parse("casa en Temuco hasta 5000 UF")
	v := check(specific("Casa Temuco", "linda casa"), in, nil)
	assert.Equal(t, domain.VerdictIncomplete, v.Verdict)
	assert.False(t, v.Verdict.Admitted())
}

func TestCheck_ListingAlwaysPassesAsNonIndividual(t *testing.T) {
	in := parse("casa en Temuco hasta 5000 UF")
	url := "https://www.portalinmobiliario.com/venta/casa/temuco"
	c := domain.Candidate{Raw: domain.RawResult{Title: "Casas en venta", URL: url, Snippet: "desde 9.000 UF"}}
	c.Facts = facts.New().Extract(c.Text(), url)

	v := check(c, in, nil)
	assert.Equal(t, domain.VerdictPass, v.Verdict)
	assert.True(t, v.NonIndividual)
}

func TestCheck_Zone(t *testing.T) {
	in := parse("casa en sector alto de Temuco")
	z := &domain.ResolvedZoneSet{
		SectorsMatching: []string{"Avenida Alemania"},
		SectorsExcluded: []string{"Santa Rosa"},
		Confidence:      domain.ZoneHigh,
	}

	assert.Equal(t, domain.VerdictPass, check(specific("Casa Avenida Alemania", ""), in, z).Verdict)

	v := check(specific("Casa en población Santa Rosa", ""), in, z)
	assert.Equal(t, domain.VerdictHardFail, v.Verdict)
	assert.Contains(t, v.Failures[0], "Santa Rosa")

	v = check(specific("Casa en Labranza", ""), in, z)
	assert.Equal(t, domain.VerdictSoftFail, v.Verdict, "no sector hit under high confidence")

	z.Confidence = domain.ZoneMedium
	assert.Equal(t, domain.VerdictPass, check(specific("Casa en Labranza", ""), in, z).Verdict)
}

func TestCheck_PremiumCoherence(t *testing.T) {
	in := parse("casa en sector alto de Temuco hasta 10.000 UF")

	v := check(specific("Casa", "2.000 UF"), in, nil)
	assert.Equal(t, domain.VerdictHardFail, v.Verdict, "20% of budget")

	v = check(specific("Casa", "4.000 UF"), in, nil)
	assert.Equal(t, domain.VerdictSoftFail, v.Verdict, "40% of budget")

	v = check(specific("Casa", "8.000 UF"), in, nil)
	assert.Equal(t, domain.VerdictPass, v.Verdict)
}

func TestCheck_PremiumFloorsConfigurable(t *testing.T) {
	in := parse("casa en sector alto de Temuco hasta 10.000 UF")
	val := admission.New(admission.Config{PremiumHardFloor: 0.1, PremiumSoftFloor: 0.15})
	v := val.Check(specific("Casa", "2.000 UF"), admission.Request{Intent: in, UFRate: rate, Vertical: domain.VerticalRealEstate})
	assert.Equal(t, domain.VerdictPass, v.Verdict)
}

func TestCheck_RoomShortfallOnlyWarns(t *testing.T) {
	in := parse("casa en Temuco 4 dormitorios 2 baños")
	v := check(specific("Casa", "3 dormitorios 1 baño"), in, nil)
	assert.Equal(t, domain.VerdictSoftFail, v.Verdict)
	assert.Len(t, v.Warnings, 2)
	assert.Empty(t, v.Failures)
}

func TestCheck_OtherVerticalsPass(t *testing.T) {
	v := admission.New(admission.DefaultConfig()).Check(specific("Ley 21.461", ""), admission.Request{Vertical: domain.VerticalLegal})
	assert.Equal(t, domain.VerdictPass, v.Verdict)
}

func TestValidate_Partitions(t *testing.T) {
	in := parse("casa en Temuco hasta 5000 UF")
	cands := []domain.Candidate{
		specific("a", "4.000 UF"),
		specific("b", "9.000 UF"),
		specific("c", "sin precio"),
	}
	out, res := admission.New(admission.DefaultConfig()).Validate(cands, admission.Request{
		Intent: in, UFRate: rate, Vertical: domain.VerticalRealEstate,
	})

	require.Len(t, out, 3)
	assert.Len(t, res.Passed, 1)
	assert.Len(t, res.HardFailed, 1)
	assert.Len(t, res.Incomplete, 1)
	assert.Equal(t, map[string]int{"PASS": 1, "HARD_FAIL": 1, "INCOMPLETE": 1}, res.Counts)
	assert.Len(t, admission.Admitted(out), 1)
}
