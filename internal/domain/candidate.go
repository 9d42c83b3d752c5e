package domain

import (
	"encoding/json"
	"fmt"
)

type Vertical string

const (
	VerticalAuto       Vertical = "auto"
	VerticalRealEstate Vertical = "real_estate"
	VerticalLegal      Vertical = "legal"
	VerticalNews       Vertical = "news"
	VerticalRetail     Vertical = "retail"
	VerticalGeneral    Vertical = "general"
)

func ParseVertical(s string) (Vertical, bool) {
	switch v := Vertical(s); v {
	case VerticalAuto, VerticalRealEstate, VerticalLegal, VerticalNews, VerticalRetail, VerticalGeneral:
		return v, true
	case "":
		return VerticalAuto, true
	}
	return "", false
}

// RawResult is one hit as returned by the search provider.
type RawResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Provider string `json:"provider"`
}

type URLCategory string

const (
	URLSpecific URLCategory = "specific"
	URLListing  URLCategory = "listing"
	URLUnknown  URLCategory = "unknown"
)

type ExtractedFacts struct {
	PriceCLP    *float64    `json:"price_clp,omitempty"`
	PriceUF     *float64    `json:"price_uf,omitempty"`
	AreaM2      *float64    `json:"area_m2,omitempty"`
	PricePerM2  *float64    `json:"price_per_m2,omitempty"` // CLP per m², explicit CLP price only
	Bedrooms    *int        `json:"bedrooms,omitempty"`
	Bathrooms   *int        `json:"bathrooms,omitempty"`
	URLCategory URLCategory `json:"url_category"`
	FromPage    bool        `json:"from_page,omitempty"`
}

// PriceInUF converts the candidate price into the reference unit. A price
// quoted in UF is used as-is; otherwise the CLP price is divided by rate.
func (f ExtractedFacts) PriceInUF(rate float64) (float64, bool) {
	if f.PriceUF != nil {
		return *f.PriceUF, true
	}
	if f.PriceCLP != nil && rate > 0 {
		return *f.PriceCLP / rate, true
	}
	return 0, false
}

type ScoreBreakdown struct {
	QueryMatch   float64 `json:"query_match"`
	DomainTrust  float64 `json:"domain_trust"`
	ListingType  float64 `json:"listing_type"`
	DataRichness float64 `json:"data_richness"`
	Freshness    float64 `json:"freshness"`
	Penalty      float64 `json:"penalty"`
}

// Verdict is the closed set of admission outcomes.
type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictPass
	VerdictSoftFail
	VerdictHardFail
	VerdictIncomplete
)

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "PENDING"
	case VerdictPass:
		return "PASS"
	case VerdictSoftFail:
		return "SOFT_FAIL"
	case VerdictHardFail:
		return "HARD_FAIL"
	case VerdictIncomplete:
		return "INCOMPLETE"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Admitted reports whether the candidate may be shown downstream.
func (v Verdict) Admitted() bool {
	switch v {
	case VerdictPass, VerdictSoftFail:
		return true
	case VerdictPending, VerdictHardFail, VerdictIncomplete:
		return false
	}
	return false
}

func (v Verdict) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

func (v *Verdict) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, c := range []Verdict{VerdictPending, VerdictPass, VerdictSoftFail, VerdictHardFail, VerdictIncomplete} {
		if c.String() == s {
			*v = c
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", s)
}

type Validation struct {
	Verdict       Verdict  `json:"verdict"`
	Failures      []string `json:"failures,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	NonIndividual bool     `json:"non_individual,omitempty"` // listing page, never a single property
}

// Candidate is a RawResult enriched stage by stage. Stages return copies;
// no stage clears what an earlier stage set.
type Candidate struct {
	Raw          RawResult      `json:"raw"`
	CanonicalURL string         `json:"canonical_url"`
	Domain       string         `json:"domain"`
	Tier         TrustTier      `json:"tier"`
	Facts        ExtractedFacts `json:"facts"`
	PageText     string         `json:"-"`
	Score        float64        `json:"score"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Validation   Validation     `json:"validation"`
}

// Text is the concatenation every extractor and matcher works on.
func (c Candidate) Text() string {
	s := c.Raw.Title + " " + c.Raw.Snippet
	if c.PageText != "" {
		s += " " + c.PageText
	}
	return s
}

type TrustTier string

const (
	TierA    TrustTier = "A"
	TierB    TrustTier = "B"
	TierNone TrustTier = "none"
)
