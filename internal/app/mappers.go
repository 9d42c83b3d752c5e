package app

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"propsearch/internal/domain"
	"propsearch/internal/querygen"
	"propsearch/internal/textmatch"
)

/********** cache keys **********/

// CacheKey identifies a plan in the result cache. The first provider query
// covers what was searched; the verdict-affecting intent fields cover how
// candidates were admitted, since budget and rooms never reach the queries.
func CacheKey(plan querygen.Plan) string {
	seed := textmatch.Fold(plan.Intent.Query)
	if len(plan.Queries) > 0 {
		seed = plan.Queries[0]
	}
	return hashHex(seed + "\n" + admissionKey(plan.Intent))
}

// admissionKey renders every intent field the validator reads.
func admissionKey(in domain.SearchIntent) string {
	var b strings.Builder
	if in.Budget != nil {
		fmt.Fprintf(&b, "budget=%g %s tol=%g", in.Budget.Amount, in.Budget.Currency, in.Budget.TolerancePct)
		if in.Budget.Min != nil {
			fmt.Fprintf(&b, " min=%g", *in.Budget.Min)
		}
	}
	if in.BedroomsMin != nil {
		fmt.Fprintf(&b, ";bed=%d", *in.BedroomsMin)
	}
	if in.BathroomsMin != nil {
		fmt.Fprintf(&b, ";bath=%d", *in.BathroomsMin)
	}
	if in.ZoneQualifier != nil {
		fmt.Fprintf(&b, ";zone=%s", in.ZoneQualifier.Tag)
	}
	for _, c := range in.HardConstraints {
		fmt.Fprintf(&b, ";hard=%s", c)
	}
	return b.String()
}

func hashHex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

/********** candidates **********/

func (o *Orchestrator) toCandidates(raw []domain.RawResult) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(raw))
	for _, r := range raw {
		c := domain.Candidate{Raw: r}
		c.Facts = o.extractor.Extract(c.Text(), r.URL)
		out = append(out, c)
	}
	return out
}

// mergeFacts fills the gaps of prev with next. Values found earlier are
// never replaced.
func mergeFacts(prev, next domain.ExtractedFacts) domain.ExtractedFacts {
	out := prev
	if out.PriceCLP == nil {
		out.PriceCLP = next.PriceCLP
	}
	if out.PriceUF == nil {
		out.PriceUF = next.PriceUF
	}
	if out.AreaM2 == nil {
		out.AreaM2 = next.AreaM2
	}
	if out.PricePerM2 == nil {
		out.PricePerM2 = next.PricePerM2
	}
	if out.Bedrooms == nil {
		out.Bedrooms = next.Bedrooms
	}
	if out.Bathrooms == nil {
		out.Bathrooms = next.Bathrooms
	}
	if out.URLCategory == "" {
		out.URLCategory = next.URLCategory
	}
	out.FromPage = true
	return out
}

func rerankItems(cands []domain.Candidate) []domain.RerankItem {
	out := make([]domain.RerankItem, len(cands))
	for i, c := range cands {
		out[i] = domain.RerankItem{
			Rank:    i + 1,
			Title:   c.Raw.Title,
			Snippet: c.Raw.Snippet,
			Domain:  c.Domain,
		}
	}
	return out
}

/********** run log **********/

func toRun(res domain.SearchResult, queryKey string) domain.SearchRun {
	d := res.Diagnostics
	b, err := json.Marshal(d)
	if err != nil {
		log.Warn().Err(err).Str("request_id", d.RequestID).Msg("marshal diagnostics")
	}
	return domain.SearchRun{
		RequestID:     d.RequestID,
		Vertical:      res.Vertical,
		QueryHash:     queryKey,
		Results:       len(res.Results),
		Rejected:      len(res.Rejected),
		ValidListings: d.ValidListings,
		Insufficient:  res.Insufficient,
		CacheHit:      d.CacheHit,
		DurationMs:    d.DurationMs,
		Diagnostics:   b,
	}
}

func errStrings[T error](errs []T) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = strings.TrimSpace(e.Error())
	}
	return out
}
