// Package ranking filters, de-duplicates and scores candidates.
package ranking

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"propsearch/internal/domain"
	"propsearch/internal/policy"
	"propsearch/internal/tables"
	"propsearch/internal/textmatch"
)

const (
	wQueryMatch   = 0.25
	wDomainTrust  = 0.25
	wListingType  = 0.20
	wDataRichness = 0.15
	wFreshness    = 0.15

	maxPenalty     = 0.6
	penaltySearch  = 0.15
	penaltyAMP     = 0.10
	penaltyInfo    = 0.20
	signalBonus    = 0.02
	maxSignalBonus = 0.1

	DefaultRerankMargin = 0.08
	rerankWindow        = 3
)

var (
	yearRe       = regexp.MustCompile(`\b(19[89]\d|20\d\d)\b`)
	searchPathRe = regexp.MustCompile(`/(?:search|buscar|busqueda|resultados|categoria|category|tag)(?:/|$)|[?&](?:q|query|s)=`)
	ampRe        = regexp.MustCompile(`(?:/amp(?:/|$)|[?&]amp(?:=|&|$)|\.amp\.|/amp\.html)`)
)

// Stats reports what the filtering steps removed.
type Stats struct {
	Blocked    int
	Duplicates int
}

type Ranker struct {
	policy        *policy.Policy
	blocklist     []string
	trackParams   map[string]bool
	trackPrefixes []string
	stopwords     map[string]bool
	signals       []string
	infoMarkers   []string
	now           func() time.Time
}

func New(t *tables.Tables, p *policy.Policy) *Ranker {
	r := &Ranker{
		policy:      p,
		trackParams: make(map[string]bool, len(t.TrackingParams)),
		stopwords:   make(map[string]bool, len(t.Stopwords)),
		now:         time.Now,
	}
	for _, d := range t.Blocklist {
		r.blocklist = append(r.blocklist, strings.ToLower(d))
	}
	for _, k := range t.TrackingParams {
		r.trackParams[strings.ToLower(k)] = true
	}
	for _, k := range t.TrackingPrefixes {
		r.trackPrefixes = append(r.trackPrefixes, strings.ToLower(k))
	}
	for _, w := range t.Stopwords {
		r.stopwords[textmatch.Fold(w)] = true
	}
	for _, s := range t.ListingSignals {
		r.signals = append(r.signals, textmatch.Fold(s))
	}
	for _, s := range t.InfoTitleMarkers {
		r.infoMarkers = append(r.infoMarkers, textmatch.Fold(s))
	}
	return r
}

// WithClock fixes the reference time used by the freshness score.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	c := *r
	c.now = now
	return &c
}

// Rank drops blocked hosts, removes duplicates by canonical URL (first
// occurrence wins), scores the survivors and sorts them by descending
// score. The sort is stable, so equal scores keep their input order.
func (r *Ranker) Rank(cands []domain.Candidate, query string, v domain.Vertical) ([]domain.Candidate, Stats) {
	var st Stats
	tokens := r.queryTokens(query)
	year := r.now().Year()

	seen := make(map[string]bool, len(cands))
	out := make([]domain.Candidate, 0, len(cands))
	for _, c := range cands {
		host := policy.ExtractDomain(c.Raw.URL)
		if r.Blocked(host) {
			st.Blocked++
			continue
		}
		canon := r.CanonicalURL(c.Raw.URL)
		if seen[canon] {
			st.Duplicates++
			continue
		}
		seen[canon] = true

		c.CanonicalURL = canon
		c.Domain = host
		c.Tier = r.policy.Tier(c.Raw.URL, v)
		c.Breakdown = r.breakdown(c, tokens, v, year)
		c.Score = total(c.Breakdown)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, st
}

// Blocked reports whether host belongs to a non-source domain.
func (r *Ranker) Blocked(host string) bool {
	if host == "" {
		return true
	}
	for _, b := range r.blocklist {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

func (r *Ranker) breakdown(c domain.Candidate, tokens []string, v domain.Vertical, year int) domain.ScoreBreakdown {
	text := textmatch.Fold(c.Text())
	return domain.ScoreBreakdown{
		QueryMatch:   queryMatch(tokens, textmatch.Fold(c.Raw.Title+" "+c.Raw.Snippet)),
		DomainTrust:  policy.TrustOf(c.Tier),
		ListingType:  r.listingType(c.Facts.URLCategory, text, v),
		DataRichness: dataRichness(c.Facts),
		Freshness:    freshness(text, year),
		Penalty:      r.penalty(c, v),
	}
}

func total(b domain.ScoreBreakdown) float64 {
	s := wQueryMatch*b.QueryMatch +
		wDomainTrust*b.DomainTrust +
		wListingType*b.ListingType +
		wDataRichness*b.DataRichness +
		wFreshness*b.Freshness -
		b.Penalty
	s = math.Max(0, math.Min(1, s))
	return math.Round(s*1e4) / 1e4
}

func (r *Ranker) queryTokens(query string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range textmatch.Words(textmatch.Fold(query)) {
		if r.stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func queryMatch(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hit := 0
	for _, t := range tokens {
		if textmatch.ContainsWord(text, t) {
			hit++
		}
	}
	return float64(hit) / float64(len(tokens))
}

func (r *Ranker) listingType(cat domain.URLCategory, text string, v domain.Vertical) float64 {
	if v != domain.VerticalRealEstate {
		return 0.5
	}
	hits := 0
	for _, s := range r.signals {
		if textmatch.ContainsWord(text, s) {
			hits++
		}
	}
	bonus := math.Min(maxSignalBonus, signalBonus*float64(hits))
	base := 0.2
	switch cat {
	case domain.URLSpecific:
		base = 0.9
	case domain.URLListing:
		base = 0.5
	case domain.URLUnknown:
	}
	return math.Min(1, base+bonus)
}

func dataRichness(f domain.ExtractedFacts) float64 {
	s := 0.0
	if f.PriceCLP != nil || f.PriceUF != nil {
		s += 0.35
	}
	if f.AreaM2 != nil {
		s += 0.25
	}
	if f.Bedrooms != nil {
		s += 0.15
	}
	if f.Bathrooms != nil {
		s += 0.10
	}
	if f.PricePerM2 != nil {
		s += 0.15
	}
	return math.Min(1, s)
}

// freshness scores the most recent plausible year mentioned in text.
func freshness(text string, current int) float64 {
	latest := 0
	for _, m := range yearRe.FindAllString(text, -1) {
		y, _ := strconv.Atoi(m)
		if y <= current+1 && y > latest {
			latest = y
		}
	}
	if latest == 0 {
		return 0.5
	}
	switch d := current - latest; {
	case d <= 0:
		return 1.0
	case d == 1:
		return 0.8
	case d == 2:
		return 0.6
	default:
		return 0.3
	}
}

func (r *Ranker) penalty(c domain.Candidate, v domain.Vertical) float64 {
	u := strings.ToLower(c.Raw.URL)
	p := 0.0
	if searchPathRe.MatchString(u) {
		p += penaltySearch
	}
	if ampRe.MatchString(u) {
		p += penaltyAMP
	}
	if v == domain.VerticalRealEstate {
		title := textmatch.Fold(c.Raw.Title)
		for _, m := range r.infoMarkers {
			if textmatch.ContainsWord(title, m) {
				p += penaltyInfo
				break
			}
		}
	}
	return math.Min(maxPenalty, p)
}

// NeedsExternalRerank reports whether the leading scores of a ranked list
// sit within margin of each other. Fewer than two candidates never need it.
func NeedsExternalRerank(ranked []domain.Candidate, margin float64) bool {
	if len(ranked) < 2 {
		return false
	}
	n := rerankWindow
	if len(ranked) < n {
		n = len(ranked)
	}
	return ranked[0].Score-ranked[n-1].Score <= margin
}
