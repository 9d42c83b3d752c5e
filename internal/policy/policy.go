package policy

import (
	"net/url"
	"strings"

	"propsearch/internal/domain"
	"propsearch/internal/tables"
	"propsearch/internal/textmatch"
)

const (
	TrustA    = 0.9
	TrustB    = 0.6
	TrustNone = 0.2
)

type tierSet struct {
	a, b []string
}

// Policy classifies source domains per vertical and detects the vertical
// of a free-text request.
type Policy struct {
	order    []domain.Vertical
	tiers    map[domain.Vertical]tierSet
	keywords map[domain.Vertical][]string
	hints    map[domain.Vertical]string
}

func New(t *tables.Tables) *Policy {
	p := &Policy{
		tiers:    make(map[domain.Vertical]tierSet, len(t.Verticals)),
		keywords: make(map[domain.Vertical][]string, len(t.Verticals)),
		hints:    make(map[domain.Vertical]string, len(t.Verticals)),
	}
	for _, name := range t.VerticalOrder {
		p.order = append(p.order, domain.Vertical(name))
	}
	for name, vt := range t.Verticals {
		v := domain.Vertical(name)
		p.tiers[v] = tierSet{a: lowerAll(vt.TierA), b: lowerAll(vt.TierB)}
		kws := make([]string, 0, len(vt.Keywords))
		for _, k := range vt.Keywords {
			if f := textmatch.Fold(k); f != "" {
				kws = append(kws, f)
			}
		}
		p.keywords[v] = kws
		p.hints[v] = vt.Hint
	}
	return p
}

// ExtractDomain returns the lower-cased host without a leading "www.".
// Unparseable input yields "".
func ExtractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func (p *Policy) Tier(rawURL string, v domain.Vertical) domain.TrustTier {
	host := ExtractDomain(rawURL)
	if host == "" {
		return domain.TierNone
	}
	ts, ok := p.tiers[v]
	if !ok {
		return domain.TierNone
	}
	if hostIn(host, ts.a) {
		return domain.TierA
	}
	if hostIn(host, ts.b) {
		return domain.TierB
	}
	return domain.TierNone
}

func (p *Policy) TrustScore(rawURL string, v domain.Vertical) float64 {
	return TrustOf(p.Tier(rawURL, v))
}

func TrustOf(t domain.TrustTier) float64 {
	switch t {
	case domain.TierA:
		return TrustA
	case domain.TierB:
		return TrustB
	}
	return TrustNone
}

// DetectVertical evaluates the keyword sets in table order; the first
// vertical with a whole-word hit wins, else general.
func (p *Policy) DetectVertical(text string) domain.Vertical {
	f := textmatch.Fold(text)
	for _, v := range p.order {
		for _, k := range p.keywords[v] {
			if textmatch.ContainsWord(f, k) {
				return v
			}
		}
	}
	return domain.VerticalGeneral
}

// IsWhitelisted reports whether any vertical ranks the URL above none.
func (p *Policy) IsWhitelisted(rawURL string) bool {
	for v := range p.tiers {
		if p.Tier(rawURL, v) != domain.TierNone {
			return true
		}
	}
	return false
}

// Portals lists the vertical's trusted domains, tier A first.
func (p *Policy) Portals(v domain.Vertical) []string {
	ts := p.tiers[v]
	out := make([]string, 0, len(ts.a)+len(ts.b))
	out = append(out, ts.a...)
	return append(out, ts.b...)
}

func (p *Policy) Hint(v domain.Vertical) string { return p.hints[v] }

func hostIn(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "www."))
	}
	return out
}
