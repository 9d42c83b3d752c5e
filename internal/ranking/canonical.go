package ranking

import (
	"net/url"
	"strings"
)

// CanonicalURL normalises a URL for de-duplication: lower-case scheme and
// host, no "www.", no fragment, no trailing slash, tracking parameters
// removed and the remaining query sorted with lower-cased keys.
func (r *Ranker) CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")

	q := url.Values{}
	for k, vs := range u.Query() {
		lk := strings.ToLower(k)
		if r.tracking(lk) {
			continue
		}
		for _, v := range vs {
			q.Add(lk, v)
		}
	}

	out := strings.ToLower(u.Scheme) + "://" + host + path
	if enc := q.Encode(); enc != "" {
		out += "?" + enc
	}
	return out
}

func (r *Ranker) tracking(key string) bool {
	if r.trackParams[key] {
		return true
	}
	for _, p := range r.trackPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
