package rerank

import (
	"encoding/json"
	"regexp"
	"strings"

	"propsearch/internal/domain"
)

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ParseOutcome reads {"order":[..],"notes":".."} from model output that may
// be bare JSON, a fenced code block or JSON embedded in prose. order must
// be a permutation of 1..n.
func ParseOutcome(text string, n int) (domain.RerankOutcome, error) {
	for _, cand := range jsonCandidates(text) {
		var out domain.RerankOutcome
		dec := json.NewDecoder(strings.NewReader(cand))
		if err := dec.Decode(&out); err != nil {
			continue
		}
		if !isPermutation(out.Order, n) {
			return domain.RerankOutcome{}, ErrMalformed
		}
		return out, nil
	}
	return domain.RerankOutcome{}, ErrMalformed
}

func jsonCandidates(text string) []string {
	text = strings.TrimSpace(text)
	out := []string{text}
	if m := fenced.FindStringSubmatch(text); len(m) > 1 {
		out = append(out, m[1])
	}
	// a decoder stops after the first value, so trailing prose is fine
	for i := strings.IndexByte(text, '{'); i >= 0; {
		out = append(out, text[i:])
		j := strings.IndexByte(text[i+1:], '{')
		if j < 0 {
			break
		}
		i += j + 1
	}
	return out
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n+1)
	for _, r := range order {
		if r < 1 || r > n || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}
