package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"propsearch/internal/domain"
	"propsearch/internal/ranking"
)

const (
	rerankSkipped = "skipped"
	rerankApplied = "applied"
	rerankFailed  = "failed"

	maxRerankItems = 8
)

// applyRerank lets the external re-ranker reorder the head of the list when
// the leading scores are too close to call. The tail keeps its order, and
// any error keeps the original order.
func (o *Orchestrator) applyRerank(ctx context.Context, query string, cands []domain.Candidate) ([]domain.Candidate, string) {
	if o.reranker == nil || !ranking.NeedsExternalRerank(cands, o.cfg.RerankMargin) {
		return cands, rerankSkipped
	}
	n := min(len(cands), maxRerankItems)
	head := cands[:n]

	res, err := o.reranker.Rerank(ctx, query, rerankItems(head))
	if err != nil || !validOrder(res.Order, n) {
		log.Warn().Err(err).Int("items", n).Msg("rerank failed; keeping heuristic order")
		return cands, rerankFailed
	}

	out := make([]domain.Candidate, 0, len(cands))
	for _, rank := range res.Order {
		out = append(out, head[rank-1])
	}
	out = append(out, cands[n:]...)
	log.Debug().Ints("order", res.Order).Str("notes", res.Notes).Msg("rerank applied")
	return out, rerankApplied
}

// validOrder guards against re-rankers that do not validate their own output.
func validOrder(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make(map[int]bool, n)
	for _, r := range order {
		if r < 1 || r > n || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}
