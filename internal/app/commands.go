package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"propsearch/internal/domain"
)

var ErrEmptyQuery = errors.New("app: empty query")

// WarmService keeps cache entries for known queries fresh.
type WarmService struct {
	search *Orchestrator
	cache  domain.ResultCache
}

func NewWarmService(o *Orchestrator, c domain.ResultCache) *WarmService {
	return &WarmService{search: o, cache: c}
}

// Refresh evicts the cached entry for the query and runs a fresh search,
// which writes the new result through to the cache.
func (s *WarmService) Refresh(ctx context.Context, query string, v domain.Vertical) (domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchResult{}, ErrEmptyQuery
	}
	plan := s.search.builder.Build(query, v)
	if s.cache != nil {
		if err := s.cache.Del(ctx, plan.Vertical, CacheKey(plan)); err != nil {
			log.Warn().Err(err).Str("query", query).Msg("cache evict failed")
		}
	}
	res := s.search.Search(ctx, domain.SearchRequest{Query: query, Vertical: plan.Vertical})
	if res.Diagnostics.CacheHit {
		return res, errors.New("app: entry still cached after evict")
	}
	return res, nil
}
