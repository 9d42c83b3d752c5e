package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// QueryError records one provider sub-query that produced nothing.
type QueryError struct {
	Query string
	Err   error
}

func (e QueryError) Error() string { return e.Query + ": " + e.Err.Error() }

type SearchProvider interface {
	// SearchMany runs every query and returns the union de-duplicated by URL.
	// Failed sub-queries contribute no results and are reported in the slice.
	SearchMany(ctx context.Context, queries []string, maxResultsPerQuery int) ([]RawResult, []QueryError)
	// ScrapePage returns visible page text, at most maxLength runes.
	ScrapePage(ctx context.Context, url string, maxLength int) (string, error)
}

type ResultCache interface {
	Get(ctx context.Context, vertical Vertical, queryKey string) (*SearchResult, bool, error)
	Set(ctx context.Context, vertical Vertical, queryKey string, r SearchResult, ttl time.Duration) error
	Del(ctx context.Context, vertical Vertical, queryKey string) error
}

type ExchangeRates interface {
	// CurrentRate returns CLP per UF.
	CurrentRate(ctx context.Context) (float64, error)
}

type RerankItem struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

type RerankOutcome struct {
	Order []int  `json:"order"` // 1-based ranks, a permutation of the input
	Notes string `json:"notes"`
}

type Reranker interface {
	Rerank(ctx context.Context, query string, items []RerankItem) (RerankOutcome, error)
}

type RunLog interface {
	Record(ctx context.Context, run SearchRun) error
}
