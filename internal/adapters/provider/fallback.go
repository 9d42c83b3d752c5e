package provider

import (
	"context"

	"github.com/rs/zerolog/log"

	"propsearch/internal/domain"
)

// Fallback asks Secondary once when Primary produced no results at all.
// Errors from both are reported.
type Fallback struct {
	Primary   domain.SearchProvider
	Secondary domain.SearchProvider
}

func (f Fallback) SearchMany(ctx context.Context, queries []string, num int) ([]domain.RawResult, []domain.QueryError) {
	res, errs := f.Primary.SearchMany(ctx, queries, num)
	if len(res) > 0 || f.Secondary == nil {
		return res, errs
	}
	log.Warn().Int("queries", len(queries)).Int("errors", len(errs)).Msg("primary provider returned nothing; using fallback")
	res2, errs2 := f.Secondary.SearchMany(ctx, queries, num)
	return res2, append(errs, errs2...)
}

func (f Fallback) ScrapePage(ctx context.Context, url string, maxLength int) (string, error) {
	text, err := f.Primary.ScrapePage(ctx, url, maxLength)
	if err == nil || f.Secondary == nil {
		return text, err
	}
	return f.Secondary.ScrapePage(ctx, url, maxLength)
}
