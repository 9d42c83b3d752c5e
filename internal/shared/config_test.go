package shared_test

import (
	"testing"
	"time"

	"propsearch/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SEARCH_API_KEY", "k")
	c := shared.Load()
	if c.CacheTTL != 10*time.Minute || c.ScrapeTopN != 5 || c.MinValidListings != 3 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.PremiumHardFloor != 0.30 || c.PremiumSoftFloor != 0.50 || c.RerankMargin != 0.08 {
		t.Fatalf("unexpected thresholds: %+v", c)
	}
	if c.UFFallbackRate != 39000 || c.MySQLDSN != "" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_TTL_SECONDS", "30")
	t.Setenv("PREMIUM_HARD_FLOOR", "0.25")
	t.Setenv("SEARCH_RPS", "2")
	t.Setenv("SCRAPE_TOP_N", "nope")
	c := shared.Load()
	if c.CacheTTL != 30*time.Second || c.PremiumHardFloor != 0.25 || c.SearchRPS != 2 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.ScrapeTopN != 5 {
		t.Fatalf("invalid integer should fall back to default, got %d", c.ScrapeTopN)
	}
}
