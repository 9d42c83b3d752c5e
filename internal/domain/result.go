package domain

import (
	"encoding/json"
	"time"
)

type SearchRequest struct {
	Query    string   `json:"query"`
	Vertical Vertical `json:"vertical"`
	// UFRate is CLP per UF. Zero lets the orchestrator resolve it.
	UFRate float64 `json:"uf_rate,omitempty"`
}

type SuggestionKind string

const (
	SuggestNearby SuggestionKind = "nearby_location"
	SuggestBudget SuggestionKind = "budget"
	SuggestArea   SuggestionKind = "area"
	SuggestType   SuggestionKind = "property_type"
	SuggestRefine SuggestionKind = "refine"
)

type Suggestion struct {
	Kind SuggestionKind `json:"kind"`
	Text string         `json:"text"`
}

type StageTiming struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
}

type Diagnostics struct {
	RequestID      string         `json:"request_id"`
	Vertical       Vertical       `json:"vertical"`
	Queries        []string       `json:"queries"`
	ContextQueries []string       `json:"context_queries,omitempty"`
	RawResults     int            `json:"raw_results"`
	ContextResults int            `json:"context_results"`
	Blocked        int            `json:"blocked"`
	Duplicates     int            `json:"duplicates"`
	Ranked         int            `json:"ranked"`
	Scraped        int            `json:"scraped"`
	ScrapeFailures int            `json:"scrape_failures"`
	ProviderErrors []string       `json:"provider_errors,omitempty"`
	CacheHit       bool           `json:"cache_hit"`
	CacheErrors    []string       `json:"cache_errors,omitempty"`
	UFRate         float64        `json:"uf_rate"`
	UFRateFallback bool           `json:"uf_rate_fallback,omitempty"`
	ZoneConfidence ZoneConfidence `json:"zone_confidence,omitempty"`
	Verdicts       map[string]int `json:"verdicts,omitempty"`
	ValidListings  int            `json:"valid_listings"`
	Rerank         string         `json:"rerank"`
	Stages         []StageTiming  `json:"stages"`
	DurationMs     int64          `json:"duration_ms"`
}

type SearchResult struct {
	Intent               SearchIntent     `json:"intent"`
	Vertical             Vertical         `json:"vertical"`
	Zones                *ResolvedZoneSet `json:"zones,omitempty"`
	Results              []Candidate      `json:"results"`
	Rejected             []Candidate      `json:"rejected,omitempty"`
	Insufficient         bool             `json:"insufficient"`
	ExpansionSuggestions []Suggestion     `json:"expansion_suggestions,omitempty"`
	AllowedURLs          []string         `json:"allowed_urls"`
	Context              string           `json:"context"`
	Diagnostics          Diagnostics      `json:"diagnostics"`
}

// SearchRun is the persisted summary of one search call.
type SearchRun struct {
	RequestID     string          `json:"request_id"`
	Vertical      Vertical        `json:"vertical"`
	QueryHash     string          `json:"query_hash"`
	Results       int             `json:"results"`
	Rejected      int             `json:"rejected"`
	ValidListings int             `json:"valid_listings"`
	Insufficient  bool            `json:"insufficient"`
	CacheHit      bool            `json:"cache_hit"`
	DurationMs    int64           `json:"duration_ms"`
	Diagnostics   json.RawMessage `json:"diagnostics,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
