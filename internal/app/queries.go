package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"propsearch/internal/adapters/observability"
	"propsearch/internal/admission"
	"propsearch/internal/domain"
	"propsearch/internal/facts"
	"propsearch/internal/intent"
	"propsearch/internal/policy"
	"propsearch/internal/querygen"
	"propsearch/internal/ranking"
	"propsearch/internal/tables"
	"propsearch/internal/zones"
)

var ErrProviderRequired = errors.New("app: search provider is required")

type Config struct {
	MinValidListings int
	ScrapeTopN       int
	ScrapeMaxLength  int
	ResultsPerQuery  int
	CacheTTL         time.Duration
	RerankMargin     float64
	UFFallback       float64 // CLP per UF when no live rate is available
	Admission        admission.Config
}

func DefaultConfig() Config {
	return Config{
		MinValidListings: 3,
		ScrapeTopN:       5,
		ScrapeMaxLength:  20000,
		ResultsPerQuery:  10,
		CacheTTL:         10 * time.Minute,
		RerankMargin:     ranking.DefaultRerankMargin,
		UFFallback:       39000,
		Admission:        admission.DefaultConfig(),
	}
}

// Deps are the collaborators of the orchestrator. Only Provider is
// required; a nil Cache, Rates, Reranker or RunLog disables that step.
type Deps struct {
	Tables   *tables.Tables
	Provider domain.SearchProvider
	Cache    domain.ResultCache
	Rates    domain.ExchangeRates
	Reranker domain.Reranker
	RunLog   domain.RunLog
}

type Orchestrator struct {
	cfg Config

	provider domain.SearchProvider
	cache    domain.ResultCache
	rates    domain.ExchangeRates
	reranker domain.Reranker
	runLog   domain.RunLog

	policy    *policy.Policy
	parser    *intent.Parser
	builder   *querygen.Builder
	extractor *facts.Extractor
	ranker    *ranking.Ranker
	zones     *zones.Resolver
	validator *admission.Validator
	expander  expander

	newID func() string
	// runs tracks in-flight run-log writes so Close can wait for them.
	runs chan struct{}
}

func New(d Deps, cfg Config) (*Orchestrator, error) {
	if d.Provider == nil {
		return nil, ErrProviderRequired
	}
	t := d.Tables
	if t == nil {
		t = tables.Default()
	}
	def := DefaultConfig()
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = def.ResultsPerQuery
	}
	if cfg.ScrapeMaxLength <= 0 {
		cfg.ScrapeMaxLength = def.ScrapeMaxLength
	}
	if cfg.UFFallback <= 0 {
		cfg.UFFallback = def.UFFallback
	}
	if cfg.Admission == (admission.Config{}) {
		cfg.Admission = def.Admission
	}

	p := policy.New(t)
	parser := intent.New(t)
	return &Orchestrator{
		cfg:       cfg,
		provider:  d.Provider,
		cache:     d.Cache,
		rates:     d.Rates,
		reranker:  d.Reranker,
		runLog:    d.RunLog,
		policy:    p,
		parser:    parser,
		builder:   querygen.New(t, p, parser),
		extractor: facts.New(),
		ranker:    ranking.New(t, p),
		zones:     zones.New(t),
		validator: admission.New(cfg.Admission),
		expander:  newExpander(t),
		newID:     uuid.NewString,
		runs:      make(chan struct{}, 64),
	}, nil
}

// Intent parses a query without searching.
func (o *Orchestrator) Intent(query string) domain.SearchIntent { return o.parser.Parse(query) }

type DomainInfo struct {
	Domain string           `json:"domain"`
	Tier   domain.TrustTier `json:"tier"`
	Trust  float64          `json:"trust"`
}

func (o *Orchestrator) DomainTier(rawURL string, v domain.Vertical) DomainInfo {
	tier := o.policy.Tier(rawURL, v)
	return DomainInfo{Domain: policy.ExtractDomain(rawURL), Tier: tier, Trust: policy.TrustOf(tier)}
}

type stageClock struct {
	diag *domain.Diagnostics
	last time.Time
}

func (s *stageClock) mark(name string) {
	now := time.Now()
	s.diag.Stages = append(s.diag.Stages, domain.StageTiming{Name: name, DurationMs: now.Sub(s.last).Milliseconds()})
	s.last = now
}

// Search runs the whole pipeline for one request. It never fails: every
// collaborator error ends up in the diagnostics.
func (o *Orchestrator) Search(ctx context.Context, req domain.SearchRequest) domain.SearchResult {
	start := time.Now()
	diag := domain.Diagnostics{RequestID: o.newID()}
	clock := &stageClock{diag: &diag, last: start}

	plan := o.builder.Build(req.Query, req.Vertical)
	v := plan.Vertical
	diag.Vertical = v
	diag.Queries = plan.Queries
	clock.mark("plan")

	key := CacheKey(plan)
	if o.cache != nil {
		cached, ok, err := o.cache.Get(ctx, v, key)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("request_id", diag.RequestID).Msg("cache get failed; treating as miss")
			diag.CacheErrors = append(diag.CacheErrors, err.Error())
		case ok && cached != nil:
			res := *cached
			res.Diagnostics.RequestID = diag.RequestID
			res.Diagnostics.CacheHit = true
			res.Diagnostics.DurationMs = time.Since(start).Milliseconds()
			o.finish(res, key, "cached", time.Since(start))
			return res
		}
	}

	rate := req.UFRate
	if rate <= 0 {
		rate, diag.UFRateFallback = o.ufRate(ctx)
	}
	diag.UFRate = rate

	resolveZones := v == domain.VerticalRealEstate && plan.Intent.ZoneQualifier != nil
	var contextQueries []string
	if resolveZones {
		contextQueries = plan.ContextQueries
	}
	diag.ContextQueries = contextQueries

	// fan-out; each branch owns its slot until Wait returns
	var (
		raw, contextRaw   []domain.RawResult
		errs, contextErrs []domain.QueryError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, errs = o.provider.SearchMany(gctx, plan.Queries, o.cfg.ResultsPerQuery)
		return nil
	})
	if len(contextQueries) > 0 {
		g.Go(func() error {
			contextRaw, contextErrs = o.provider.SearchMany(gctx, contextQueries, o.cfg.ResultsPerQuery)
			return nil
		})
	}
	_ = g.Wait()
	diag.RawResults = len(raw)
	diag.ContextResults = len(contextRaw)
	diag.ProviderErrors = append(errStrings(errs), errStrings(contextErrs)...)
	clock.mark("search")

	ranked, stats := o.ranker.Rank(o.toCandidates(raw), req.Query, v)
	diag.Blocked, diag.Duplicates = stats.Blocked, stats.Duplicates
	clock.mark("rank")

	if o.scrape(ctx, ranked, &diag) > 0 {
		ranked, _ = o.ranker.Rank(ranked, req.Query, v)
	}
	diag.Ranked = len(ranked)
	clock.mark("scrape")

	var zoneSet *domain.ResolvedZoneSet
	if resolveZones {
		z := o.zones.Resolve(plan.Intent, contextRaw)
		zoneSet = &z
		diag.ZoneConfidence = z.Confidence
		clock.mark("zones")
	}

	validated, outcome := o.validator.Validate(ranked, admission.Request{
		Intent:   plan.Intent,
		Zones:    zoneSet,
		UFRate:   rate,
		Vertical: v,
	})
	diag.Verdicts = outcome.Counts
	admitted := admission.Admitted(validated)
	rejected := append(append([]domain.Candidate(nil), outcome.HardFailed...), outcome.Incomplete...)
	clock.mark("validate")

	diag.ValidListings = countValidListings(admitted)
	insufficient := len(admitted) == 0
	if v == domain.VerticalRealEstate {
		insufficient = diag.ValidListings < o.cfg.MinValidListings
	}

	admitted, diag.Rerank = o.applyRerank(ctx, req.Query, admitted)
	if diag.Rerank != rerankSkipped {
		clock.mark("rerank")
	}

	res := domain.SearchResult{
		Intent:       plan.Intent,
		Vertical:     v,
		Zones:        zoneSet,
		Results:      admitted,
		Rejected:     rejected,
		Insufficient: insufficient,
	}
	if res.Results == nil {
		res.Results = []domain.Candidate{}
	}
	if insufficient {
		res.ExpansionSuggestions = o.expander.Suggest(plan.Intent, v)
	}
	pl := buildPayload(res)
	res.Context, res.AllowedURLs = pl.Text, pl.Allowed
	if res.AllowedURLs == nil {
		res.AllowedURLs = []string{}
	}
	clock.mark("assemble")

	diag.DurationMs = time.Since(start).Milliseconds()
	res.Diagnostics = diag

	if o.cache != nil && len(res.Results) > 0 {
		if err := o.cache.Set(ctx, v, key, res, o.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Str("request_id", diag.RequestID).Msg("cache set failed")
			res.Diagnostics.CacheErrors = append(res.Diagnostics.CacheErrors, err.Error())
		}
	}

	outcomeLabel := "ok"
	if insufficient {
		outcomeLabel = "insufficient"
	}
	observability.ObserveVerdicts(outcome.Counts)
	o.finish(res, key, outcomeLabel, time.Since(start))
	return res
}

// scrape fetches page text for the top candidates in parallel and folds
// newly found facts in. It returns the number of pages read.
func (o *Orchestrator) scrape(ctx context.Context, ranked []domain.Candidate, diag *domain.Diagnostics) int {
	n := min(o.cfg.ScrapeTopN, len(ranked))
	if n <= 0 {
		return 0
	}
	texts := make([]string, n)
	failed := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			text, err := o.provider.ScrapePage(gctx, ranked[i].Raw.URL, o.cfg.ScrapeMaxLength)
			if err != nil {
				log.Warn().Err(err).Str("url", ranked[i].Raw.URL).Msg("scrape failed")
				failed[i] = true
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	scraped := 0
	for i := 0; i < n; i++ {
		if failed[i] {
			diag.ScrapeFailures++
			continue
		}
		if texts[i] == "" {
			continue
		}
		c := &ranked[i]
		c.PageText = texts[i]
		c.Facts = mergeFacts(c.Facts, o.extractor.Extract(c.Text(), c.Raw.URL))
		scraped++
	}
	diag.Scraped = scraped
	return scraped
}

func (o *Orchestrator) ufRate(ctx context.Context) (float64, bool) {
	if o.rates == nil {
		return o.cfg.UFFallback, true
	}
	r, err := o.rates.CurrentRate(ctx)
	if err != nil || r <= 0 {
		log.Warn().Err(err).Float64("fallback", o.cfg.UFFallback).Msg("uf rate unavailable; using fallback")
		return o.cfg.UFFallback, true
	}
	return r, false
}

// countValidListings counts admitted individual listings from trusted
// portals.
func countValidListings(admitted []domain.Candidate) int {
	n := 0
	for _, c := range admitted {
		if c.Facts.URLCategory == domain.URLSpecific && !c.Validation.NonIndividual && c.Tier != domain.TierNone {
			n++
		}
	}
	return n
}

func (o *Orchestrator) finish(res domain.SearchResult, key, outcome string, dur time.Duration) {
	d := res.Diagnostics
	observability.ObserveSearch(string(res.Vertical), outcome, dur)
	log.Info().
		Str("request_id", d.RequestID).
		Str("vertical", string(res.Vertical)).
		Bool("cache_hit", d.CacheHit).
		Int("raw", d.RawResults).
		Int("ranked", d.Ranked).
		Int("results", len(res.Results)).
		Int("rejected", len(res.Rejected)).
		Int("valid_listings", d.ValidListings).
		Int("provider_errors", len(d.ProviderErrors)).
		Bool("insufficient", res.Insufficient).
		Dur("took", dur).
		Msg("search_completed")

	if o.runLog == nil {
		return
	}
	run := toRun(res, key)
	run.CreatedAt = time.Now().UTC()
	select {
	case o.runs <- struct{}{}:
	default:
		log.Warn().Str("request_id", d.RequestID).Msg("run log backlog full; dropping run")
		return
	}
	go func() {
		defer func() { <-o.runs }()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.runLog.Record(ctx, run); err != nil {
			log.Warn().Err(err).Str("request_id", run.RequestID).Msg("run log write failed")
		}
	}()
}

// Close waits for pending run-log writes, up to ctx.
func (o *Orchestrator) Close(ctx context.Context) error {
	held := 0
	defer func() {
		for ; held > 0; held-- {
			<-o.runs
		}
	}()
	for held < cap(o.runs) {
		select {
		case o.runs <- struct{}{}:
			held++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
