package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsearch/internal/app"
	"propsearch/internal/domain"
	"propsearch/internal/policy"
)

// ---- fakes ----

type fakeProvider struct {
	mu      sync.Mutex
	main    []domain.RawResult
	context []domain.RawResult
	errs    []domain.QueryError
	pages   map[string]string
	calls   [][]string
}

func (f *fakeProvider) SearchMany(_ context.Context, queries []string, _ int) ([]domain.RawResult, []domain.QueryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, queries)
	if len(queries) > 0 && strings.HasPrefix(queries[0], "mejores sectores") {
		return f.context, nil
	}
	return f.main, f.errs
}

func (f *fakeProvider) ScrapePage(_ context.Context, url string, _ int) (string, error) {
	if text, ok := f.pages[url]; ok {
		return text, nil
	}
	return "", errors.New("timeout")
}

func (f *fakeProvider) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string]domain.SearchResult
	sets  int
	dels  int
	err   error
}

func (c *fakeCache) k(v domain.Vertical, key string) string { return string(v) + ":" + key }

func (c *fakeCache) Get(_ context.Context, v domain.Vertical, key string) (*domain.SearchResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	r, ok := c.store[c.k(v, key)]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *fakeCache) Set(_ context.Context, v domain.Vertical, key string, r domain.SearchResult, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.store == nil {
		c.store = map[string]domain.SearchResult{}
	}
	c.sets++
	c.store[c.k(v, key)] = r
	return nil
}

func (c *fakeCache) Del(_ context.Context, v domain.Vertical, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels++
	delete(c.store, c.k(v, key))
	return nil
}

type fakeRates struct {
	rate float64
	err  error
}

func (r fakeRates) CurrentRate(context.Context) (float64, error) { return r.rate, r.err }

type reverser struct {
	err   error
	calls int
}

func (r *reverser) Rerank(_ context.Context, _ string, items []domain.RerankItem) (domain.RerankOutcome, error) {
	r.calls++
	if r.err != nil {
		return domain.RerankOutcome{}, r.err
	}
	order := make([]int, len(items))
	for i := range items {
		order[i] = len(items) - i
	}
	return domain.RerankOutcome{Order: order, Notes: "invertido"}, nil
}

type fakeRunLog struct {
	mu   sync.Mutex
	runs []domain.SearchRun
}

func (l *fakeRunLog) Record(_ context.Context, run domain.SearchRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, run)
	return nil
}

// ---- fixtures ----

const temucoQuery = "casa en Temuco hasta 5000 UF 3 dormitorios"

const (
	urlPortal  = "https://www.portalinmobiliario.com/MLC-1111111-casa-en-temuco"
	urlToctoc  = "https://www.toctoc.com/propiedades/compra/casa/temuco/2222222"
	urlYapo    = "https://www.yapo.cl/temuco/casas/3333333"
	urlListing = "https://www.portalinmobiliario.com/venta/casa/temuco"
	urlChileP  = "https://www.chilepropiedades.cl/ficha/temuco/casa-4444444"
	urlFB      = "https://www.facebook.com/marketplace/item/555"
	urlBlog    = "https://miblog.cl/guia-comprar-casa-temuco"
)

func temucoResults() []domain.RawResult {
	return []domain.RawResult{
		{Title: "Casa en venta Temuco 4.800 UF", URL: urlPortal, Snippet: "3 dormitorios 2 baños 140 m2", Position: 1},
		{Title: "Casa 5.200 UF Temuco", URL: urlToctoc, Snippet: "4 dormitorios, 3 baños", Position: 2},
		{Title: "Casa Temuco 9.000 UF", URL: urlYapo, Snippet: "5 dormitorios", Position: 3},
		{Title: "Casas en venta en Temuco", URL: urlListing, Snippet: "1.245 resultados", Position: 4},
		{Title: "Casa 4.500 UF Temuco", URL: urlChileP, Snippet: "3 dormitorios 1 baño", Position: 5},
		{Title: "Casa Temuco", URL: urlFB, Snippet: "4.000 UF", Position: 6},
		{Title: "Guía: cómo comprar casa en Temuco", URL: urlBlog, Snippet: "consejos", Position: 7},
	}
}

func newOrchestrator(t *testing.T, d app.Deps, mutate ...func(*app.Config)) *app.Orchestrator {
	t.Helper()
	cfg := app.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	o, err := app.New(d, cfg)
	require.NoError(t, err)
	return o
}

func urls(cs []domain.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Raw.URL
	}
	return out
}

// ---- tests ----

func TestNew_RequiresProvider(t *testing.T) {
	_, err := app.New(app.Deps{}, app.DefaultConfig())
	assert.ErrorIs(t, err, app.ErrProviderRequired)
}

func TestSearch_ZeroProviderResults(t *testing.T) {
	prov := &fakeProvider{errs: []domain.QueryError{{Query: "casa venta Temuco", Err: errors.New("status 503")}}}
	cache := &fakeCache{}
	o := newOrchestrator(t, app.Deps{Provider: prov, Cache: cache})

	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery})

	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Results)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.AllowedURLs)
	require.NotEmpty(t, res.ExpansionSuggestions)

	kinds := map[domain.SuggestionKind]string{}
	for _, s := range res.ExpansionSuggestions {
		kinds[s.Kind] = s.Text
	}
	assert.Contains(t, kinds[domain.SuggestNearby], "Padre Las Casas")
	assert.Contains(t, kinds[domain.SuggestBudget], "6.250 UF")
	assert.Contains(t, kinds[domain.SuggestType], "casa o departamento")

	assert.Contains(t, res.Context, "No se encontraron candidatos")
	assert.Contains(t, res.Context, "(ninguna)")
	assert.NotContains(t, res.Context, "https://")
	assert.Equal(t, []string{"casa venta Temuco: status 503"}, res.Diagnostics.ProviderErrors)
	assert.Zero(t, cache.sets, "empty results are not cached")
	assert.True(t, res.Diagnostics.UFRateFallback)
	assert.Equal(t, 39000.0, res.Diagnostics.UFRate)
}

func TestSearch_RealEstatePipeline(t *testing.T) {
	prov := &fakeProvider{
		main:  temucoResults(),
		pages: map[string]string{urlPortal: "Casa con quincho y piscina. Gastos comunes $80.000"},
	}
	cache := &fakeCache{}
	runs := &fakeRunLog{}
	o := newOrchestrator(t, app.Deps{Provider: prov, Cache: cache, RunLog: runs})

	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, Vertical: domain.VerticalAuto, UFRate: 40000})
	d := res.Diagnostics

	assert.Equal(t, domain.VerticalRealEstate, res.Vertical)
	assert.Equal(t, domain.PropertyHouse, res.Intent.PropertyType)
	assert.NotEmpty(t, d.RequestID)
	assert.Equal(t, 40000.0, d.UFRate)
	assert.False(t, d.UFRateFallback)
	assert.Equal(t, 7, d.RawResults)
	assert.Equal(t, 1, d.Blocked)
	assert.Equal(t, 6, d.Ranked)
	assert.Equal(t, 5, d.Scraped+d.ScrapeFailures)
	assert.Equal(t, "skipped", d.Rerank)

	assert.ElementsMatch(t, []string{urlPortal, urlToctoc, urlListing, urlChileP}, urls(res.Results))
	assert.ElementsMatch(t, []string{urlYapo, urlBlog}, urls(res.Rejected))
	assert.Equal(t, map[string]int{"PASS": 4, "HARD_FAIL": 1, "INCOMPLETE": 1}, d.Verdicts)
	assert.Equal(t, 3, d.ValidListings)
	assert.False(t, res.Insufficient)
	assert.Empty(t, res.ExpansionSuggestions)

	for _, c := range res.Results {
		if c.Facts.URLCategory == domain.URLListing {
			assert.True(t, c.Validation.NonIndividual, c.Raw.URL)
		}
	}
	for _, c := range res.Rejected {
		if c.Raw.URL == urlYapo {
			require.NotEmpty(t, c.Validation.Failures)
		}
	}

	// the allow-list only carries candidate URLs, individual listings first
	require.Len(t, res.AllowedURLs, 4)
	assert.Equal(t, urlListing, res.AllowedURLs[3])
	for i, u := range res.AllowedURLs {
		assert.Contains(t, urls(res.Results), u)
		assert.Contains(t, res.Context, fmt.Sprintf("%d. %s\n", i+1, u))
	}
	listingAt := strings.Index(res.Context, "PÁGINAS DE LISTADO")
	require.Positive(t, listingAt)
	assert.Greater(t, strings.Index(res.Context, urlListing), listingAt)
	assert.Less(t, strings.Index(res.Context, urlPortal), listingAt)
	assert.Contains(t, res.Context, "INTENCIÓN DETECTADA: casa · venta · Temuco · hasta 5.000 UF")
	assert.NotContains(t, res.Context, urlYapo)

	// cached second call
	again := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	assert.True(t, again.Diagnostics.CacheHit)
	assert.NotEqual(t, d.RequestID, again.Diagnostics.RequestID)
	assert.Equal(t, urls(res.Results), urls(again.Results))
	assert.Equal(t, 1, prov.searchCalls())
	assert.Equal(t, 1, cache.sets)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, o.Close(ctx))
	runs.mu.Lock()
	defer runs.mu.Unlock()
	require.Len(t, runs.runs, 2)
	hits := 0
	for _, r := range runs.runs {
		assert.Equal(t, domain.VerticalRealEstate, r.Vertical)
		assert.Len(t, r.QueryHash, 40)
		assert.NotEmpty(t, r.Diagnostics)
		if r.CacheHit {
			hits++
		}
	}
	assert.Equal(t, 1, hits)
}

func TestSearch_CacheKeyFollowsBudget(t *testing.T) {
	prov := &fakeProvider{main: temucoResults()}
	cache := &fakeCache{}
	o := newOrchestrator(t, app.Deps{Provider: prov, Cache: cache})
	ctx := context.Background()

	wide := o.Search(ctx, domain.SearchRequest{Query: "casa en Temuco hasta 10000 UF 3 dormitorios", UFRate: 40000})
	require.False(t, wide.Diagnostics.CacheHit)
	assert.Contains(t, urls(wide.Results), urlYapo)

	// same provider queries, tighter budget: must be validated afresh
	narrow := o.Search(ctx, domain.SearchRequest{Query: "casa en Temuco hasta 3000 UF 3 dormitorios", UFRate: 40000})
	assert.Equal(t, wide.Diagnostics.Queries, narrow.Diagnostics.Queries)
	assert.False(t, narrow.Diagnostics.CacheHit)
	assert.Equal(t, 3000.0, narrow.Intent.Budget.Amount)
	assert.NotContains(t, urls(narrow.Results), urlYapo)
	assert.Contains(t, urls(narrow.Rejected), urlYapo)
	assert.Equal(t, 2, prov.searchCalls())

	// rooms reach the validator too
	rooms := o.Search(ctx, domain.SearchRequest{Query: "casa en Temuco hasta 10000 UF 5 dormitorios", UFRate: 40000})
	assert.False(t, rooms.Diagnostics.CacheHit)

	again := o.Search(ctx, domain.SearchRequest{Query: "Casa en Temuco hasta 10000 UF 3 dormitorios", UFRate: 40000})
	assert.True(t, again.Diagnostics.CacheHit, "same intent, different casing")
	assert.Equal(t, 10000.0, again.Intent.Budget.Amount)
}

func TestSearch_ScrapedFactsFillGaps(t *testing.T) {
	prov := &fakeProvider{
		main: []domain.RawResult{
			{Title: "Casa en Temuco", URL: urlPortal, Snippet: "Hermosa casa familiar"},
		},
		pages: map[string]string{urlPortal: "Precio 4.900 UF. 3 dormitorios, 2 baños, 150 m2 construidos"},
	}
	o := newOrchestrator(t, app.Deps{Provider: prov})

	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	require.Len(t, res.Results, 1)
	f := res.Results[0].Facts
	assert.True(t, f.FromPage)
	require.NotNil(t, f.PriceUF)
	assert.Equal(t, 4900.0, *f.PriceUF)
	require.NotNil(t, f.Bedrooms)
	assert.Equal(t, 3, *f.Bedrooms)
	assert.Equal(t, domain.VerdictPass, res.Results[0].Validation.Verdict)
	assert.Equal(t, 1, res.Diagnostics.Scraped)
	// one listing is below the minimum
	assert.True(t, res.Insufficient)
	assert.NotEmpty(t, res.ExpansionSuggestions)
}

func TestSearch_Rerank(t *testing.T) {
	base := newOrchestrator(t, app.Deps{Provider: &fakeProvider{main: temucoResults()}})
	baseline := urls(base.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000}).Results)
	require.Len(t, baseline, 4)

	always := func(c *app.Config) { c.RerankMargin = 1 }

	rr := &reverser{}
	o := newOrchestrator(t, app.Deps{Provider: &fakeProvider{main: temucoResults()}, Reranker: rr}, always)
	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	assert.Equal(t, 1, rr.calls)
	assert.Equal(t, "applied", res.Diagnostics.Rerank)
	got := urls(res.Results)
	for i := range baseline {
		assert.Equal(t, baseline[len(baseline)-1-i], got[i])
	}

	broken := &reverser{err: errors.New("model timeout")}
	o = newOrchestrator(t, app.Deps{Provider: &fakeProvider{main: temucoResults()}, Reranker: broken}, always)
	res = o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	assert.Equal(t, "failed", res.Diagnostics.Rerank)
	assert.Equal(t, baseline, urls(res.Results))
}

func TestSearch_ZoneQualifier(t *testing.T) {
	prov := &fakeProvider{
		main: []domain.RawResult{
			{Title: "Casa en el Centro de Temuco 6.000 UF", URL: "https://www.portalinmobiliario.com/MLC-5555555", Snippet: "4 dormitorios"},
			{Title: "Casa Los Castaños Temuco 7.500 UF", URL: "https://www.portalinmobiliario.com/MLC-6666666", Snippet: "4 dormitorios"},
		},
		context: []domain.RawResult{
			{Title: "Dónde vivir en Temuco", Snippet: "El sector Los Castaños es exclusivo y de alta plusvalía."},
		},
	}
	o := newOrchestrator(t, app.Deps{Provider: prov})

	res := o.Search(context.Background(), domain.SearchRequest{Query: "casa en Temuco sector alto hasta 8000 UF", UFRate: 40000})

	require.NotNil(t, res.Zones)
	assert.Equal(t, domain.ZoneHigh, res.Zones.Confidence)
	assert.Contains(t, res.Zones.SectorsMatching, "Los Castaños")
	assert.Contains(t, res.Zones.SectorsExcluded, "Centro")
	assert.Len(t, res.Diagnostics.ContextQueries, 2)
	assert.Equal(t, 1, res.Diagnostics.ContextResults)
	assert.Equal(t, 2, prov.searchCalls())

	assert.Equal(t, []string{"https://www.portalinmobiliario.com/MLC-6666666"}, urls(res.Results))
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, domain.VerdictHardFail, res.Rejected[0].Validation.Verdict)
	assert.Contains(t, res.Context, "ZONAS RESUELTAS (confianza high)")
}

func TestSearch_NoContextQueriesWithoutQualifier(t *testing.T) {
	prov := &fakeProvider{main: temucoResults()}
	o := newOrchestrator(t, app.Deps{Provider: prov})
	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	assert.Nil(t, res.Zones)
	assert.Empty(t, res.Diagnostics.ContextQueries)
	assert.Equal(t, 1, prov.searchCalls())
}

func TestSearch_ExchangeRates(t *testing.T) {
	prov := &fakeProvider{}
	o := newOrchestrator(t, app.Deps{Provider: prov, Rates: fakeRates{rate: 39512.5}})
	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery})
	assert.Equal(t, 39512.5, res.Diagnostics.UFRate)
	assert.False(t, res.Diagnostics.UFRateFallback)

	o = newOrchestrator(t, app.Deps{Provider: prov, Rates: fakeRates{err: errors.New("down")}}, func(c *app.Config) { c.UFFallback = 38000 })
	res = o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery})
	assert.Equal(t, 38000.0, res.Diagnostics.UFRate)
	assert.True(t, res.Diagnostics.UFRateFallback)
}

func TestSearch_CacheUnavailableIsAMiss(t *testing.T) {
	prov := &fakeProvider{main: temucoResults()}
	cache := &fakeCache{err: errors.New("connection refused")}
	o := newOrchestrator(t, app.Deps{Provider: prov, Cache: cache})

	res := o.Search(context.Background(), domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	assert.False(t, res.Diagnostics.CacheHit)
	assert.NotEmpty(t, res.Results)
	assert.Len(t, res.Diagnostics.CacheErrors, 2)
}

func TestSearch_OtherVertical(t *testing.T) {
	prov := &fakeProvider{main: []domain.RawResult{
		{Title: "Ley 21.461 Devuelve mi casa", URL: "https://www.bcn.cl/leychile/navegar?idNorma=1177286", Snippet: "ley de arriendo"},
		{Title: "Arriendo: qué cambia", URL: "https://www.emol.com/noticias/Economia/2022/06/30/1065432/ley-arriendo.html", Snippet: "nueva ley"},
	}}
	o := newOrchestrator(t, app.Deps{Provider: prov})

	res := o.Search(context.Background(), domain.SearchRequest{Query: "ley de arriendo", Vertical: domain.VerticalLegal})
	assert.Equal(t, domain.VerticalLegal, res.Vertical)
	assert.Len(t, res.Results, 2)
	assert.False(t, res.Insufficient)
	assert.Nil(t, res.Zones)
	assert.Contains(t, res.Context, "VERTICAL: legal")
	for _, c := range res.Results {
		assert.Equal(t, domain.VerdictPass, c.Validation.Verdict)
	}

	empty := newOrchestrator(t, app.Deps{Provider: &fakeProvider{}})
	res = empty.Search(context.Background(), domain.SearchRequest{Query: "ley de arriendo", Vertical: domain.VerticalLegal})
	assert.True(t, res.Insufficient)
	require.Len(t, res.ExpansionSuggestions, 1)
	assert.Equal(t, domain.SuggestRefine, res.ExpansionSuggestions[0].Kind)
}

func TestWarmService_Refresh(t *testing.T) {
	prov := &fakeProvider{main: temucoResults()}
	cache := &fakeCache{}
	o := newOrchestrator(t, app.Deps{Provider: prov, Cache: cache})
	ctx := context.Background()

	first := o.Search(ctx, domain.SearchRequest{Query: temucoQuery, UFRate: 40000})
	require.NotEmpty(t, first.Results)

	w := app.NewWarmService(o, cache)
	res, err := w.Refresh(ctx, temucoQuery, domain.VerticalAuto)
	require.NoError(t, err)
	assert.False(t, res.Diagnostics.CacheHit)
	assert.Equal(t, 1, cache.dels)
	assert.Equal(t, 2, cache.sets)
	assert.Equal(t, 2, prov.searchCalls())

	_, err = w.Refresh(ctx, "   ", domain.VerticalAuto)
	assert.ErrorIs(t, err, app.ErrEmptyQuery)
}

func TestIntentAndDomainTier(t *testing.T) {
	o := newOrchestrator(t, app.Deps{Provider: &fakeProvider{}})
	in := o.Intent(temucoQuery)
	require.NotNil(t, in.Budget)
	assert.Equal(t, 5000.0, in.Budget.Amount)

	info := o.DomainTier("https://www.portalinmobiliario.com/MLC-1", domain.VerticalRealEstate)
	assert.Equal(t, "portalinmobiliario.com", info.Domain)
	assert.Equal(t, domain.TierA, info.Tier)
	assert.Equal(t, policy.TrustA, info.Trust)
}
