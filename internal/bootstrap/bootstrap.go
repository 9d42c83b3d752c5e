// Package bootstrap builds the orchestrator and its adapters from Config.
// Both binaries share it so the API and the warmer search the same way.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"propsearch/internal/adapters/exchange"
	"propsearch/internal/adapters/provider"
	redisad "propsearch/internal/adapters/redis"
	"propsearch/internal/adapters/rerank"
	"propsearch/internal/admission"
	"propsearch/internal/app"
	"propsearch/internal/domain"
	"propsearch/internal/shared"
	mysqlrepo "propsearch/internal/storage/mysql"
	"propsearch/internal/tables"
)

type Stack struct {
	Orchestrator *app.Orchestrator
	Cache        *redisad.Cache
	Runs         *mysqlrepo.Repo // nil when MYSQL_DSN is unset

	db *sql.DB
}

// Build wires the search stack. Only the search provider is mandatory. An
// unreachable Redis is logged and tolerated; the re-ranker and the run log
// are enabled by RERANK_API_KEY and MYSQL_DSN.
func Build(ctx context.Context, cfg shared.Config, withRunLog bool) (_ *Stack, err error) {
	tbl, err := tables.Load(cfg.TablesPath)
	if err != nil {
		return nil, err
	}

	primary, err := provider.New(cfg.SearchBase, cfg.SearchKey, provider.Options{
		Name:          "primary",
		RPS:           cfg.SearchRPS,
		Timeout:       cfg.SearchTimeout,
		ScrapeTimeout: cfg.ScrapeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("search provider: %w", err)
	}
	var prov domain.SearchProvider = primary
	if cfg.SearchFallbackBase != "" {
		secondary, err := provider.New(cfg.SearchFallbackBase, cfg.SearchFallbackKey, provider.Options{
			Name:          "fallback",
			RPS:           cfg.SearchRPS,
			Timeout:       cfg.SearchTimeout,
			ScrapeTimeout: cfg.ScrapeTimeout,
		})
		if err != nil {
			log.Warn().Err(err).Msg("fallback provider disabled")
		} else {
			prov = provider.Fallback{Primary: primary, Secondary: secondary}
		}
	}

	st := &Stack{}
	defer func() {
		if err != nil {
			st.Close(ctx)
		}
	}()
	deps := app.Deps{Tables: tbl, Provider: prov}

	st.Cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := st.Cache.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; cache errors will be treated as misses")
	}
	cancel()
	deps.Cache = st.Cache

	if cfg.UFRateURL != "" {
		deps.Rates = exchange.New(cfg.UFRateURL, &http.Client{Timeout: 5 * time.Second})
	}

	if cfg.RerankKey != "" {
		rr, err := rerank.New(cfg.RerankBase, cfg.RerankKey, cfg.RerankModel, 0)
		if err != nil {
			return nil, fmt.Errorf("reranker: %w", err)
		}
		deps.Reranker = rr
	}

	if withRunLog && cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		st.db = db
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db.Ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		st.Runs = mysqlrepo.New(db)
		deps.RunLog = st.Runs
	}

	o, err := app.New(deps, app.Config{
		MinValidListings: cfg.MinValidListings,
		ScrapeTopN:       cfg.ScrapeTopN,
		ScrapeMaxLength:  cfg.ScrapeMaxLength,
		ResultsPerQuery:  cfg.ResultsPerQuery,
		CacheTTL:         cfg.CacheTTL,
		RerankMargin:     cfg.RerankMargin,
		UFFallback:       cfg.UFFallbackRate,
		Admission: admission.Config{
			PremiumHardFloor: cfg.PremiumHardFloor,
			PremiumSoftFloor: cfg.PremiumSoftFloor,
		},
	})
	if err != nil {
		return nil, err
	}
	st.Orchestrator = o
	return st, nil
}

// Close waits for pending run-log writes, then releases connections.
func (s *Stack) Close(ctx context.Context) {
	if s.Orchestrator != nil {
		if err := s.Orchestrator.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("pending run-log writes abandoned")
		}
	}
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
