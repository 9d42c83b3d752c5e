package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"propsearch/internal/adapters/observability"
	"propsearch/internal/app"
	"propsearch/internal/bootstrap"
	"propsearch/internal/shared"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(cfg.WarmQueriesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.WarmQueriesFile).Msg("open queries file")
	}
	queries, err := readQueries(f)
	_ = f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("read queries file")
	}

	log.Info().
		Str("file", cfg.WarmQueriesFile).
		Int("queries", len(queries)).
		Int("workers", cfg.WarmWorkers).
		Msg("warmer starting")

	st, err := bootstrap.Build(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer st.Close(context.Background())

	warm := app.NewWarmService(st.Orchestrator, st.Cache)
	sem := semaphore.NewWeighted(int64(max(cfg.WarmWorkers, 1)))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)

	for _, q := range queries {
		q := q
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("warm run interrupted")
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			res, err := warm.Refresh(ctx, q.Query, q.Vertical)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("query", q.Query).Err(err).Msg("warm failed")
				return
			}
			log.Info().
				Str("query", q.Query).
				Str("vertical", string(res.Vertical)).
				Int("results", len(res.Results)).
				Bool("insufficient", res.Insufficient).
				Msg("warm ok")
		}()
	}

	wg.Wait()
	log.Info().Int32("failed", failed.Load()).Msg("warm completed")
}
