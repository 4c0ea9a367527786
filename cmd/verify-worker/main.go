package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/evv-verification/internal/app"
	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/logger"
	"github.com/hackgods/evv-verification/internal/visit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "verify-worker").Logger()
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("batch_size", cfg.WorkerBatchSize).
		Msg("verify-worker starting up")

	if cfg.StoreBackend != config.StorePostgres {
		log.Warn().Msg("in-memory store is private to this process, the worker will only see its own visits")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(rootCtx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer rt.Close(log)

	// Run once at startup
	runOnce(rootCtx, rt.Service, cfg, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping verify worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, rt.Service, cfg, log)
		}
	}
}

func runOnce(ctx context.Context, svc *visit.Service, cfg config.Config, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.WorkerInterval)
	defer cancel()

	start := time.Now()
	res, err := svc.ReverifyInProgress(runCtx, cfg.WorkerBatchSize, cfg.WorkerParallel)
	if err != nil {
		log.Error().Err(err).Int("checked", res.Checked).Msg("verify run error")
		return
	}
	log.Info().
		Int("checked", res.Checked).
		Int("completed", res.Completed).
		Dur("took", time.Since(start)).
		Msg("verify run complete")
}
