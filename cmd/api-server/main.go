package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/hackgods/evv-verification/internal/api"
	"github.com/hackgods/evv-verification/internal/app"
	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Float64("geofence_radius_m", cfg.GeofenceRadiusMeters).
		Dur("time_window", cfg.TimeWindow).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := app.Build(rootCtx, cfg, log, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer rt.Close(log)

	srv := newHTTPServer(cfg, rt, reg, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
			rt.Close(log)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}

func newHTTPServer(cfg config.Config, rt *app.Runtime, gatherer prometheus.Gatherer, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr: net.JoinHostPort("", cfg.HTTPPort),
		Handler: api.NewRouter(api.RouterConfig{
			Service:  rt.Service,
			PgPool:   rt.PgPool,
			Redis:    rt.Redis,
			Gatherer: gatherer,
			Logger:   log,
			Env:      cfg.Env,
			Version:  version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
