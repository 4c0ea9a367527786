package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/db"
	"github.com/hackgods/evv-verification/internal/geo"
	"github.com/hackgods/evv-verification/internal/metrics"
	redisclient "github.com/hackgods/evv-verification/internal/redis"
	"github.com/hackgods/evv-verification/internal/visit"
)

// Runtime holds the wired service and the backends it owns. PgPool and Redis
// are nil when the matching backend is not configured.
type Runtime struct {
	Service *visit.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Metrics *metrics.Metrics
}

// Build connects the configured store and locker and wires the service.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, reg prometheus.Registerer) (*Runtime, error) {
	rt := &Runtime{Metrics: metrics.New(reg)}

	var repo visit.Repository
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, poolOptions(cfg), log)
		cancel()
		if err != nil {
			return nil, err
		}
		rt.PgPool = pool

		if err := db.Migrate(ctx, pool); err != nil {
			rt.Close(log)
			return nil, err
		}
		repo = visit.NewPgRepository(pool)
	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		repo = visit.NewMemoryRepository()
	}

	var locker visit.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(ctx, redisOptions(cfg), log)
		if err != nil {
			rt.Close(log)
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		rt.Redis = rdb
		locker = redisclient.NewRedisKeyLocker(rdb, cfg.LockTTL, cfg.LockWait)
	default:
		locker = visit.NewKeyedMutex()
	}

	resolver := visit.NewSyntheticResolver(
		geo.Point{Lat: cfg.BaselineLat, Lng: cfg.BaselineLng},
		cfg.LocationSpread,
		cfg.LocationSeed,
	)

	verifierCfg := visit.VerifierConfig{
		RadiusMeters: cfg.GeofenceRadiusMeters,
		TimeWindow:   cfg.TimeWindow,
	}

	rt.Service = visit.NewService(repo, locker, resolver, verifierCfg, rt.Metrics, log)
	return rt, nil
}

// Close releases whatever backends Build opened.
func (rt *Runtime) Close(log zerolog.Logger) {
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}
	if rt.PgPool != nil {
		rt.PgPool.Close()
	}
}

func poolOptions(cfg config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:          int32(cfg.PgMaxConns),
		MinConns:          int32(cfg.PgMinConns),
		MaxConnLifetime:   cfg.PgConnLifetime,
		MaxConnIdleTime:   cfg.PgConnIdleTime,
		HealthCheckPeriod: cfg.PgHealthCheck,
		ConnectTimeout:    cfg.PgConnectTO,
	}
}

func redisOptions(cfg config.Config) redisclient.Options {
	return redisclient.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdle,
		DialTimeout:  cfg.RedisDialTO,
		ReadTimeout:  cfg.RedisReadTO,
		WriteTimeout: cfg.RedisWriteTO,
	}
}
