package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/visit"
)

func TestBuildInMemory(t *testing.T) {
	cfg := config.Config{
		StoreBackend:         config.StoreMemory,
		LockBackend:          config.LockLocal,
		GeofenceRadiusMeters: 250,
		TimeWindow:           15 * time.Minute,
		BaselineLat:          40.7128,
		BaselineLng:          -74.0060,
		LocationSpread:       0.01,
		LocationSeed:         7,
	}

	ctx := context.Background()
	rt, err := Build(ctx, cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer rt.Close(zerolog.Nop())

	assert.Nil(t, rt.PgPool)
	assert.Nil(t, rt.Redis)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err = rt.Service.PushSchedule(ctx, visit.ScheduleInput{VisitID: "v-1", PatientID: "p-1", PlannedStart: start})
	require.NoError(t, err)

	loc, err := rt.Service.Location(ctx, "p-1")
	require.NoError(t, err)
	assert.InDelta(t, 40.7128, loc.Lat, 0.005)
	assert.InDelta(t, -74.0060, loc.Lng, 0.005)

	for _, kind := range []visit.EventKind{visit.KindClockIn, visit.KindClockOut} {
		at := start.Add(2 * time.Minute)
		if kind == visit.KindClockOut {
			at = start.Add(time.Hour)
		}
		_, err = rt.Service.RecordEvent(ctx, visit.EventInput{VisitID: "v-1", Kind: kind, Timestamp: at, Lat: loc.Lat, Lng: loc.Lng})
		require.NoError(t, err)
	}

	verdict, err := rt.Service.Validate(ctx, "v-1")
	require.NoError(t, err)
	assert.True(t, verdict.Verified, verdict.Reasons)
}

func TestBackendOptionsFollowConfig(t *testing.T) {
	cfg := config.Config{
		RedisAddr:      "cache:6379",
		RedisDB:        3,
		RedisPoolSize:  20,
		RedisMinIdle:   2,
		RedisReadTO:    time.Second,
		PgMaxConns:     16,
		PgMinConns:     2,
		PgConnLifetime: 20 * time.Minute,
		PgConnectTO:    4 * time.Second,
	}

	po := poolOptions(cfg)
	assert.Equal(t, int32(16), po.MaxConns)
	assert.Equal(t, int32(2), po.MinConns)
	assert.Equal(t, 20*time.Minute, po.MaxConnLifetime)
	assert.Equal(t, 4*time.Second, po.ConnectTimeout)

	ro := redisOptions(cfg)
	assert.Equal(t, "cache:6379", ro.Addr)
	assert.Equal(t, 3, ro.DB)
	assert.Equal(t, 20, ro.PoolSize)
	assert.Equal(t, 2, ro.MinIdleConns)
	assert.Equal(t, time.Second, ro.ReadTimeout)
}
