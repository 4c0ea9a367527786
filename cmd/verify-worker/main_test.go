package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/evv-verification/internal/app"
	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/visit"
)

func TestRunOnceCompletesFinishedVisits(t *testing.T) {
	cfg := config.Config{
		StoreBackend:         config.StoreMemory,
		LockBackend:          config.LockLocal,
		WorkerInterval:       time.Minute,
		WorkerBatchSize:      10,
		WorkerParallel:       2,
		GeofenceRadiusMeters: 250,
		TimeWindow:           15 * time.Minute,
		BaselineLat:          40.7128,
		BaselineLng:          -74.0060,
	}
	ctx := context.Background()

	rt, err := app.Build(ctx, cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer rt.Close(zerolog.Nop())
	svc := rt.Service

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err = svc.PushSchedule(ctx, visit.ScheduleInput{VisitID: "v-1", PatientID: "p-1", PlannedStart: start})
	require.NoError(t, err)

	clock := func(kind visit.EventKind, at time.Time) {
		_, err := svc.RecordEvent(ctx, visit.EventInput{VisitID: "v-1", Kind: kind, Timestamp: at, Lat: 40.7128, Lng: -74.0060})
		require.NoError(t, err)
	}
	clock(visit.KindClockIn, start)
	clock(visit.KindClockOut, start.Add(time.Hour))

	v, err := svc.Visit(ctx, "v-1")
	require.NoError(t, err)
	require.Equal(t, visit.StatusInProgress, v.Status)

	runOnce(ctx, svc, cfg, zerolog.Nop())

	v, err = svc.Visit(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCompleted, v.Status)
}
