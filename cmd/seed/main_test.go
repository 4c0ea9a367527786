package main

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/evv-verification/internal/app"
	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/visit"
)

func TestSeedVisitOutcomes(t *testing.T) {
	cfg := config.Config{
		StoreBackend:         config.StoreMemory,
		LockBackend:          config.LockLocal,
		GeofenceRadiusMeters: 250,
		TimeWindow:           15 * time.Minute,
		BaselineLat:          40.7128,
		BaselineLng:          -74.0060,
		LocationSpread:       0.01,
		LocationSeed:         11,
	}
	ctx := context.Background()

	rt, err := app.Build(ctx, cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer rt.Close(zerolog.Nop())

	faker := gofakeit.New(42)

	want := map[string]visit.Status{
		outcomeClean:      visit.StatusCompleted,
		outcomeLate:       visit.StatusInProgress,
		outcomeAway:       visit.StatusInProgress,
		outcomeNoClockOut: visit.StatusInProgress,
		outcomeNotStarted: visit.StatusScheduled,
	}

	for outcome, status := range want {
		t.Run(outcome, func(t *testing.T) {
			visitID, err := seedVisit(ctx, rt.Service, faker, "patient-"+outcome, outcome)
			require.NoError(t, err)

			v, err := rt.Service.Visit(ctx, visitID)
			require.NoError(t, err)
			assert.Equal(t, status, v.Status)
		})
	}
}
