package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/evv-verification/internal/app"
	"github.com/hackgods/evv-verification/internal/config"
	"github.com/hackgods/evv-verification/internal/logger"
	"github.com/hackgods/evv-verification/internal/visit"
)

// Each seeded visit follows one of these field outcomes so the demo data
// covers verified and every common failure.
const (
	outcomeClean      = "clean"
	outcomeLate       = "late"
	outcomeAway       = "away"
	outcomeNoClockOut = "no_clock_out"
	outcomeNotStarted = "not_started"
)

var outcomes = []string{outcomeClean, outcomeClean, outcomeClean, outcomeLate, outcomeAway, outcomeNoClockOut, outcomeNotStarted}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "seed").Logger()

	if cfg.PostgresDSN == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}
	cfg.StoreBackend = config.StorePostgres

	patients := getInt("SEED_PATIENTS", 200)
	visitsPerPatient := getInt("SEED_VISITS_PER_PATIENT", 3)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Service logging is noisy at this volume.
	rt, err := app.Build(ctx, cfg, log.Level(zerolog.WarnLevel), prometheus.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer rt.Close(log)

	faker := gofakeit.New(0)
	counts := map[string]int{}

	log.Info().Int("patients", patients).Int("visits_per_patient", visitsPerPatient).Msg("seed starting")

	for p := 0; p < patients; p++ {
		patientID := "patient-" + uuid.NewString()

		for v := 0; v < visitsPerPatient; v++ {
			outcome := outcomes[faker.Number(0, len(outcomes)-1)]
			if _, err := seedVisit(ctx, rt.Service, faker, patientID, outcome); err != nil {
				log.Fatal().Err(err).Str("patient_id", patientID).Msg("seed visit")
			}
			counts[outcome]++
		}

		if (p+1)%50 == 0 {
			log.Info().Msgf("patients seeded: %d/%d", p+1, patients)
		}
	}

	log.Info().Interface("outcomes", counts).Msg("seed complete")
}

func seedVisit(ctx context.Context, svc *visit.Service, faker *gofakeit.Faker, patientID, outcome string) (string, error) {
	visitID := "visit-" + uuid.NewString()

	// Planned start somewhere in the last week, on the hour.
	plannedStart := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(faker.Number(1, 7*24)) * time.Hour)
	plannedEnd := plannedStart.Add(time.Duration(faker.Number(1, 4)) * time.Hour)

	if _, err := svc.PushSchedule(ctx, visit.ScheduleInput{
		VisitID:      visitID,
		PatientID:    patientID,
		PlannedStart: plannedStart,
		PlannedEnd:   &plannedEnd,
	}); err != nil {
		return visitID, err
	}

	if outcome == outcomeNotStarted {
		return visitID, nil
	}

	loc, err := svc.Location(ctx, patientID)
	if err != nil {
		return visitID, err
	}

	// Small jitter keeps clean visits well inside the geofence.
	lat := loc.Lat + faker.Float64Range(-0.0005, 0.0005)
	lng := loc.Lng + faker.Float64Range(-0.0005, 0.0005)

	clockIn := plannedStart.Add(time.Duration(faker.Number(-10, 10)) * time.Minute)
	if outcome == outcomeLate {
		clockIn = plannedStart.Add(time.Duration(faker.Number(20, 90)) * time.Minute)
	}
	if outcome == outcomeAway {
		lat += 0.02
	}

	if _, err := svc.RecordEvent(ctx, visit.EventInput{
		VisitID:   visitID,
		Kind:      visit.KindClockIn,
		Timestamp: clockIn,
		Lat:       lat,
		Lng:       lng,
	}); err != nil {
		return visitID, err
	}

	if outcome == outcomeNoClockOut {
		return visitID, nil
	}

	clockOut := clockIn.Add(time.Duration(faker.Number(30, 180)) * time.Minute)
	if _, err := svc.RecordEvent(ctx, visit.EventInput{
		VisitID:   visitID,
		Kind:      visit.KindClockOut,
		Timestamp: clockOut,
		Lat:       lat,
		Lng:       lng,
	}); err != nil {
		return visitID, err
	}

	_, err = svc.Validate(ctx, visitID)
	return visitID, err
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
