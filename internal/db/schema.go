package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Events are ordered by id. Appends for one visit are serialized by the
// per-visit lock, so id order is arrival order within a visit.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS evv_visits (
		id            TEXT PRIMARY KEY,
		patient_id    TEXT NOT NULL,
		planned_start TIMESTAMPTZ NOT NULL,
		planned_end   TIMESTAMPTZ,
		status        TEXT NOT NULL DEFAULT 'scheduled'
		              CHECK (status IN ('scheduled', 'in_progress', 'completed', 'cancelled')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS evv_visits_status_start_idx ON evv_visits (status, planned_start, id)`,
	`CREATE TABLE IF NOT EXISTS evv_patient_locations (
		patient_id TEXT PRIMARY KEY,
		lat        DOUBLE PRECISION NOT NULL,
		lng        DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS evv_visit_events (
		id          BIGSERIAL PRIMARY KEY,
		visit_id    TEXT NOT NULL,
		kind        TEXT NOT NULL CHECK (kind IN ('clock_in', 'clock_out')),
		occurred_at TIMESTAMPTZ NOT NULL,
		lat         DOUBLE PRECISION NOT NULL,
		lng         DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS evv_visit_events_visit_idx ON evv_visit_events (visit_id, id)`,
}

// Migrate creates the verification tables if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
