package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const visitColumns = `id, patient_id, planned_start, planned_end, status, created_at, updated_at`

// Helpers

func scanVisit(row pgx.Row) (*ScheduledVisit, error) {
	var v ScheduledVisit
	var plannedEnd *time.Time

	err := row.Scan(
		&v.ID,
		&v.PatientID,
		&v.PlannedStart,
		&plannedEnd,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	v.PlannedEnd = plannedEnd
	return &v, nil
}

func scanLocation(row pgx.Row) (*PatientLocation, error) {
	var l PatientLocation

	err := row.Scan(&l.PatientID, &l.Lat, &l.Lng, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}

	return &l, nil
}

func scanEvent(row pgx.Row) (*VisitEvent, error) {
	var e VisitEvent

	err := row.Scan(
		&e.Seq,
		&e.VisitID,
		&e.Kind,
		&e.Timestamp,
		&e.Lat,
		&e.Lng,
		&e.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// Interface methods

func (r *PgRepository) UpsertVisit(ctx context.Context, in ScheduleInput) (*ScheduledVisit, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO evv_visits (id, patient_id, planned_start, planned_end, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'scheduled', now(), now())
		ON CONFLICT (id) DO UPDATE
		SET patient_id    = EXCLUDED.patient_id,
		    planned_start = EXCLUDED.planned_start,
		    planned_end   = EXCLUDED.planned_end,
		    updated_at    = now()
		RETURNING `+visitColumns,
		in.VisitID, in.PatientID, in.PlannedStart, in.PlannedEnd)

	v, err := scanVisit(row)
	if err != nil {
		return nil, fmt.Errorf("upsert visit: %w", err)
	}
	return v, nil
}

func (r *PgRepository) GetVisit(ctx context.Context, id string) (*ScheduledVisit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM evv_visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

func (r *PgRepository) UpdateVisitStatus(ctx context.Context, id string, from, to Status) (*ScheduledVisit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE evv_visits
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+visitColumns,
		id, to, from)

	v, err := scanVisit(row)
	if errors.Is(err, ErrVisitNotFound) {
		// distinguish a missing visit from a lost compare-and-set
		if _, getErr := r.GetVisit(ctx, id); getErr == nil {
			return nil, ErrStatusConflict
		}
	}
	return v, err
}

// ListVisitsByStatus treats limit <= 0 as no limit, like the memory store.
func (r *PgRepository) ListVisitsByStatus(ctx context.Context, status Status, limit int) ([]ScheduledVisit, error) {
	// LIMIT NULL is no limit in Postgres.
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+visitColumns+`
		FROM evv_visits
		WHERE status = $1
		ORDER BY planned_start, id
		LIMIT $2
	`, status, limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduledVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetLocation(ctx context.Context, patientID string) (*PatientLocation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT patient_id, lat, lng, created_at
		FROM evv_patient_locations
		WHERE patient_id = $1
	`, patientID)
	return scanLocation(row)
}

func (r *PgRepository) InsertLocationIfAbsent(ctx context.Context, loc PatientLocation) (*PatientLocation, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO evv_patient_locations (patient_id, lat, lng, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (patient_id) DO NOTHING
	`, loc.PatientID, loc.Lat, loc.Lng)
	if err != nil {
		return nil, fmt.Errorf("insert patient location: %w", err)
	}

	// Re-read in a fresh statement so a concurrent winner is visible.
	return r.GetLocation(ctx, loc.PatientID)
}

func (r *PgRepository) AppendEvent(ctx context.Context, in EventInput) (*VisitEvent, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO evv_visit_events (visit_id, kind, occurred_at, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, visit_id, kind, occurred_at, lat, lng, recorded_at
	`, in.VisitID, in.Kind, in.Timestamp, in.Lat, in.Lng)

	ev, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert visit event: %w", err)
	}
	return ev, nil
}

func (r *PgRepository) ListEvents(ctx context.Context, visitID string) ([]VisitEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, visit_id, kind, occurred_at, lat, lng, recorded_at
		FROM evv_visit_events
		WHERE visit_id = $1
		ORDER BY id
	`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []VisitEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
