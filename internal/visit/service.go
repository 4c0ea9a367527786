package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/evv-verification/internal/geo"
	"github.com/hackgods/evv-verification/internal/metrics"
)

const maxStatusAttempts = 3

type Service struct {
	repo      Repository
	locker    Locker
	directory *Directory
	verifier  *Verifier
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewService(repo Repository, locker Locker, resolver Resolver, cfg VerifierConfig, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		locker:    locker,
		directory: NewDirectory(repo, resolver),
		verifier:  NewVerifier(cfg),
		metrics:   m,
		log:       log.With().Str("component", "evv").Logger(),
	}
}

// PushSchedule registers or replaces a planned visit and makes sure the
// patient has a reference location. Registering the same visit twice
// overwrites the planned fields and keeps the current status.
func (s *Service) PushSchedule(ctx context.Context, in ScheduleInput) (*ScheduledVisit, error) {
	if err := validateSchedule(in); err != nil {
		return nil, err
	}

	// Resolve the patient first so a failed lookup leaves nothing registered.
	if _, err := s.directory.LocationFor(ctx, in.PatientID); err != nil {
		return nil, fmt.Errorf("ensure patient location: %w", err)
	}

	var registered *ScheduledVisit

	err := s.withVisitLock(ctx, in.VisitID, func(lockCtx context.Context) error {
		v, err := s.repo.UpsertVisit(lockCtx, in)
		if err != nil {
			return fmt.Errorf("upsert visit: %w", err)
		}

		// Events may have arrived before the schedule did.
		events, err := s.repo.ListEvents(lockCtx, in.VisitID)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}

		registered, err = s.advanceStatus(lockCtx, v, func(cur Status) Status {
			return StatusOnRegistration(cur, events)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("visit_id", in.VisitID).
		Str("patient_id", in.PatientID).
		Time("planned_start", in.PlannedStart).
		Str("status", string(registered.Status)).
		Msg("schedule pushed")

	return registered, nil
}

// RecordEvent appends a field event to the visit's log. Events for visits
// that are not registered yet are kept. A status failure after the append is
// returned; retrying is safe because verification uses the first clock-in
// by arrival.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (*VisitEvent, error) {
	if err := validateEvent(in); err != nil {
		return nil, err
	}

	var recorded *VisitEvent

	err := s.withVisitLock(ctx, in.VisitID, func(lockCtx context.Context) error {
		var err error
		recorded, err = s.repo.AppendEvent(lockCtx, in)
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		if in.Kind != KindClockIn {
			return nil
		}

		// The projection reads the stored status, not the log, so a retry
		// after a failed status update still starts the visit.
		v, err := s.repo.GetVisit(lockCtx, in.VisitID)
		if errors.Is(err, ErrVisitNotFound) {
			s.log.Debug().Str("visit_id", in.VisitID).Msg("clock-in for unregistered visit retained")
			return nil
		}
		if err != nil {
			return fmt.Errorf("event stored, load visit: %w", err)
		}

		if _, err = s.advanceStatus(lockCtx, v, func(cur Status) Status {
			return StatusAfterEvent(cur, KindClockIn)
		}); err != nil {
			return fmt.Errorf("event stored, advance status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncEvent(string(in.Kind))
	s.log.Info().
		Str("visit_id", in.VisitID).
		Str("kind", string(in.Kind)).
		Int64("seq", recorded.Seq).
		Time("timestamp", in.Timestamp).
		Msg("event recorded")

	return recorded, nil
}

// Validate produces a fresh verdict for the visit. An unverified verdict is a
// normal answer; errors are reserved for storage faults.
func (s *Service) Validate(ctx context.Context, visitID string) (Verdict, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveValidate(time.Since(start)) }()

	v, err := s.repo.GetVisit(ctx, visitID)
	if err != nil && !errors.Is(err, ErrVisitNotFound) {
		return Verdict{}, fmt.Errorf("load visit: %w", err)
	}
	if v == nil {
		res := s.verifier.Verify(nil, nil, nil)
		s.record(visitID, res)
		return res.Verdict, nil
	}

	events, err := s.repo.ListEvents(ctx, visitID)
	if err != nil {
		return Verdict{}, fmt.Errorf("list events: %w", err)
	}

	loc, err := s.directory.LocationFor(ctx, v.PatientID)
	if err != nil {
		if !errors.Is(err, ErrLocationNotFound) {
			return Verdict{}, fmt.Errorf("load patient location: %w", err)
		}
		s.log.Warn().Str("visit_id", visitID).Str("patient_id", v.PatientID).Msg("no patient location, geofence checks fail")
	}

	res := s.verifier.Verify(v, loc, events)
	s.record(visitID, res)

	if res.Verified {
		if _, err := s.advanceStatus(ctx, v, func(cur Status) Status {
			return StatusAfterVerdict(cur, res.Verdict)
		}); err != nil {
			return Verdict{}, err
		}
	}

	return res.Verdict, nil
}

// Visit returns the registered visit with its current status.
func (s *Service) Visit(ctx context.Context, visitID string) (*ScheduledVisit, error) {
	v, err := s.repo.GetVisit(ctx, visitID)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

// Events returns the visit's log in arrival order.
func (s *Service) Events(ctx context.Context, visitID string) ([]VisitEvent, error) {
	events, err := s.repo.ListEvents(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Location returns the memoized reference location for a patient.
func (s *Service) Location(ctx context.Context, patientID string) (*PatientLocation, error) {
	return s.directory.LocationFor(ctx, patientID)
}

type SweepResult struct {
	Checked   int
	Completed int
}

// ReverifyInProgress validates a batch of in-progress visits so that visits
// whose data became complete move to completed without a caller asking.
func (s *Service) ReverifyInProgress(ctx context.Context, batchSize, concurrency int) (SweepResult, error) {
	visits, err := s.repo.ListVisitsByStatus(ctx, StatusInProgress, batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list in-progress visits: %w", err)
	}

	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, v := range visits {
		id := v.ID
		g.Go(func() error {
			verdict, err := s.Validate(gctx, id)
			if err != nil {
				return fmt.Errorf("validate visit %s: %w", id, err)
			}
			if verdict.Verified {
				completed.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	return SweepResult{Checked: len(visits), Completed: int(completed.Load())}, err
}

func (s *Service) withVisitLock(ctx context.Context, visitID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer func() { s.metrics.ObserveLock(time.Since(start)) }()
	return s.locker.WithKeyLock(ctx, visitLockKey(visitID), fn)
}

// advanceStatus applies a projection with compare-and-set, re-reading the
// visit when another writer moved it first. Backward moves are never applied.
func (s *Service) advanceStatus(ctx context.Context, v *ScheduledVisit, project func(Status) Status) (*ScheduledVisit, error) {
	cur := v
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		next := project(cur.Status)
		if !advances(cur.Status, next) {
			return cur, nil
		}

		updated, err := s.repo.UpdateVisitStatus(ctx, cur.ID, cur.Status, next)
		if err == nil {
			s.metrics.IncTransition(string(cur.Status), string(next))
			s.log.Info().
				Str("visit_id", cur.ID).
				Str("from", string(cur.Status)).
				Str("to", string(next)).
				Msg("visit status changed")
			return updated, nil
		}
		if !errors.Is(err, ErrStatusConflict) {
			return nil, fmt.Errorf("update visit status: %w", err)
		}

		cur, err = s.repo.GetVisit(ctx, cur.ID)
		if err != nil {
			return nil, fmt.Errorf("reload visit: %w", err)
		}
	}
	return nil, fmt.Errorf("update visit status %s: %w", v.ID, ErrStatusConflict)
}

func (s *Service) record(visitID string, res Result) {
	s.metrics.IncVerdict(res.Verified)
	s.metrics.IncFailedChecks(res.Failed)

	evt := s.log.Info()
	if !res.Verified {
		evt = s.log.Warn().Strs("failed_checks", res.Failed)
	}
	evt.Str("visit_id", visitID).
		Bool("verified", res.Verified).
		Strs("reasons", res.Reasons).
		Msg("visit validated")
}

func validateSchedule(in ScheduleInput) error {
	switch {
	case strings.TrimSpace(in.VisitID) == "":
		return fmt.Errorf("%w: visit_id is required", ErrInvalidInput)
	case strings.TrimSpace(in.PatientID) == "":
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	case in.PlannedStart.IsZero():
		return fmt.Errorf("%w: planned_start is required", ErrInvalidInput)
	}
	return nil
}

func validateEvent(in EventInput) error {
	switch {
	case strings.TrimSpace(in.VisitID) == "":
		return fmt.Errorf("%w: visit_id is required", ErrInvalidInput)
	case !in.Kind.Valid():
		return fmt.Errorf("%w: kind must be %q or %q, got %q", ErrInvalidInput, KindClockIn, KindClockOut, in.Kind)
	case in.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrInvalidInput)
	case !geo.Valid(geo.Point{Lat: in.Lat, Lng: in.Lng}):
		return fmt.Errorf("%w: coordinates (%v, %v) are not a valid location", ErrInvalidInput, in.Lat, in.Lng)
	}
	return nil
}
