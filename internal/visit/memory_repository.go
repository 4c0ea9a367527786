package visit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps visits, locations and event logs in process memory.
// Every visit and every event log carries its own lock, so unrelated visits
// never contend with each other.
type MemoryRepository struct {
	visits    sync.Map // visit ID -> *visitEntry
	logs      sync.Map // visit ID -> *eventLog
	locations sync.Map // patient ID -> PatientLocation

	now func() time.Time
}

type visitEntry struct {
	mu    sync.RWMutex
	visit *ScheduledVisit
}

type eventLog struct {
	mu     sync.RWMutex
	events []VisitEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) entry(id string) *visitEntry {
	v, _ := r.visits.LoadOrStore(id, &visitEntry{})
	return v.(*visitEntry)
}

func (r *MemoryRepository) UpsertVisit(_ context.Context, in ScheduleInput) (*ScheduledVisit, error) {
	e := r.entry(in.VisitID)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := r.now()
	if e.visit == nil {
		e.visit = &ScheduledVisit{
			ID:        in.VisitID,
			Status:    StatusScheduled,
			CreatedAt: now,
		}
	}
	e.visit.PatientID = in.PatientID
	e.visit.PlannedStart = in.PlannedStart
	e.visit.PlannedEnd = copyTime(in.PlannedEnd)
	e.visit.UpdatedAt = now

	return cloneVisit(e.visit), nil
}

func (r *MemoryRepository) GetVisit(_ context.Context, id string) (*ScheduledVisit, error) {
	v, ok := r.visits.Load(id)
	if !ok {
		return nil, ErrVisitNotFound
	}
	e := v.(*visitEntry)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.visit == nil {
		return nil, ErrVisitNotFound
	}
	return cloneVisit(e.visit), nil
}

func (r *MemoryRepository) UpdateVisitStatus(_ context.Context, id string, from, to Status) (*ScheduledVisit, error) {
	v, ok := r.visits.Load(id)
	if !ok {
		return nil, ErrVisitNotFound
	}
	e := v.(*visitEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.visit == nil {
		return nil, ErrVisitNotFound
	}
	if e.visit.Status != from {
		return nil, ErrStatusConflict
	}
	e.visit.Status = to
	e.visit.UpdatedAt = r.now()
	return cloneVisit(e.visit), nil
}

func (r *MemoryRepository) ListVisitsByStatus(_ context.Context, status Status, limit int) ([]ScheduledVisit, error) {
	var result []ScheduledVisit
	r.visits.Range(func(_, value any) bool {
		e := value.(*visitEntry)
		e.mu.RLock()
		if e.visit != nil && e.visit.Status == status {
			result = append(result, *cloneVisit(e.visit))
		}
		e.mu.RUnlock()
		return true
	})

	sort.Slice(result, func(i, j int) bool {
		if result[i].PlannedStart.Equal(result[j].PlannedStart) {
			return result[i].ID < result[j].ID
		}
		return result[i].PlannedStart.Before(result[j].PlannedStart)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) GetLocation(_ context.Context, patientID string) (*PatientLocation, error) {
	v, ok := r.locations.Load(patientID)
	if !ok {
		return nil, ErrLocationNotFound
	}
	loc := v.(PatientLocation)
	return &loc, nil
}

func (r *MemoryRepository) InsertLocationIfAbsent(_ context.Context, loc PatientLocation) (*PatientLocation, error) {
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = r.now()
	}
	v, _ := r.locations.LoadOrStore(loc.PatientID, loc)
	stored := v.(PatientLocation)
	return &stored, nil
}

func (r *MemoryRepository) AppendEvent(_ context.Context, in EventInput) (*VisitEvent, error) {
	v, _ := r.logs.LoadOrStore(in.VisitID, &eventLog{})
	l := v.(*eventLog)

	l.mu.Lock()
	defer l.mu.Unlock()

	ev := VisitEvent{
		Seq:        int64(len(l.events) + 1),
		VisitID:    in.VisitID,
		Kind:       in.Kind,
		Timestamp:  in.Timestamp,
		Lat:        in.Lat,
		Lng:        in.Lng,
		RecordedAt: r.now(),
	}
	l.events = append(l.events, ev)
	return &ev, nil
}

func (r *MemoryRepository) ListEvents(_ context.Context, visitID string) ([]VisitEvent, error) {
	v, ok := r.logs.Load(visitID)
	if !ok {
		return nil, nil
	}
	l := v.(*eventLog)

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]VisitEvent, len(l.events))
	copy(out, l.events)
	return out, nil
}

func cloneVisit(v *ScheduledVisit) *ScheduledVisit {
	c := *v
	c.PlannedEnd = copyTime(v.PlannedEnd)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
