package visit

import (
	"time"

	"github.com/hackgods/evv-verification/internal/geo"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type EventKind string

const (
	KindClockIn  EventKind = "clock_in"
	KindClockOut EventKind = "clock_out"
)

func (k EventKind) Valid() bool {
	return k == KindClockIn || k == KindClockOut
}

// ScheduledVisit is the planned visit that verification is checked against.
type ScheduledVisit struct {
	ID           string
	PatientID    string
	PlannedStart time.Time
	PlannedEnd   *time.Time
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PatientLocation is the geofence centre for a patient. It never changes once stored.
type PatientLocation struct {
	PatientID string
	Lat       float64
	Lng       float64
	CreatedAt time.Time
}

func (l PatientLocation) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

// VisitEvent is a field-reported clock event. Seq is assigned by the
// repository and increases strictly with arrival within a visit's log.
type VisitEvent struct {
	Seq        int64
	VisitID    string
	Kind       EventKind
	Timestamp  time.Time
	Lat        float64
	Lng        float64
	RecordedAt time.Time
}

func (e VisitEvent) Point() geo.Point {
	return geo.Point{Lat: e.Lat, Lng: e.Lng}
}

// Verdict is the outcome of a validation. It is never stored.
type Verdict struct {
	Verified bool
	Reasons  []string
}

type ScheduleInput struct {
	VisitID      string
	PatientID    string
	PlannedStart time.Time
	PlannedEnd   *time.Time
}

type EventInput struct {
	VisitID   string
	Kind      EventKind
	Timestamp time.Time
	Lat       float64
	Lng       float64
}
