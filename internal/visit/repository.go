package visit

import (
	"context"
	"errors"
)

var (
	ErrVisitNotFound    = errors.New("visit not found")
	ErrLocationNotFound = errors.New("patient location not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStatusConflict   = errors.New("visit status changed concurrently")
)

// Repository contains all storage interactions needed by the service.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Schedule registry
	UpsertVisit(ctx context.Context, in ScheduleInput) (*ScheduledVisit, error)
	GetVisit(ctx context.Context, id string) (*ScheduledVisit, error)
	UpdateVisitStatus(ctx context.Context, id string, from, to Status) (*ScheduledVisit, error)
	ListVisitsByStatus(ctx context.Context, status Status, limit int) ([]ScheduledVisit, error)

	// Location directory. InsertLocationIfAbsent returns whichever location is
	// stored after the call, so the first writer always wins.
	GetLocation(ctx context.Context, patientID string) (*PatientLocation, error)
	InsertLocationIfAbsent(ctx context.Context, loc PatientLocation) (*PatientLocation, error)

	// Event log, arrival ordered
	AppendEvent(ctx context.Context, in EventInput) (*VisitEvent, error)
	ListEvents(ctx context.Context, visitID string) ([]VisitEvent, error)
}
