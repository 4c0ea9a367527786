package api

import (
	"time"

	"github.com/hackgods/evv-verification/internal/visit"
)

type PushScheduleRequest struct {
	VisitID      string     `json:"visit_id"`
	PatientID    string     `json:"patient_id"`
	PlannedStart time.Time  `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty"`
}

// RecordEventRequest uses pointers for coordinates so a missing value is
// rejected instead of being read as 0,0.
type RecordEventRequest struct {
	VisitID   string    `json:"visit_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
}

type VisitResponse struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patient_id"`
	PlannedStart time.Time  `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type EventResponse struct {
	Seq        int64     `json:"seq"`
	VisitID    string    `json:"visit_id"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ValidationResponse struct {
	VisitID  string   `json:"visit_id"`
	Verified bool     `json:"verified"`
	Reasons  []string `json:"reasons"`
	Status   string   `json:"status,omitempty"`
}

type LocationResponse struct {
	PatientID string    `json:"patient_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toVisitResponse(v *visit.ScheduledVisit) VisitResponse {
	return VisitResponse{
		ID:           v.ID,
		PatientID:    v.PatientID,
		PlannedStart: v.PlannedStart,
		PlannedEnd:   v.PlannedEnd,
		Status:       string(v.Status),
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func toEventResponse(e visit.VisitEvent) EventResponse {
	return EventResponse{
		Seq:        e.Seq,
		VisitID:    e.VisitID,
		Kind:       string(e.Kind),
		Timestamp:  e.Timestamp,
		Lat:        e.Lat,
		Lng:        e.Lng,
		RecordedAt: e.RecordedAt,
	}
}
