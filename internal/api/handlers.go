package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	redisclient "github.com/hackgods/evv-verification/internal/redis"
	"github.com/hackgods/evv-verification/internal/visit"
)

const maxBodyBytes = 1 << 20

func pushScheduleHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PushScheduleRequest
		if !decodeBody(w, r, &req) {
			return
		}

		v, err := svc.PushSchedule(r.Context(), visit.ScheduleInput{
			VisitID:      strings.TrimSpace(req.VisitID),
			PatientID:    strings.TrimSpace(req.PatientID),
			PlannedStart: req.PlannedStart,
			PlannedEnd:   req.PlannedEnd,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func recordEventHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecordEventRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Lat == nil || req.Lng == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "lat and lng are required")
			return
		}

		ev, err := svc.RecordEvent(r.Context(), visit.EventInput{
			VisitID:   strings.TrimSpace(req.VisitID),
			Kind:      visit.EventKind(req.Kind),
			Timestamp: req.Timestamp,
			Lat:       *req.Lat,
			Lng:       *req.Lng,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toEventResponse(*ev))
	}
}

func validateVisitHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		verdict, err := svc.Validate(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := ValidationResponse{
			VisitID:  id,
			Verified: verdict.Verified,
			Reasons:  verdict.Reasons,
		}
		if resp.Reasons == nil {
			resp.Reasons = []string{}
		}

		v, err := svc.Visit(r.Context(), id)
		switch {
		case err == nil:
			resp.Status = string(v.Status)
		case !errors.Is(err, visit.ErrVisitNotFound):
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getVisitHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Visit(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func listEventsHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.Events(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]EventResponse, 0, len(events))
		for _, e := range events {
			resp = append(resp, toEventResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func patientLocationHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, err := svc.Location(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, LocationResponse{
			PatientID: loc.PatientID,
			Lat:       loc.Lat,
			Lng:       loc.Lng,
			CreatedAt: loc.CreatedAt,
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, visit.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, visit.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit_not_found", err.Error())
	case errors.Is(err, visit.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, "location_not_found", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "visit_busy", "visit is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
