package visit

import (
	"fmt"
	"math"
	"time"

	"github.com/hackgods/evv-verification/internal/geo"
)

const (
	DefaultTimeWindow = 15 * time.Minute

	reasonVisitNotFound   = "Visit not found in schedule"
	reasonNoClockIn       = "No clock-in event recorded"
	reasonNoClockOut      = "No clock-out event recorded"
	reasonClockOutOrdered = "Clock-out must be after clock-in"
)

// Check names reported to metrics when a check fails.
const (
	CheckSchedule      = "schedule"
	CheckClockIn       = "clock_in_present"
	CheckTimeWindow    = "time_window"
	CheckClockInFence  = "clock_in_geofence"
	CheckClockOut      = "clock_out_present"
	CheckOrdering      = "ordering"
	CheckClockOutFence = "clock_out_geofence"
)

type VerifierConfig struct {
	RadiusMeters float64
	TimeWindow   time.Duration
}

func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		RadiusMeters: geo.DefaultRadiusMeters,
		TimeWindow:   DefaultTimeWindow,
	}
}

// Verifier applies the verification rules to a visit, its patient's location
// and a snapshot of its event log. It has no state beyond its thresholds.
type Verifier struct {
	fence  geo.Fence
	window time.Duration
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{
		fence:  geo.NewFence(cfg.RadiusMeters),
		window: cfg.TimeWindow,
	}
}

// Result is a verdict plus the names of the checks that failed.
type Result struct {
	Verdict
	Failed []string
}

// Verify evaluates every applicable check without stopping at the first
// failure. A nil visit is the only case that returns early.
func (v *Verifier) Verify(visit *ScheduledVisit, location *PatientLocation, events []VisitEvent) Result {
	if visit == nil {
		return Result{
			Verdict: Verdict{Verified: false, Reasons: []string{reasonVisitNotFound}},
			Failed:  []string{CheckSchedule},
		}
	}

	res := Result{Verdict: Verdict{Verified: true, Reasons: []string{}}}
	fail := func(check string) {
		res.Verified = false
		res.Failed = append(res.Failed, check)
	}

	clockIn := firstOfKind(events, KindClockIn)
	clockOut := firstOfKind(events, KindClockOut)

	if clockIn == nil {
		fail(CheckClockIn)
		res.Reasons = append(res.Reasons, reasonNoClockIn)
	} else {
		diff := absDuration(clockIn.Timestamp.Sub(visit.PlannedStart))
		if diff > v.window {
			fail(CheckTimeWindow)
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"Clock-in time %.1f minutes from planned (allowed: ±%s min)",
				diff.Minutes(), formatMinutes(v.window)))
		} else {
			res.Reasons = append(res.Reasons, fmt.Sprintf(
				"Clock-in time within window (%.1f min)", diff.Minutes()))
		}

		if !v.checkFence(&res, "Clock-in", clockIn, location) {
			fail(CheckClockInFence)
		}
	}

	if clockOut == nil {
		fail(CheckClockOut)
		res.Reasons = append(res.Reasons, reasonNoClockOut)
	} else {
		if clockIn != nil {
			if !clockOut.Timestamp.After(clockIn.Timestamp) {
				fail(CheckOrdering)
				res.Reasons = append(res.Reasons, reasonClockOutOrdered)
			} else {
				duration := clockOut.Timestamp.Sub(clockIn.Timestamp)
				res.Reasons = append(res.Reasons, fmt.Sprintf("Visit duration: %.1f minutes", duration.Minutes()))
			}
		}

		if !v.checkFence(&res, "Clock-out", clockOut, location) {
			fail(CheckClockOutFence)
		}
	}

	return res
}

func (v *Verifier) checkFence(res *Result, label string, ev *VisitEvent, location *PatientLocation) bool {
	if location == nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("%s location could not be checked: patient location unknown", label))
		return false
	}

	distance := geo.DistanceMeters(ev.Point(), location.Point())
	if !v.fence.Contains(distance) {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"%s location %.0fm from patient (allowed: %sm)", label, distance, formatMeters(v.fence.RadiusMeters)))
		return false
	}
	res.Reasons = append(res.Reasons, fmt.Sprintf("%s location within geofence (%.0fm)", label, distance))
	return true
}

// firstOfKind returns the first event of kind in arrival order.
func firstOfKind(events []VisitEvent, kind EventKind) *VisitEvent {
	for i := range events {
		if events[i].Kind == kind {
			return &events[i]
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func formatMinutes(d time.Duration) string {
	m := d.Minutes()
	if m == math.Trunc(m) {
		return fmt.Sprintf("%.0f", m)
	}
	return fmt.Sprintf("%.1f", m)
}

func formatMeters(m float64) string {
	if m == math.Trunc(m) {
		return fmt.Sprintf("%.0f", m)
	}
	return fmt.Sprintf("%.1f", m)
}
