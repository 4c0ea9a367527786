package visit

// StatusAfterEvent projects a recorded event onto the visit status. A clock-in
// moves a visit that is still scheduled forward; a visit only stays scheduled
// while no clock-in has been projected onto it.
func StatusAfterEvent(current Status, kind EventKind) Status {
	if current == StatusScheduled && kind == KindClockIn {
		return StatusInProgress
	}
	return current
}

// StatusAfterVerdict projects a validation outcome onto the visit status.
// An unverified verdict never moves the status, and cancelled is terminal.
func StatusAfterVerdict(current Status, verdict Verdict) Status {
	if !verdict.Verified {
		return current
	}
	switch current {
	case StatusScheduled, StatusInProgress:
		return StatusCompleted
	default:
		return current
	}
}

// StatusOnRegistration returns the status for a visit whose log may already
// hold events that arrived before the schedule did.
func StatusOnRegistration(current Status, events []VisitEvent) Status {
	if firstOfKind(events, KindClockIn) != nil {
		return StatusAfterEvent(current, KindClockIn)
	}
	return current
}

func statusRank(s Status) int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// advances reports whether moving from one status to another goes forward.
func advances(from, to Status) bool {
	fr, tr := statusRank(from), statusRank(to)
	return fr >= 0 && tr > fr
}
