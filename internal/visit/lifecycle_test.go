package visit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusAfterEvent(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		kind    EventKind
		want    Status
	}{
		{"clock-in starts a scheduled visit", StatusScheduled, KindClockIn, StatusInProgress},
		{"clock-out does not start the visit", StatusScheduled, KindClockOut, StatusScheduled},
		{"in progress stays in progress", StatusInProgress, KindClockIn, StatusInProgress},
		{"completed never regresses", StatusCompleted, KindClockIn, StatusCompleted},
		{"cancelled is untouched", StatusCancelled, KindClockIn, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusAfterEvent(tt.current, tt.kind))
		})
	}
}

func TestStatusAfterVerdict(t *testing.T) {
	verified := Verdict{Verified: true}
	unverified := Verdict{Verified: false, Reasons: []string{"No clock-out event recorded"}}

	assert.Equal(t, StatusCompleted, StatusAfterVerdict(StatusScheduled, verified))
	assert.Equal(t, StatusCompleted, StatusAfterVerdict(StatusInProgress, verified))
	assert.Equal(t, StatusCompleted, StatusAfterVerdict(StatusCompleted, verified))
	assert.Equal(t, StatusCancelled, StatusAfterVerdict(StatusCancelled, verified))

	for _, s := range []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled} {
		assert.Equal(t, s, StatusAfterVerdict(s, unverified))
	}
}

func TestStatusOnRegistration(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, StatusScheduled, StatusOnRegistration(StatusScheduled, nil))
	assert.Equal(t, StatusScheduled, StatusOnRegistration(StatusScheduled, []VisitEvent{
		{Kind: KindClockOut, Timestamp: at},
	}))
	assert.Equal(t, StatusInProgress, StatusOnRegistration(StatusScheduled, []VisitEvent{
		{Kind: KindClockOut, Timestamp: at},
		{Kind: KindClockIn, Timestamp: at},
	}))
	assert.Equal(t, StatusCompleted, StatusOnRegistration(StatusCompleted, []VisitEvent{
		{Kind: KindClockIn, Timestamp: at},
	}))
}

func TestAdvances(t *testing.T) {
	assert.True(t, advances(StatusScheduled, StatusInProgress))
	assert.True(t, advances(StatusScheduled, StatusCompleted))
	assert.True(t, advances(StatusInProgress, StatusCompleted))
	assert.False(t, advances(StatusCompleted, StatusInProgress))
	assert.False(t, advances(StatusInProgress, StatusInProgress))
	assert.False(t, advances(StatusCancelled, StatusCompleted))
	assert.False(t, advances(StatusInProgress, StatusCancelled))
}
