package payoff

import (
	"sync"

	"note-lifecycle-lab/internal/calendar"
)

// TraceEvent describes what happened on one observation date.
type TraceEvent struct {
	ISIN              string
	Date              calendar.Date
	BasketTicker      string
	BasketPerformance *float64
	CouponCleared     bool
	CouponPaid        float64
	MissedCoupons     int
	AutocallTested    bool
	Autocalled        bool
	Locked            []string
	DataGap           bool
}

// TraceSink receives trace events in date order.
type TraceSink func(TraceEvent)

// TraceRecorder collects events; safe for concurrent use across products.
type TraceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

// Record appends an event. Its method value satisfies TraceSink.
func (r *TraceRecorder) Record(e TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *TraceRecorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
