package appointment

import (
	"github.com/medbook/clinic-scheduling/internal/interval"
)

// DayIndex projects the appointments of one (doctor, date) into an interval
// set for conflict checks. Only slot-occupying states contribute; cancelled,
// no-show and completed appointments free their intervals.
type DayIndex struct {
	booked interval.Set
}

// NewDayIndex builds the index from the stored appointments of a single day.
func NewDayIndex(appointments []Appointment) *DayIndex {
	spans := make([]interval.Span, 0, len(appointments))
	for i := range appointments {
		a := &appointments[i]
		if !a.State.OccupiesSlot() {
			continue
		}
		spans = append(spans, interval.Span{Start: int(a.Start), End: int(a.End())})
	}
	// Stored appointments of live states are pairwise disjoint by the
	// admission invariant, so normalization cannot fail here.
	booked, _ := interval.Normalize(spans)
	return &DayIndex{booked: booked}
}

// Booked exposes the occupied coverage, for slot generation.
func (ix *DayIndex) Booked() interval.Set {
	return ix.booked
}

// Conflicts reports whether [start, end) overlaps any live appointment.
func (ix *DayIndex) Conflicts(start, end int) bool {
	return ix.booked.Overlaps(interval.Span{Start: start, End: end})
}

// Insert records a newly admitted interval. Valid only when Conflicts is
// false for the same bounds; the caller holds the day lock.
func (ix *DayIndex) Insert(start, end int) {
	ix.booked = interval.Union(ix.booked, interval.Set{{Start: start, End: end}})
}
