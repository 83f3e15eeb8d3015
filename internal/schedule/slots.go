package schedule

import (
	"time"

	"github.com/medbook/clinic-scheduling/internal/interval"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

// SlotReason explains why a candidate slot is not bookable.
type SlotReason string

const (
	ReasonPast   SlotReason = "PAST"
	ReasonBooked SlotReason = "BOOKED"
)

// CandidateSlot is one tiled position on a doctor's day grid.
type CandidateSlot struct {
	Start  timeofday.Minute
	End    timeofday.Minute
	Free   bool
	Reason SlotReason
}

// GenerateSlots tiles the effective windows with fixed-duration slots
// anchored on day.Anchor. Positions that do not fit wholly inside a working
// window are omitted. Slots overlapping a booked interval are returned with
// Free=false/BOOKED; slots whose start is not strictly in the future are
// returned with Free=false/PAST. Output is ascending and deterministic.
func GenerateSlots(day EffectiveDay, booked interval.Set, date time.Time, now time.Time) []CandidateSlot {
	if day.SlotMinutes <= 0 || day.Windows.IsEmpty() {
		return nil
	}

	last := day.Windows[len(day.Windows)-1].End

	var slots []CandidateSlot
	for start := day.Anchor; int(start)+day.SlotMinutes <= last; start = start.Add(day.SlotMinutes) {
		span := interval.Span{Start: int(start), End: int(start) + day.SlotMinutes}
		if !day.Windows.Contains(span) {
			continue
		}

		slot := CandidateSlot{Start: start, End: timeofday.Minute(span.End), Free: true}
		switch {
		case !timeofday.At(date, start).After(now):
			slot.Free = false
			slot.Reason = ReasonPast
		case booked.Overlaps(span):
			slot.Free = false
			slot.Reason = ReasonBooked
		}
		slots = append(slots, slot)
	}
	return slots
}
