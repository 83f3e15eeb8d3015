package schedule

import (
	"fmt"
	"time"

	"github.com/medbook/clinic-scheduling/internal/interval"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

// EffectiveDay is the resolved availability for one (doctor, date): the
// working coverage after exceptions, the slot duration in force, and the
// grid anchor (start of the earliest window).
type EffectiveDay struct {
	Windows     interval.Set
	SlotMinutes int
	Anchor      timeofday.Minute
}

// Resolve computes the effective working windows for a calendar date.
//
// An override exception replaces the weekly schedule outright and its slot
// duration prevails; closures on an overridden date are ignored. Without an
// override, every closure window is subtracted from the weekly windows.
// defaultSlotMinutes applies only when the winning windows carry no slot
// duration of their own.
func Resolve(weekly *WeeklyAvailability, exceptions []AvailabilityException, date time.Time, defaultSlotMinutes int) (EffectiveDay, error) {
	windows := weekly.Days[date.Weekday()]

	var override *AvailabilityException
	var closures []AvailabilityException
	for i := range exceptions {
		switch exceptions[i].Kind {
		case ExceptionOverride:
			if override == nil {
				override = &exceptions[i]
			}
		case ExceptionClosure:
			closures = append(closures, exceptions[i])
		}
	}

	if override != nil {
		windows = override.Windows
		closures = nil
	}

	slotMinutes := defaultSlotMinutes
	for _, w := range windows {
		if w.SlotMinutes > 0 {
			slotMinutes = w.SlotMinutes
			break
		}
	}

	work, err := interval.Normalize(spansOf(windows))
	if err != nil {
		return EffectiveDay{}, fmt.Errorf("normalize working windows: %w", err)
	}
	if work.IsEmpty() {
		return EffectiveDay{}, ErrNoAvailability
	}

	// The grid is anchored on the day's first scheduled window, before any
	// closure trims it. A late-morning closure must not shift every
	// afternoon slot off the published grid.
	anchor := timeofday.Minute(work[0].Start)

	for _, c := range closures {
		cut, err := interval.Normalize(spansOf(c.Windows))
		if err != nil {
			return EffectiveDay{}, fmt.Errorf("normalize closure windows: %w", err)
		}
		work = interval.Difference(work, cut)
	}

	if work.IsEmpty() {
		return EffectiveDay{}, ErrNoAvailability
	}

	return EffectiveDay{
		Windows:     work,
		SlotMinutes: slotMinutes,
		Anchor:      anchor,
	}, nil
}

func spansOf(windows []WorkingWindow) []interval.Span {
	spans := make([]interval.Span, 0, len(windows))
	for _, w := range windows {
		spans = append(spans, interval.Span{Start: int(w.Start), End: int(w.End)})
	}
	return spans
}
