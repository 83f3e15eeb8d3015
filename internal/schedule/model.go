package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

var (
	ErrNoAvailability = errors.New("doctor has no availability on this date")
)

// WorkingWindow is a contiguous stretch of a day during which a doctor
// accepts appointments, together with the slot duration used inside it.
type WorkingWindow struct {
	Start       timeofday.Minute
	End         timeofday.Minute
	SlotMinutes int
}

// WeeklyAvailability is a doctor's recurring schedule, one ordered window
// list per weekday.
type WeeklyAvailability struct {
	DoctorID uuid.UUID
	Days     map[time.Weekday][]WorkingWindow
}

// Validate enforces the per-weekday invariants: windows ordered and
// non-overlapping, start < end, slot duration at least 5 minutes dividing
// each window evenly, and a single slot duration per weekday.
func (w *WeeklyAvailability) Validate() error {
	for day, windows := range w.Days {
		daySlot := 0
		prevEnd := timeofday.Minute(-1)
		for _, win := range windows {
			if !win.Start.Valid() || !win.End.Valid() || win.Start >= win.End {
				return fmt.Errorf("weekday %s: window %s-%s is inverted", day, win.Start, win.End)
			}
			if win.Start < prevEnd {
				return fmt.Errorf("weekday %s: window starting %s overlaps previous", day, win.Start)
			}
			if win.SlotMinutes < 5 {
				return fmt.Errorf("weekday %s: slot duration %d below 5 minutes", day, win.SlotMinutes)
			}
			if int(win.End-win.Start)%win.SlotMinutes != 0 {
				return fmt.Errorf("weekday %s: window %s-%s not divisible by %d-minute slots",
					day, win.Start, win.End, win.SlotMinutes)
			}
			if daySlot == 0 {
				daySlot = win.SlotMinutes
			} else if win.SlotMinutes != daySlot {
				return fmt.Errorf("weekday %s: mixed slot durations %d and %d", day, daySlot, win.SlotMinutes)
			}
			prevEnd = win.End
		}
	}
	return nil
}

// ExceptionKind discriminates how an exception modifies the weekly schedule.
type ExceptionKind string

const (
	// ExceptionClosure subtracts its windows from the weekly schedule.
	ExceptionClosure ExceptionKind = "closure"
	// ExceptionOverride replaces the weekly schedule for its date entirely.
	ExceptionOverride ExceptionKind = "override"
)

// AvailabilityException is a one-off change to a doctor's schedule for a
// single calendar date. For closures only the window bounds matter; for
// overrides SlotMinutes of the windows prevails over the weekly policy.
type AvailabilityException struct {
	DoctorID uuid.UUID
	Date     time.Time
	Kind     ExceptionKind
	Windows  []WorkingWindow
}
