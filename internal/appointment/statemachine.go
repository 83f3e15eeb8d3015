package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

// Event is a lifecycle trigger applied to an appointment.
type Event string

const (
	EventPayOnline    Event = "payOnline"
	EventMarkCashPaid Event = "markCashPaid"
	EventCheckIn      Event = "checkIn"
	EventStart        Event = "start"
	EventComplete     Event = "complete"
	EventCancel       Event = "cancel"
	EventMarkNoShow   Event = "markNoShow"
)

var ErrIllegalTransition = errors.New("illegal appointment state transition")

// ParseEvent validates an externally supplied event name.
func ParseEvent(s string) (Event, error) {
	switch Event(s) {
	case EventPayOnline, EventMarkCashPaid, EventCheckIn, EventStart,
		EventComplete, EventCancel, EventMarkNoShow:
		return Event(s), nil
	}
	return "", fmt.Errorf("unknown event %q", s)
}

// Next computes the state an appointment moves to when ev fires at now.
// Transitions are never coerced: a precondition failure returns
// ErrIllegalTransition and the appointment is left untouched by callers.
func Next(a *Appointment, ev Event, now time.Time, checkInGrace time.Duration) (State, error) {
	startAt := timeofday.At(a.Date, a.Start)
	endAt := startAt.Add(time.Duration(a.Duration) * time.Minute)

	switch ev {
	case EventPayOnline:
		if a.State == StatePendingPayment {
			return StateScheduled, nil
		}
	case EventMarkCashPaid:
		if a.State == StatePendingPayment || a.State == StateScheduled {
			return StateScheduled, nil
		}
	case EventCheckIn:
		if a.State == StateScheduled && !now.Before(startAt.Add(-checkInGrace)) {
			return StateCheckedIn, nil
		}
	case EventStart:
		if a.State == StateCheckedIn || a.State == StateScheduled {
			return StateInProgress, nil
		}
	case EventComplete:
		if a.State == StateInProgress {
			return StateCompleted, nil
		}
	case EventCancel:
		if a.State == StatePendingPayment || a.State == StateScheduled || a.State == StateCheckedIn {
			return StateCancelled, nil
		}
	case EventMarkNoShow:
		if (a.State == StateScheduled || a.State == StateCheckedIn) && !now.Before(endAt) {
			return StateNoShow, nil
		}
	}

	return "", fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, a.State)
}
