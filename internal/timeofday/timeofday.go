// Package timeofday provides minute-of-day arithmetic for the scheduling
// core. All booking times are clinic-local wall-clock minutes; UTC only
// appears at storage boundaries.
package timeofday

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinutesPerDay is the exclusive upper bound for a minute of day.
	MinutesPerDay = 1440

	dateLayout = "2006-01-02"
)

var ErrInvalidTimeFormat = errors.New("invalid time format, expected HH:MM")

// Minute is a minute of day in the range [0, 1440].
type Minute int

// Parse converts a 24-hour "HH:MM" string to a Minute.
func Parse(s string) (Minute, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	h, ok1 := twoDigits(s[0], s[1])
	m, ok2 := twoDigits(s[3], s[4])
	if !ok1 || !ok2 || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	return Minute(h*60 + m), nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Add returns m shifted by the given number of minutes. The result is not
// clamped; callers check bounds where a day boundary matters.
func (m Minute) Add(minutes int) Minute {
	return m + Minute(minutes)
}

// FloorTo rounds m down to the nearest grid point at anchor + k*step.
// step must be positive.
func (m Minute) FloorTo(step int, anchor Minute) Minute {
	if step <= 0 {
		return m
	}
	off := int(m - anchor)
	if off < 0 {
		// Below the anchor there is no grid point; the anchor itself is
		// the floor for everything in [anchor-step, anchor).
		off -= step - 1
	}
	return anchor + Minute((off/step)*step)
}

// OnGrid reports whether m lies exactly on the anchor-rooted step grid.
func (m Minute) OnGrid(step int, anchor Minute) bool {
	if step <= 0 {
		return false
	}
	off := int(m - anchor)
	return off >= 0 && off%step == 0
}

// Valid reports whether m is a representable minute of day.
func (m Minute) Valid() bool {
	return m >= 0 && m <= MinutesPerDay
}

// ParseDate interprets a "YYYY-MM-DD" string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders the calendar day of t.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// At places a minute of day on a calendar date, producing an absolute time
// in the date's location.
func At(date time.Time, m Minute) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(m)/60, int(m)%60, 0, 0, date.Location())
}

// MinuteOf projects an absolute time onto its minute of day.
func MinuteOf(t time.Time) Minute {
	return Minute(t.Hour()*60 + t.Minute())
}

// SameDate reports whether a and b fall on the same calendar day in a's
// location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
