package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medbook/clinic-scheduling/internal/interval"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

func spanAppt(start, duration int, state State) Appointment {
	return Appointment{
		Start:    timeofday.Minute(start),
		Duration: duration,
		State:    state,
	}
}

func TestDayIndexSkipsTerminalStates(t *testing.T) {
	ix := NewDayIndex([]Appointment{
		spanAppt(540, 30, StateScheduled),
		spanAppt(570, 30, StateCancelled),
		spanAppt(600, 30, StateNoShow),
		spanAppt(630, 30, StateCompleted),
		spanAppt(660, 30, StatePendingPayment),
	})

	assert.Equal(t, interval.Set{{Start: 540, End: 570}, {Start: 660, End: 690}}, ix.Booked())
	assert.True(t, ix.Conflicts(540, 570))
	assert.False(t, ix.Conflicts(570, 660))
	assert.True(t, ix.Conflicts(650, 670))
}

func TestDayIndexHalfOpenBoundaries(t *testing.T) {
	ix := NewDayIndex([]Appointment{spanAppt(600, 30, StateScheduled)})

	// Back-to-back slots share a boundary but do not conflict.
	assert.False(t, ix.Conflicts(570, 600))
	assert.False(t, ix.Conflicts(630, 660))
	assert.True(t, ix.Conflicts(629, 659))
}

func TestDayIndexInsert(t *testing.T) {
	ix := NewDayIndex(nil)
	assert.False(t, ix.Conflicts(600, 630))

	ix.Insert(600, 630)
	assert.True(t, ix.Conflicts(600, 630))
	assert.False(t, ix.Conflicts(630, 660))

	ix.Insert(630, 660)
	assert.True(t, ix.Conflicts(610, 650))
}
