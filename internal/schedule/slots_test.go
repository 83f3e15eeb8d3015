package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/clinic-scheduling/internal/interval"
	"github.com/medbook/clinic-scheduling/internal/timeofday"
)

func slotStarts(slots []CandidateSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func freeStarts(slots []CandidateSlot) []string {
	var out []string
	for _, s := range slots {
		if s.Free {
			out = append(out, s.Start.String())
		}
	}
	return out
}

func TestGenerateSlotsMorningWindow(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 720}}, // 09:00-12:00
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	now := timeofday.At(date, mustMinute(t, "08:00"))

	slots := GenerateSlots(day, nil, date, now)
	assert.Equal(t,
		[]string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		slotStarts(slots))
	for _, s := range slots {
		assert.True(t, s.Free, s.Start.String())
		assert.Empty(t, s.Reason)
	}
}

func TestGenerateSlotsOmitsClosureStraddlers(t *testing.T) {
	date := monday(t)
	// 09:00-12:00 with 10:00-11:00 closed.
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 600}, {Start: 660, End: 720}},
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	now := timeofday.At(date, mustMinute(t, "08:00"))

	slots := GenerateSlots(day, nil, date, now)
	assert.Equal(t, []string{"09:00", "09:30", "11:00", "11:30"}, slotStarts(slots))
}

func TestGenerateSlotsOverrideGrid(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 840, End: 900}}, // 14:00-15:00
		SlotMinutes: 15,
		Anchor:      mustMinute(t, "14:00"),
	}
	now := timeofday.At(date, mustMinute(t, "08:00"))

	slots := GenerateSlots(day, nil, date, now)
	assert.Equal(t, []string{"14:00", "14:15", "14:30", "14:45"}, slotStarts(slots))
}

func TestGenerateSlotsMarksPast(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 720}},
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	now := timeofday.At(date, mustMinute(t, "09:40"))

	slots := GenerateSlots(day, nil, date, now)
	require.Len(t, slots, 6)

	// 09:00 and 09:30 have started; everything later is free.
	assert.False(t, slots[0].Free)
	assert.Equal(t, ReasonPast, slots[0].Reason)
	assert.False(t, slots[1].Free)
	assert.Equal(t, ReasonPast, slots[1].Reason)
	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, freeStarts(slots))
}

func TestGenerateSlotsSlotStartingNowIsPast(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 720}},
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	// Strictly-future rule: a slot starting exactly now is not bookable.
	now := timeofday.At(date, mustMinute(t, "10:00"))

	slots := GenerateSlots(day, nil, date, now)
	assert.Equal(t, []string{"10:30", "11:00", "11:30"}, freeStarts(slots))
}

func TestGenerateSlotsMarksBooked(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 720}},
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	now := timeofday.At(date, mustMinute(t, "08:00"))
	booked := interval.Set{{Start: 570, End: 600}} // 09:30-10:00

	slots := GenerateSlots(day, booked, date, now)
	require.Len(t, slots, 6)
	assert.True(t, slots[0].Free)
	assert.False(t, slots[1].Free)
	assert.Equal(t, ReasonBooked, slots[1].Reason)
	assert.Equal(t, []string{"09:00", "10:00", "10:30", "11:00", "11:30"}, freeStarts(slots))
}

func TestGenerateSlotsDeterministic(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 720}},
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	now := timeofday.At(date, mustMinute(t, "08:00"))

	first := GenerateSlots(day, nil, date, now)
	second := GenerateSlots(day, nil, date, now)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Start, first[i].Start)
	}
}

func TestGenerateSlotsFutureDateAllFree(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 540, End: 720}},
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:00"),
	}
	now := timeofday.At(date.AddDate(0, 0, -3), mustMinute(t, "18:00"))

	slots := GenerateSlots(day, nil, date, now)
	assert.Len(t, freeStarts(slots), 6)
}

func TestGenerateSlotsAnchorProperty(t *testing.T) {
	date := monday(t)
	day := EffectiveDay{
		Windows:     interval.Set{{Start: 555, End: 720}}, // 09:15 start
		SlotMinutes: 30,
		Anchor:      mustMinute(t, "09:15"),
	}
	now := timeofday.At(date, mustMinute(t, "06:00"))

	for _, s := range GenerateSlots(day, nil, date, now) {
		assert.Zero(t, (int(s.Start)-int(day.Anchor))%day.SlotMinutes)
	}
}
