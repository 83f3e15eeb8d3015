package timeofday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Minute
	}{
		{"00:00", 0},
		{"09:30", 570},
		{"12:00", 720},
		{"23:59", 1439},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.in, got.String())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "9:30", "09:3", "24:00", "12:60", "ab:cd", "12-30", "12:30:00"} {
		_, err := Parse(in)
		require.ErrorIs(t, err, ErrInvalidTimeFormat, in)
	}
}

func TestAdd(t *testing.T) {
	m, _ := Parse("09:00")
	assert.Equal(t, Minute(570), m.Add(30))
	assert.Equal(t, Minute(510), m.Add(-30))
}

func TestFloorTo(t *testing.T) {
	anchor, _ := Parse("09:00")

	cases := []struct {
		in   string
		want string
	}{
		{"09:00", "09:00"},
		{"09:29", "09:00"},
		{"09:30", "09:30"},
		{"10:15", "10:00"},
	}
	for _, tc := range cases {
		m, _ := Parse(tc.in)
		assert.Equal(t, tc.want, m.FloorTo(30, anchor).String(), tc.in)
	}
}

func TestOnGrid(t *testing.T) {
	anchor, _ := Parse("09:00")

	on, _ := Parse("10:30")
	off, _ := Parse("09:45")
	before, _ := Parse("08:30")

	assert.True(t, on.OnGrid(30, anchor))
	assert.False(t, off.OnGrid(30, anchor))
	assert.False(t, before.OnGrid(30, anchor))
}

func TestDateRoundTrip(t *testing.T) {
	date, err := ParseDate("2026-03-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, date.Weekday())
	assert.Equal(t, "2026-03-02", FormatDate(date))

	_, err = ParseDate("02/03/2026", time.UTC)
	require.Error(t, err)
}

func TestAtAndMinuteOf(t *testing.T) {
	date, _ := ParseDate("2026-03-02", time.UTC)
	m, _ := Parse("09:30")

	at := At(date, m)
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, 30, at.Minute())
	assert.Equal(t, m, MinuteOf(at))
	assert.True(t, SameDate(date, at))
}
