package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/domain"
)

var base = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func iv(startMin, endMin int) Interval {
	return Interval{Start: at(startMin), End: at(endMin)}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", iv(0, 30), iv(60, 90), false},
		{"touching is not overlapping", iv(0, 30), iv(30, 60), false},
		{"partial overlap", iv(0, 45), iv(30, 60), true},
		{"contained", iv(0, 60), iv(15, 30), true},
		{"identical", iv(0, 30), iv(0, 30), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestFindAvailable_EmptyBusyCoversWholeWindow(t *testing.T) {
	slots := FindAvailable(at(0), at(120), 30*time.Minute, nil)
	require.Len(t, slots, 4)
	for i, s := range slots {
		assert.Equal(t, at(i*30), s.Start)
		assert.Equal(t, at(i*30+30), s.End)
		assert.Equal(t, 30, s.DurationMinutes)
	}
}

func TestFindAvailable_SkipsBusyInterval(t *testing.T) {
	// Busy 10:30-11:00 inside a 10:00-12:00 window.
	slots := FindAvailable(at(0), at(120), 30*time.Minute, []Interval{iv(30, 60)})
	require.Len(t, slots, 3)
	assert.Equal(t, at(0), slots[0].Start)
	assert.Equal(t, at(60), slots[1].Start)
	assert.Equal(t, at(90), slots[2].Start)
}

func TestFindAvailable_BusyNotAlignedToSlots(t *testing.T) {
	// Busy 10:20-10:40: no 30-minute slot fits before it, next slot starts
	// at the busy end.
	slots := FindAvailable(at(0), at(120), 30*time.Minute, []Interval{iv(20, 40)})
	require.Len(t, slots, 2)
	assert.Equal(t, at(40), slots[0].Start)
	assert.Equal(t, at(70), slots[1].Start)
}

func TestFindAvailable_OverlappingBusyIntervalsAreCoalesced(t *testing.T) {
	// Two overlapping busy intervals; walking them un-merged would move the
	// cursor backwards and re-emit covered slots.
	busy := []Interval{iv(30, 90), iv(45, 60)}
	slots := FindAvailable(at(0), at(150), 30*time.Minute, busy)
	require.Len(t, slots, 3)
	assert.Equal(t, at(0), slots[0].Start)
	assert.Equal(t, at(90), slots[1].Start)
	assert.Equal(t, at(120), slots[2].Start)
}

func TestFindAvailable_BusyCoversWholeWindow(t *testing.T) {
	slots := FindAvailable(at(0), at(120), 30*time.Minute, []Interval{iv(-30, 150)})
	assert.Empty(t, slots)
}

func TestFindAvailable_SlotLargerThanWindow(t *testing.T) {
	slots := FindAvailable(at(0), at(20), 30*time.Minute, nil)
	assert.Empty(t, slots)
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{"empty", nil, []Interval{}},
		{"single", []Interval{iv(0, 30)}, []Interval{iv(0, 30)}},
		{"disjoint stay separate", []Interval{iv(60, 90), iv(0, 30)}, []Interval{iv(0, 30), iv(60, 90)}},
		{"overlapping merge", []Interval{iv(0, 45), iv(30, 60)}, []Interval{iv(0, 60)}},
		{"touching merge", []Interval{iv(0, 30), iv(30, 60)}, []Interval{iv(0, 60)}},
		{"contained collapses", []Interval{iv(0, 90), iv(15, 30), iv(45, 60)}, []Interval{iv(0, 90)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coalesce(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRange(t *testing.T) {
	require.NoError(t, ValidateRange(at(0), at(60)))

	err := ValidateRange(at(60), at(0))
	require.ErrorIs(t, err, domain.ErrValidation)

	err = ValidateRange(at(0), at(0))
	require.ErrorIs(t, err, domain.ErrValidation)

	err = ValidateRange(base, base.Add(7*24*time.Hour+time.Minute))
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, ValidateRange(base, base.Add(7*24*time.Hour)))
}

func TestValidateMeetingTime(t *testing.T) {
	require.NoError(t, ValidateMeetingTime(at(0), at(60)))
	require.NoError(t, ValidateMeetingTime(base, base.Add(8*time.Hour)))

	err := ValidateMeetingTime(base, base.Add(8*time.Hour+time.Minute))
	require.ErrorIs(t, err, domain.ErrValidation)

	err = ValidateMeetingTime(at(60), at(0))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateSlotDuration(t *testing.T) {
	require.NoError(t, ValidateSlotDuration(15*time.Minute))
	require.NoError(t, ValidateSlotDuration(8*time.Hour))
	require.ErrorIs(t, ValidateSlotDuration(10*time.Minute), domain.ErrValidation)
	require.ErrorIs(t, ValidateSlotDuration(9*time.Hour), domain.ErrValidation)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, total := Page(items, 0, 2)
	assert.Equal(t, []int{1, 2}, page)
	assert.Equal(t, 5, total)

	page, _ = Page(items, 1, 2)
	assert.Equal(t, []int{3, 4}, page)

	page, _ = Page(items, 2, 2)
	assert.Equal(t, []int{5}, page)

	page, total = Page(items, 3, 2)
	assert.Empty(t, page)
	assert.Equal(t, 5, total)
}
