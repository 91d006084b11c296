// Package timeslot provides the interval arithmetic behind availability
// queries: busy-interval coalescing, fixed-size slot enumeration, and the
// window/duration bounds shared by meeting and event validation.
package timeslot

import (
	"sort"
	"time"

	"meetsync/internal/domain"
)

const (
	// MinSlotDuration is the smallest requestable slot size.
	MinSlotDuration = 15 * time.Minute
	// MaxSlotDuration bounds both requested slot sizes and meeting lengths.
	MaxSlotDuration = 8 * time.Hour
	// MaxQueryRange bounds the availability query window.
	MaxQueryRange = 7 * 24 * time.Hour
)

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Slot is one bookable opening returned by an availability query.
type Slot struct {
	Start           time.Time `json:"startTime"`
	End             time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
}

// ValidateRange checks a query window: from must precede to and the window
// may not exceed MaxQueryRange.
func ValidateRange(from, to time.Time) error {
	if !from.Before(to) {
		return domain.Validationf("start time %s must be before end time %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if to.Sub(from) > MaxQueryRange {
		return domain.Validationf("time range cannot exceed %d days", int(MaxQueryRange.Hours())/24)
	}
	return nil
}

// ValidateMeetingTime checks a meeting or event window: start must precede
// end and the duration may not exceed MaxSlotDuration.
func ValidateMeetingTime(start, end time.Time) error {
	if !start.Before(end) {
		return domain.Validationf("start time %s must be before end time %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if end.Sub(start) > MaxSlotDuration {
		return domain.Validationf("duration cannot exceed %d hours", int(MaxSlotDuration.Hours()))
	}
	return nil
}

// ValidateSlotDuration checks a requested slot size against the
// [MinSlotDuration, MaxSlotDuration] bounds.
func ValidateSlotDuration(d time.Duration) error {
	if d < MinSlotDuration || d > MaxSlotDuration {
		return domain.Validationf("slot duration must be between %v and %v", MinSlotDuration, MaxSlotDuration)
	}
	return nil
}

// Coalesce sorts intervals by start time and merges any that overlap or
// touch, so the slot cursor never moves backwards when walking them.
func Coalesce(busy []Interval) []Interval {
	if len(busy) <= 1 {
		out := make([]Interval, len(busy))
		copy(out, busy)
		return out
	}
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// FindAvailable enumerates contiguous, non-overlapping slots of length d in
// [from, to) that clear every busy interval. Busy intervals are coalesced
// first; the cursor then walks them in order, emitting slots until the next
// busy start and jumping to each busy end.
func FindAvailable(from, to time.Time, d time.Duration, busy []Interval) []Slot {
	minutes := int(d.Minutes())
	var slots []Slot
	cursor := from

	for _, iv := range Coalesce(busy) {
		for !cursor.Add(d).After(iv.Start) {
			slots = append(slots, Slot{Start: cursor, End: cursor.Add(d), DurationMinutes: minutes})
			cursor = cursor.Add(d)
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}

	for !cursor.Add(d).After(to) {
		slots = append(slots, Slot{Start: cursor, End: cursor.Add(d), DurationMinutes: minutes})
		cursor = cursor.Add(d)
	}
	return slots
}

// Page applies skip/limit pagination over a fully materialized list and
// returns the page along with the total element count. Page numbers are
// zero-based.
func Page[T any](items []T, page, size int) ([]T, int) {
	total := len(items)
	start := page * size
	if start >= total {
		return []T{}, total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], total
}
