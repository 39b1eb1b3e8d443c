package schedule

import (
	"context"
	"fmt"
	"time"
)

// AvailableSlots returns slot start times within window where a booking of
// length duration would not overlap any busy interval. Starts before now are
// skipped.
func AvailableSlots(window Slot, duration, step time.Duration, busy []Slot, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var starts []time.Time
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(NewSlot(t, duration), busy) {
			starts = append(starts, t)
		}
	}
	return starts
}

func overlapsAny(s Slot, busy []Slot) bool {
	for _, b := range busy {
		if s.Overlaps(b) {
			return true
		}
	}
	return false
}

// FirstAvailable finds the earliest free slot of the calendar's default length
// inside business hours over the next SearchDays days.
func FirstAvailable(ctx context.Context, store Store, p Policy, now time.Time) (Slot, error) {
	slots, err := SuggestSlots(ctx, store, p, now, p.SlotDuration, 1)
	if err != nil {
		return Slot{}, err
	}
	if len(slots) == 0 {
		return Slot{}, fmt.Errorf("%w: %d days from %s", ErrNoAvailability, p.SearchDays, now.Format(time.RFC3339))
	}
	return slots[0], nil
}

// SuggestSlots lists up to n free slots of the given length starting at or
// after from, walking business days forward.
func SuggestSlots(ctx context.Context, store Store, p Policy, from time.Time, duration time.Duration, n int) ([]Slot, error) {
	if n <= 0 {
		return nil, nil
	}
	if duration <= 0 {
		duration = p.SlotDuration
	}
	step := p.SlotDuration
	if step <= 0 {
		step = defaultSlotDuration
	}

	from = p.Normalize(Slot{Start: from, End: from}).Start
	horizon := p.businessDay(from).Start.AddDate(0, 0, p.SearchDays)

	busy, err := store.ListConfirmed(ctx, from, horizon)
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}
	intervals := make([]Slot, 0, len(busy))
	for _, a := range busy {
		intervals = append(intervals, a.Slot)
	}

	out := make([]Slot, 0, n)
	for day := 0; day < p.SearchDays && len(out) < n; day++ {
		window := p.businessDay(from.AddDate(0, 0, day))
		for _, start := range AvailableSlots(window, duration, step, intervals, from) {
			out = append(out, NewSlot(start, duration))
			if len(out) == n {
				break
			}
		}
	}
	return out, nil
}
