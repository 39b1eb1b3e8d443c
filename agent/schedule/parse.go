package schedule

import (
	"fmt"
	"strings"
	"time"
)

// AnySlot is the caller-visible placeholder for "book me wherever there is room".
const AnySlot = "any available slot"

var absoluteLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 3:04 PM",
	"2006-01-02 3 PM",
	"Jan 2 2006 3:04 PM",
}

var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
	"15:04",
}

// IsAnySlot reports whether the time entity asks for any free slot.
func IsAnySlot(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", AnySlot, "any", "anytime", "any time", "asap", "earliest":
		return true
	}
	return false
}

// ParseTime reads a time entity. Naive values are in the calendar timezone;
// "today"/"tomorrow" prefixes are relative to now.
func (p Policy) ParseTime(raw string, now time.Time) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty time", ErrInvalidSlot)
	}
	loc := p.location()

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, strings.ToUpper(value), loc); err == nil {
			return t, nil
		}
	}

	lower := strings.ToLower(value)
	var offset int
	switch {
	case strings.HasPrefix(lower, "today"):
		value = strings.TrimSpace(value[len("today"):])
	case strings.HasPrefix(lower, "tomorrow"):
		value = strings.TrimSpace(value[len("tomorrow"):])
		offset = 1
	default:
		return time.Time{}, fmt.Errorf("%w: unrecognized time %q", ErrInvalidSlot, raw)
	}
	value = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(value), "at"))

	for _, layout := range clockLayouts {
		clock, err := time.Parse(layout, strings.ToUpper(value))
		if err != nil {
			continue
		}
		y, m, d := now.In(loc).AddDate(0, 0, offset).Date()
		return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized time %q", ErrInvalidSlot, raw)
}

// ParseSlot builds a normalized slot from time entities. Without an end the
// calendar's default slot length applies.
func (p Policy) ParseSlot(startRaw, endRaw string, now time.Time) (Slot, error) {
	start, err := p.ParseTime(startRaw, now)
	if err != nil {
		return Slot{}, err
	}

	end := start.Add(p.SlotDuration)
	if strings.TrimSpace(endRaw) != "" {
		if end, err = p.ParseTime(endRaw, now); err != nil {
			return Slot{}, err
		}
	}
	return p.Prepare(Slot{Start: start, End: end})
}
