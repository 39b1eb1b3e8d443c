package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultCalendarID   = "primary"
	defaultTimezone     = "America/New_York"
	defaultResolution   = time.Minute
	defaultSlotDuration = 30 * time.Minute
	defaultOpenHour     = 9
	defaultCloseHour    = 17
	defaultSearchDays   = 7
)

// Config describes the calendar a store serves.
type Config struct {
	ID           string        `envconfig:"ID" split_words:"true" default:"primary"`
	Timezone     string        `envconfig:"TIMEZONE" split_words:"true" default:"America/New_York"`
	Resolution   time.Duration `envconfig:"RESOLUTION" split_words:"true" default:"1m"`
	SlotDuration time.Duration `envconfig:"SLOT_DURATION" split_words:"true" default:"30m"`
	OpenHour     int           `envconfig:"OPEN_HOUR" split_words:"true" default:"9"`
	CloseHour    int           `envconfig:"CLOSE_HOUR" split_words:"true" default:"17"`
	SearchDays   int           `envconfig:"SEARCH_DAYS" split_words:"true" default:"7"`
}

// Policy is the validated, resolved form of Config.
type Policy struct {
	CalendarID   string
	Location     *time.Location
	Resolution   time.Duration
	SlotDuration time.Duration
	OpenHour     int
	CloseHour    int
	SearchDays   int
}

func NewPolicy(cfg Config) (Policy, error) {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		id = defaultCalendarID
	}

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Policy{}, fmt.Errorf("load calendar timezone %q: %w", tz, err)
	}

	p := Policy{
		CalendarID:   id,
		Location:     loc,
		Resolution:   cfg.Resolution,
		SlotDuration: cfg.SlotDuration,
		OpenHour:     cfg.OpenHour,
		CloseHour:    cfg.CloseHour,
		SearchDays:   cfg.SearchDays,
	}
	if p.Resolution <= 0 {
		p.Resolution = defaultResolution
	}
	if p.SlotDuration <= 0 {
		p.SlotDuration = defaultSlotDuration
	}
	if p.SlotDuration < p.Resolution {
		return Policy{}, fmt.Errorf("slot duration %s is shorter than resolution %s", p.SlotDuration, p.Resolution)
	}
	if p.OpenHour == 0 && p.CloseHour == 0 {
		p.OpenHour, p.CloseHour = defaultOpenHour, defaultCloseHour
	}
	if p.OpenHour < 0 || p.CloseHour > 24 || p.OpenHour >= p.CloseHour {
		return Policy{}, fmt.Errorf("invalid business hours %d-%d", p.OpenHour, p.CloseHour)
	}
	if p.SearchDays <= 0 {
		p.SearchDays = defaultSearchDays
	}
	return p, nil
}

// DefaultPolicy is the fallback used by tests and the in-memory store.
func DefaultPolicy() Policy {
	p, err := NewPolicy(Config{})
	if err != nil {
		// tzdata missing; stay usable in UTC.
		return Policy{
			CalendarID:   defaultCalendarID,
			Location:     time.UTC,
			Resolution:   defaultResolution,
			SlotDuration: defaultSlotDuration,
			OpenHour:     defaultOpenHour,
			CloseHour:    defaultCloseHour,
			SearchDays:   defaultSearchDays,
		}
	}
	return p
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Normalize truncates both bounds to the calendar resolution and moves them
// into the calendar timezone.
func (p Policy) Normalize(s Slot) Slot {
	res := p.Resolution
	if res <= 0 {
		res = defaultResolution
	}
	return Slot{
		Start: s.Start.Truncate(res).In(p.location()),
		End:   s.End.Truncate(res).In(p.location()),
	}
}

// Prepare normalizes and validates a slot before it reaches a store.
func (p Policy) Prepare(s Slot) (Slot, error) {
	n := p.Normalize(s)
	if err := n.Validate(); err != nil {
		return Slot{}, err
	}
	return n, nil
}

// Format renders a time for caller-visible messages.
func (p Policy) Format(t time.Time) string {
	return t.In(p.location()).Format("Mon Jan 2 at 3:04 PM MST")
}

func (p Policy) businessDay(day time.Time) Slot {
	loc := p.location()
	y, m, d := day.In(loc).Date()
	return Slot{
		Start: time.Date(y, m, d, p.OpenHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, p.CloseHour, 0, 0, 0, loc),
	}
}
