package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("appointment not found")
	ErrSlotConflict         = errors.New("time slot overlaps a confirmed appointment")
	ErrInvalidSlot          = errors.New("invalid time slot")
	ErrAppointmentCancelled = errors.New("appointment is cancelled")
	ErrNoAvailability       = errors.New("no available slot in search window")
)

// NormalizeID maps an appointment id as a caller or model wrote it onto the
// form the stores issue: APT ids upper-case, uuids in canonical lower-case.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if upper := strings.ToUpper(id); strings.HasPrefix(upper, "APT") {
		return upper
	}
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Slot is the half-open interval [Start, End).
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewSlot(start time.Time, d time.Duration) Slot {
	return Slot{Start: start, End: start.Add(d)}
}

func (s Slot) Validate() error {
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidSlot)
	}
	if !s.Start.Before(s.End) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidSlot,
			s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether the two intervals share any instant.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

func (s Slot) Equal(o Slot) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Slot) In(loc *time.Location) Slot {
	if loc == nil {
		return s
	}
	return Slot{Start: s.Start.In(loc), End: s.End.In(loc)}
}

// PatientInfo is the caller-supplied identifying data for a booking.
type PatientInfo struct {
	Name    string `json:"patient_name"`
	Contact string `json:"contact"`
	Channel string `json:"channel,omitempty"`
}

func (p PatientInfo) normalized() PatientInfo {
	return PatientInfo{
		Name:    strings.TrimSpace(p.Name),
		Contact: strings.TrimSpace(p.Contact),
		Channel: strings.TrimSpace(p.Channel),
	}
}

type Appointment struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendar_id"`
	PatientName string    `json:"patient_name"`
	Contact     string    `json:"contact"`
	Channel     string    `json:"channel,omitempty"`
	Slot        Slot      `json:"time_slot"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a *Appointment) IsConfirmed() bool {
	return a != nil && a.Status == StatusConfirmed
}

func (a *Appointment) IsCancelled() bool {
	return a != nil && a.Status == StatusCancelled
}
