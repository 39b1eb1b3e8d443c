package schedule

import (
	"context"
	"time"
)

// Store is the single source of truth for appointment state of one calendar.
//
// Book, Modify and Cancel run under the calendar's mutual-exclusion domain and
// re-check conflicts at commit time; CheckAvailability is advisory only.
type Store interface {
	CheckAvailability(ctx context.Context, slot Slot) (bool, error)
	Book(ctx context.Context, patient PatientInfo, slot Slot) (string, error)
	Modify(ctx context.Context, id string, slot Slot) error
	Cancel(ctx context.Context, id string) error
	GetDetails(ctx context.Context, id string) (Appointment, error)
	ListConfirmed(ctx context.Context, from, to time.Time) ([]Appointment, error)
}
