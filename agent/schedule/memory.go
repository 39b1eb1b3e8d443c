package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps one calendar in process memory. All mutations hold the
// calendar's write lock for the whole check-then-commit sequence.
type MemoryStore struct {
	policy Policy

	mu           sync.RWMutex
	appointments map[string]*Appointment
	seq          uint64

	now func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(policy Policy, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		policy:       policy,
		appointments: make(map[string]*Appointment, 64),
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) CheckAvailability(ctx context.Context, slot Slot) (bool, error) {
	slot, err := s.policy.Prepare(slot)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conflictLocked(slot, "") == "", nil
}

func (s *MemoryStore) Book(ctx context.Context, patient PatientInfo, slot Slot) (string, error) {
	slot, err := s.policy.Prepare(slot)
	if err != nil {
		return "", err
	}
	patient = patient.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	if other := s.conflictLocked(slot, ""); other != "" {
		return "", fmt.Errorf("%w: with %s", ErrSlotConflict, other)
	}

	// ids are never reused: seq only grows, cancelled records stay in the map.
	s.seq++
	id := fmt.Sprintf("APT%05d", s.seq)
	now := s.now().UTC()
	s.appointments[id] = &Appointment{
		ID:          id,
		CalendarID:  s.policy.CalendarID,
		PatientName: patient.Name,
		Contact:     patient.Contact,
		Channel:     patient.Channel,
		Slot:        slot,
		Status:      StatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return id, nil
}

func (s *MemoryStore) Modify(ctx context.Context, id string, slot Slot) error {
	slot, err := s.policy.Prepare(slot)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	if appt.IsCancelled() {
		return fmt.Errorf("%w: id=%s", ErrAppointmentCancelled, id)
	}
	if appt.Slot.Equal(slot) {
		return nil
	}
	if other := s.conflictLocked(slot, id); other != "" {
		return fmt.Errorf("%w: with %s", ErrSlotConflict, other)
	}

	appt.Slot = slot
	appt.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	if appt.IsCancelled() {
		return nil
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) GetDetails(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return Appointment{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	return *appt, nil
}

func (s *MemoryStore) ListConfirmed(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	out := make([]Appointment, 0, len(s.appointments))
	for _, appt := range s.appointments {
		if !appt.IsConfirmed() || !inWindow(appt.Slot, from, to) {
			continue
		}
		out = append(out, *appt)
	}
	s.mu.RUnlock()

	sortByStart(out)
	return out, nil
}

// conflictLocked returns the id of a confirmed appointment overlapping slot,
// ignoring exclude. Callers hold s.mu.
func (s *MemoryStore) conflictLocked(slot Slot, exclude string) string {
	for id, appt := range s.appointments {
		if id == exclude || !appt.IsConfirmed() {
			continue
		}
		if appt.Slot.Overlaps(slot) {
			return id
		}
	}
	return ""
}

// inWindow treats a zero bound as unbounded.
func inWindow(slot Slot, from, to time.Time) bool {
	if !from.IsZero() && !slot.End.After(from) {
		return false
	}
	if !to.IsZero() && !slot.Start.Before(to) {
		return false
	}
	return true
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Slot.Start.Equal(appts[j].Slot.Start) {
			return appts[i].ID < appts[j].ID
		}
		return appts[i].Slot.Start.Before(appts[j].Slot.Start)
	})
}
