package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAvailableSlotsHalfOpenBusy(t *testing.T) {
	t.Parallel()

	window := slotAt(9, 0, 11, 0)
	busy := []Slot{slotAt(9, 30, 10, 0)}

	got := AvailableSlots(window, 30*time.Minute, 30*time.Minute, busy, at(0, 0))
	want := []time.Time{at(9, 0), at(10, 0), at(10, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slot[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAvailableSlotsSkipsPast(t *testing.T) {
	t.Parallel()

	got := AvailableSlots(slotAt(9, 0, 10, 0), 30*time.Minute, 30*time.Minute, nil, at(9, 10))
	if len(got) != 1 || !got[0].Equal(at(9, 30)) {
		t.Fatalf("got %v, want [09:30]", got)
	}
}

func TestAvailableSlotsDegenerateInput(t *testing.T) {
	t.Parallel()

	if got := AvailableSlots(slotAt(9, 0, 10, 0), 0, time.Minute, nil, at(0, 0)); got != nil {
		t.Fatalf("zero duration: got %v", got)
	}
	if got := AvailableSlots(slotAt(10, 0, 9, 0), time.Minute, time.Minute, nil, at(0, 0)); got != nil {
		t.Fatalf("reversed window: got %v", got)
	}
}

func TestFirstAvailableSkipsBookedAndClosedHours(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := testPolicy(t)
	store := NewMemoryStore(p)
	if _, err := store.Book(ctx, PatientInfo{Name: "a"}, slotAt(9, 0, 9, 30)); err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	got, err := FirstAvailable(ctx, store, p, at(7, 0))
	if err != nil {
		t.Fatalf("FirstAvailable() error = %v", err)
	}
	if !got.Equal(slotAt(9, 30, 10, 0)) {
		t.Fatalf("got %+v, want 09:30-10:00", got)
	}

	after, err := FirstAvailable(ctx, store, p, at(18, 0))
	if err != nil {
		t.Fatalf("FirstAvailable(after hours) error = %v", err)
	}
	if want := at(9, 0).AddDate(0, 0, 1); !after.Start.Equal(want) {
		t.Fatalf("got %s, want next day opening %s", after.Start, want)
	}
}

func TestFirstAvailableNoRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := testPolicy(t)
	p.SearchDays = 1
	store := NewMemoryStore(p)
	if _, err := store.Book(ctx, PatientInfo{Name: "all day"}, slotAt(9, 0, 17, 0)); err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	_, err := FirstAvailable(ctx, store, p, at(8, 0))
	if !errors.Is(err, ErrNoAvailability) {
		t.Fatalf("expected ErrNoAvailability, got %v", err)
	}
}

func TestSuggestSlotsLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := testPolicy(t)
	store := NewMemoryStore(p)

	got, err := SuggestSlots(ctx, store, p, at(16, 0), time.Hour, 3)
	if err != nil {
		t.Fatalf("SuggestSlots() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(got))
	}
	if !got[0].Equal(slotAt(16, 0, 17, 0)) {
		t.Fatalf("first suggestion = %+v", got[0])
	}
	for _, s := range got[1:] {
		if !s.Start.After(at(17, 0)) {
			t.Fatalf("suggestion %+v should roll to the next day", s)
		}
	}
}
