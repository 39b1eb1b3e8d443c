package schedule

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/emersion/go-ical"
)

func TestWriteICSRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := testPolicy(t)
	store := NewMemoryStore(p)
	id, err := store.Book(ctx, PatientInfo{Name: "Alice"}, slotAt(9, 0, 9, 30))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	appts, err := store.ListConfirmed(ctx, at(0, 0), at(23, 0))
	if err != nil {
		t.Fatalf("ListConfirmed() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteICS(&buf, p, appts); err != nil {
		t.Fatalf("WriteICS() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "BEGIN:VCALENDAR") {
		t.Fatalf("unexpected feed prefix: %q", buf.String()[:20])
	}

	cal, err := ical.NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	uid, err := events[0].Props.Text(ical.PropUID)
	if err != nil {
		t.Fatalf("UID error = %v", err)
	}
	if uid != id+"@test-calendar" {
		t.Fatalf("uid = %q", uid)
	}
	start, err := events[0].DateTimeStart(p.Location)
	if err != nil {
		t.Fatalf("DateTimeStart() error = %v", err)
	}
	if !start.Equal(at(9, 0)) {
		t.Fatalf("start = %s, want %s", start, at(9, 0))
	}
	summary, _ := events[0].Props.Text(ical.PropSummary)
	if summary != "Appointment: Alice" {
		t.Fatalf("summary = %q", summary)
	}
}

func TestWriteICSEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteICS(&buf, DefaultPolicy(), nil); err != nil {
		t.Fatalf("WriteICS() error = %v", err)
	}
	if !strings.Contains(buf.String(), "PRODID:"+icsProductID) {
		t.Fatalf("missing PRODID in %q", buf.String())
	}
}
