package schedule

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-ical"
)

const icsProductID = "-//frontdesk-agent//appointments//EN"

// WriteICS renders appointments as an iCalendar feed.
func WriteICS(w io.Writer, p Policy, appts []Appointment) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText("X-WR-CALNAME", p.CalendarID)
	cal.Props.SetText("X-WR-TIMEZONE", p.location().String())

	for _, a := range appts {
		cal.Children = append(cal.Children, toEvent(p, a).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func toEvent(p Policy, a Appointment) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, a.ID+"@"+p.CalendarID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, a.UpdatedAt.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, a.Slot.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, a.Slot.End.UTC())

	name := strings.TrimSpace(a.PatientName)
	if name == "" {
		name = "Unknown"
	}
	event.Props.SetText(ical.PropSummary, "Appointment: "+name)
	event.Props.SetText(ical.PropDescription, fmt.Sprintf("Appointment %s for %s", a.ID, name))

	status := "CONFIRMED"
	if a.IsCancelled() {
		status = "CANCELLED"
	}
	event.Props.SetText(ical.PropStatus, status)
	return event
}
