package orchestratornode

import (
	"fmt"
	"strings"

	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

const (
	defaultPatientName = "you"
	bookingApology     = "Sorry, we could not complete your request right now. Please try again later."
)

func confirmMessage(name, when, id string) string {
	return fmt.Sprintf("Appointment confirmed for %s at %s. Your appointment ID is %s.", name, when, id)
}

func unavailableMessage(when string, p schedulex.Policy, alternatives []schedulex.Slot) string {
	msg := fmt.Sprintf("Sorry, %s is not available. Would you like to try another time?", when)
	if len(alternatives) == 0 {
		return msg
	}
	opts := make([]string, 0, len(alternatives))
	for _, s := range alternatives {
		opts = append(opts, p.Format(s.Start))
	}
	return msg + " Open times: " + strings.Join(opts, "; ") + "."
}

func noOpeningsMessage(days int) string {
	return fmt.Sprintf("Sorry, there are no open appointments in the next %d days. Please call us to book.", days)
}

func cancelMessage(id string, ok bool) string {
	if id == "" {
		return "Appointment cancellation failed. Please include your appointment ID."
	}
	if ok {
		return fmt.Sprintf("Appointment %s cancellation successful.", id)
	}
	return fmt.Sprintf("Appointment %s cancellation failed.", id)
}

func modifyMessage(id, when string, ok bool) string {
	if id == "" {
		return "Appointment change failed. Please include your appointment ID."
	}
	if when == "" {
		when = "the requested time"
	}
	if ok {
		return fmt.Sprintf("Appointment %s change to %s successful.", id, when)
	}
	return fmt.Sprintf("Appointment %s change to %s failed.", id, when)
}

func noShowMessage(id, when string) string {
	return fmt.Sprintf("We missed you for your appointment %s (%s). Please call us to reschedule.", id, when)
}
