package orchestratornode

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

// NoShowState carries a no-show event through its graph.
type NoShowState struct {
	GraphState
	Appointment schedulex.Appointment
}

func ValidateNoShow(id string, nowFn func() time.Time) (*NoShowState, error) {
	id = schedulex.NormalizeID(id)
	if id == "" {
		return nil, ErrInvalidID
	}
	return &NoShowState{
		GraphState: GraphState{
			Now:           nowFn(),
			AppointmentID: id,
		},
	}, nil
}

// LookupAppointment fails with a reportable error when the appointment is
// unknown or no longer confirmed, so nothing is sent for it.
func LookupAppointment(ctx context.Context, in *NoShowState, store schedulex.Store) (*NoShowState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: no-show state is nil", contractx.ErrValidation)
	}
	appt, err := store.GetDetails(ctx, in.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("lookup appointment %s: %w", in.AppointmentID, err)
	}
	if !appt.IsConfirmed() {
		return nil, fmt.Errorf("lookup appointment %s: %w", in.AppointmentID, schedulex.ErrAppointmentCancelled)
	}
	if strings.TrimSpace(appt.Contact) == "" {
		return nil, fmt.Errorf("%w: appointment %s has no contact", contractx.ErrValidation, appt.ID)
	}
	in.Appointment = appt
	return in, nil
}

func ComposeFollowUp(in *NoShowState, policy schedulex.Policy) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: no-show state is nil", contractx.ErrValidation)
	}
	out := in.GraphState
	out.Intent = contractx.IntentNoShow
	out.Target = in.Appointment.Contact
	out.Channel = contractx.ParseChannel(in.Appointment.Channel)
	out.Reply = noShowMessage(in.Appointment.ID, policy.Format(in.Appointment.Slot.Start))
	return &out, nil
}
