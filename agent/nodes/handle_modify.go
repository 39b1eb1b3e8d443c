package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

func HandleModify(
	ctx context.Context,
	in *GraphState,
	store schedulex.Store,
	policy schedulex.Policy,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	id := schedulex.NormalizeID(in.Entity(contractx.EntityAppointmentID))
	requested := in.Entity(contractx.EntityTime)
	if id == "" || schedulex.IsAnySlot(requested) {
		in.AppointmentID = id
		in.Reply = modifyMessage(id, requested, false)
		return in, nil
	}
	in.AppointmentID = id

	slot, err := policy.ParseSlot(requested, in.Entity(contractx.EntityEnd), in.Now)
	if err != nil {
		in.Reply = modifyMessage(id, requested, false)
		return in, nil
	}
	when := policy.Format(slot.Start)

	err = store.Modify(ctx, id, slot)
	switch {
	case err == nil:
	case errors.Is(err, schedulex.ErrNotFound),
		errors.Is(err, schedulex.ErrSlotConflict),
		errors.Is(err, schedulex.ErrAppointmentCancelled),
		errors.Is(err, schedulex.ErrInvalidSlot):
		log.Debug().Err(err).Str("appointment_id", id).Msg("modify rejected")
	default:
		log.Error().Err(err).Str("appointment_id", id).Msg("modify appointment")
	}
	in.Reply = modifyMessage(id, when, err == nil)
	return in, nil
}
