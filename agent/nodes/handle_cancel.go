package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

func HandleCancel(ctx context.Context, in *GraphState, store schedulex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	id := schedulex.NormalizeID(in.Entity(contractx.EntityAppointmentID))
	if id == "" {
		in.Reply = cancelMessage("", false)
		return in, nil
	}
	in.AppointmentID = id

	err := store.Cancel(ctx, id)
	if err != nil && !errors.Is(err, schedulex.ErrNotFound) {
		log.Error().Err(err).Str("appointment_id", id).Msg("cancel appointment")
	}
	in.Reply = cancelMessage(id, err == nil)
	return in, nil
}
