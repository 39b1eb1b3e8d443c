package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

// DispatchReply performs the single outbound send for an event. A failed send
// is reported through Outcome.Delivered, not as a graph error.
func DispatchReply(ctx context.Context, in *GraphState, dispatcher contractx.Dispatcher) (contractx.Outcome, error) {
	if in == nil {
		return contractx.Outcome{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Target) == "" {
		return contractx.Outcome{}, fmt.Errorf("%w: reply target is empty", contractx.ErrValidation)
	}

	delivered := dispatcher.Send(ctx, in.Target, in.Reply, in.Channel)

	evt := log.Info()
	if !delivered {
		evt = log.Error().Err(contractx.ErrDeliveryFailure)
	}
	evt.Str("event_id", in.Envelope.EventID).
		Str("intent", string(in.Intent)).
		Str("target", in.Target).
		Str("channel", string(in.Channel)).
		Bool("degraded", in.Degraded).
		Bool("delivered", delivered).
		Msg("reply dispatched")

	return contractx.Outcome{
		EventID:       in.Envelope.EventID,
		Intent:        in.Intent,
		Reply:         in.Reply,
		Target:        in.Target,
		Channel:       in.Channel,
		AppointmentID: in.AppointmentID,
		Delivered:     delivered,
		Degraded:      in.Degraded,
	}, nil
}
