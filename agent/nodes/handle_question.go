package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

// HandleQuestion forwards the raw utterance and returns the answer verbatim.
func HandleQuestion(ctx context.Context, in *GraphState, knowledge contractx.Knowledge) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	answer := knowledge.Answer(ctx, in.Envelope.RawText)
	in.Reply = answer.Text
	in.Degraded = in.Degraded || answer.Degraded
	return in, nil
}

// HandleFallback sends the generic text capability's output verbatim.
func HandleFallback(ctx context.Context, in *GraphState, text contractx.TextGenerator) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	out := text.Complete(ctx, in.Envelope.RawText)
	in.Reply = out.Text
	in.Degraded = in.Degraded || out.Degraded
	return in, nil
}
