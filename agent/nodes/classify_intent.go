package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

// ClassifyIntent fills Intent and Entities. A pre-classified envelope skips the
// classifier; its entities win over anything the classifier extracts.
func ClassifyIntent(ctx context.Context, in *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	entities := map[string]string{}
	if strings.TrimSpace(string(in.Envelope.Intent)) != "" {
		in.Intent = contractx.ParseIntent(string(in.Envelope.Intent))
	} else {
		result := classifier.Classify(ctx, in.Envelope.RawText)
		in.Intent = contractx.ParseIntent(string(result.Intent))
		in.Degraded = result.Degraded
		for k, v := range result.Entities {
			entities[k] = v
		}
		if result.Degraded {
			log.Warn().
				Err(contractx.ErrClassificationDegraded).
				Str("event_id", in.Envelope.EventID).
				Msg("classifier returned fallback")
		}
	}
	for k, v := range in.Envelope.Entities {
		entities[k] = v
	}
	in.Entities = entities

	log.Debug().
		Str("event_id", in.Envelope.EventID).
		Str("intent", string(in.Intent)).
		Int("entities", len(entities)).
		Msg("intent classified")
	return in, nil
}
