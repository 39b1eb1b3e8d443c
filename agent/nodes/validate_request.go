package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

var (
	ErrInvalidMessage = fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	ErrInvalidContact = fmt.Errorf("%w: source contact is empty", contractx.ErrValidation)
	ErrInvalidID      = fmt.Errorf("%w: appointment id is empty", contractx.ErrValidation)
)

type GraphState struct {
	Envelope contractx.Envelope
	Now      time.Time

	Intent   contractx.Intent
	Entities map[string]string
	Degraded bool

	Reply         string
	Target        string
	Channel       contractx.Channel
	AppointmentID string
}

// Entity returns the first non-empty classified entity for the given keys.
func (s *GraphState) Entity(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(s.Entities[k]); v != "" {
			return v
		}
	}
	return ""
}

func ValidateRequest(in contractx.Envelope, nowFn func() time.Time) (*GraphState, error) {
	in.RawText = strings.TrimSpace(in.RawText)
	in.SourceContact = strings.TrimSpace(in.SourceContact)

	if in.RawText == "" && strings.TrimSpace(string(in.Intent)) == "" {
		return nil, ErrInvalidMessage
	}
	if in.SourceContact == "" {
		return nil, ErrInvalidContact
	}

	now := nowFn()
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = now.UTC()
	}
	channel := contractx.ParseChannel(string(in.Channel))
	in.Channel = channel

	return &GraphState{
		Envelope: in,
		Now:      now,
		Target:   in.SourceContact,
		Channel:  channel,
	}, nil
}
