package contract

import (
	"strings"
	"time"
)

type Intent string

const (
	IntentSchedule Intent = "schedule_appointment"
	IntentQuestion Intent = "dental_question"
	IntentCancel   Intent = "cancel_appointment"
	IntentModify   Intent = "modify_appointment"
	IntentUnknown  Intent = "unknown"

	// IntentNoShow labels follow-ups triggered by a no-show event. It is never
	// produced by a classifier.
	IntentNoShow Intent = "no_show"
)

// ParseIntent maps a classifier label onto a known intent. Anything
// unrecognised becomes IntentUnknown.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentSchedule:
		return IntentSchedule
	case IntentQuestion:
		return IntentQuestion
	case IntentCancel:
		return IntentCancel
	case IntentModify:
		return IntentModify
	default:
		return IntentUnknown
	}
}

type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
	ChannelVoice Channel = "VOICE"
)

// ParseChannel defaults to SMS for empty or unknown values.
func ParseChannel(raw string) Channel {
	switch Channel(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail
	case ChannelVoice:
		return ChannelVoice
	default:
		return ChannelSMS
	}
}

// Entity keys produced by classifiers and read by the orchestrator.
const (
	EntityPatientName   = "patient_name"
	EntityName          = "name"
	EntityContact       = "contact"
	EntityContactInfo   = "contact_info"
	EntityTime          = "time"
	EntityEnd           = "end"
	EntityAppointmentID = "appointment_id"
)

// Envelope is the per-request intent envelope built by a transport adapter.
// Intent may be empty, in which case the orchestrator classifies RawText.
type Envelope struct {
	EventID       string            `json:"event_id,omitempty"`
	Intent        Intent            `json:"intent,omitempty"`
	Entities      map[string]string `json:"entities,omitempty"`
	RawText       string            `json:"raw_text"`
	SourceContact string            `json:"source_contact"`
	Channel       Channel           `json:"channel,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
}

type Classification struct {
	Intent   Intent            `json:"intent"`
	Entities map[string]string `json:"entities"`
	Degraded bool              `json:"-"`
}

// UnknownClassification is what a classifier returns when it cannot decide.
func UnknownClassification(degraded bool) Classification {
	return Classification{
		Intent:   IntentUnknown,
		Entities: map[string]string{},
		Degraded: degraded,
	}
}

// Completion is the text returned by the knowledge and generic text capabilities.
type Completion struct {
	Text     string
	Degraded bool
}

// Outcome records what the orchestrator sent for one event.
type Outcome struct {
	EventID       string  `json:"event_id,omitempty"`
	Intent        Intent  `json:"intent"`
	Reply         string  `json:"reply"`
	Target        string  `json:"target"`
	Channel       Channel `json:"channel"`
	AppointmentID string  `json:"appointment_id,omitempty"`
	Delivered     bool    `json:"delivered"`
	Degraded      bool    `json:"degraded,omitempty"`
}
