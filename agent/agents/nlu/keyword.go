package nlu

import (
	"context"
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

const (
	cannedAnswer = "Based on our care guide, a common remedy for mild toothache is rinsing with warm salt water, " +
		"but please consult your dentist for persistent pain."
	cannedText = "Thanks for your message. I can book, change or cancel appointments and answer dental questions."
	greeting   = "Hello! This is the dental front desk. How can I assist you today?"
)

var (
	appointmentIDPattern = regexp.MustCompile(`(?i)\b(APT\d{5}|[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\b`)
	isoTimePattern       = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[ T]\d{1,2}:\d{2}\b`)
	relativeTimePattern  = regexp.MustCompile(`(?i)\b(today|tomorrow)(\s+at)?\s+\d{1,2}(:\d{2})?\s*(am|pm)?\b`)
	patientNamePattern   = regexp.MustCompile(`\bfor ([A-Z][a-z]+(?: [A-Z][a-z]+)?)\b`)
	emailPattern         = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

var (
	cancelWords   = []string{"cancel", "call off"}
	modifyWords   = []string{"reschedule", "change", "move", "modify"}
	scheduleWords = []string{"schedule", "appointment", "book"}
	questionWords = []string{"tooth", "teeth", "pain", "gum", "cavity", "floss", "brush", "bleed"}
)

// Greeting is the opening line for a call that arrives without an utterance.
func Greeting() string {
	return greeting
}

// KeywordClassifier is the offline classifier. It matches keywords and pulls
// entities out with regular expressions.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(ctx context.Context, text string) contractx.Classification {
	lower := strings.ToLower(text)
	entities := map[string]string{}

	if id := appointmentIDPattern.FindString(text); id != "" {
		entities[contractx.EntityAppointmentID] = schedulex.NormalizeID(id)
	}
	if t := isoTimePattern.FindString(text); t != "" {
		entities[contractx.EntityTime] = t
	} else if t := relativeTimePattern.FindString(text); t != "" {
		entities[contractx.EntityTime] = t
	}
	if m := patientNamePattern.FindStringSubmatch(text); len(m) == 2 {
		entities[contractx.EntityPatientName] = m[1]
	}
	if email := emailPattern.FindString(text); email != "" {
		entities[contractx.EntityContact] = email
	}

	var intent contractx.Intent
	switch {
	case containsAny(lower, cancelWords):
		intent = contractx.IntentCancel
	case containsAny(lower, modifyWords):
		intent = contractx.IntentModify
	case containsAny(lower, scheduleWords):
		intent = contractx.IntentSchedule
	case containsAny(lower, questionWords):
		intent = contractx.IntentQuestion
	default:
		return contractx.UnknownClassification(false)
	}
	return contractx.Classification{Intent: intent, Entities: entities}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// CannedKnowledge answers every question with the same care tip.
type CannedKnowledge struct{}

func (CannedKnowledge) Answer(context.Context, string) contractx.Completion {
	return contractx.Completion{Text: cannedAnswer}
}

// CannedText returns a fixed help message.
type CannedText struct{}

func (CannedText) Complete(context.Context, string) contractx.Completion {
	return contractx.Completion{Text: cannedText}
}
