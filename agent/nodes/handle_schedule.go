package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

const maxAlternatives = 3

// HandleSchedule books the requested slot, or the first free one when the
// caller asked for any time. Store failures become caller-facing phrasing.
func HandleSchedule(
	ctx context.Context,
	in *GraphState,
	store schedulex.Store,
	policy schedulex.Policy,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	name := in.Entity(contractx.EntityPatientName, contractx.EntityName)
	if name == "" {
		name = defaultPatientName
	}
	contact, channel := bookingContact(in)
	requested := in.Entity(contractx.EntityTime)

	var slot schedulex.Slot
	if schedulex.IsAnySlot(requested) {
		first, err := schedulex.FirstAvailable(ctx, store, policy, in.Now)
		switch {
		case errors.Is(err, schedulex.ErrNoAvailability):
			in.Reply = noOpeningsMessage(policy.SearchDays)
			return in, nil
		case err != nil:
			return apologize(in, err), nil
		}
		slot = first
	} else {
		parsed, err := policy.ParseSlot(requested, in.Entity(contractx.EntityEnd), in.Now)
		if err != nil {
			log.Debug().Err(err).Str("time", requested).Msg("unparseable time entity")
			in.Reply = unavailableMessage(requested, policy, nil)
			return in, nil
		}
		if parsed.Start.Before(in.Now) {
			in.Reply = unavailableMessage(policy.Format(parsed.Start), policy, suggest(ctx, store, policy, in, parsed))
			return in, nil
		}
		slot = parsed
	}

	ok, err := store.CheckAvailability(ctx, slot)
	if err != nil {
		return apologize(in, err), nil
	}
	if !ok {
		in.Reply = unavailableMessage(policy.Format(slot.Start), policy, suggest(ctx, store, policy, in, slot))
		return in, nil
	}

	id, err := store.Book(ctx, schedulex.PatientInfo{
		Name:    name,
		Contact: contact,
		Channel: string(channel),
	}, slot)
	switch {
	case errors.Is(err, schedulex.ErrSlotConflict), errors.Is(err, schedulex.ErrInvalidSlot):
		// lost the race after a positive check
		in.Reply = unavailableMessage(policy.Format(slot.Start), policy, suggest(ctx, store, policy, in, slot))
		return in, nil
	case err != nil:
		return apologize(in, err), nil
	}

	in.AppointmentID = id
	in.Reply = confirmMessage(name, policy.Format(slot.Start), id)
	log.Info().
		Str("event_id", in.Envelope.EventID).
		Str("appointment_id", id).
		Time("start", slot.Start).
		Msg("appointment booked")
	return in, nil
}

// bookingContact picks the contact stored on the appointment and a channel
// that can reach it. A contact named in the message replaces the sender's
// address, and an email address is only reachable over EMAIL.
func bookingContact(in *GraphState) (string, contractx.Channel) {
	source := strings.TrimSpace(in.Envelope.SourceContact)
	contact := in.Entity(contractx.EntityContact, contractx.EntityContactInfo)
	if contact == "" || strings.EqualFold(contact, source) {
		return source, in.Channel
	}
	if strings.Contains(contact, "@") {
		return contact, contractx.ChannelEmail
	}
	if in.Channel == contractx.ChannelEmail {
		return contact, contractx.ChannelSMS
	}
	return contact, in.Channel
}

func suggest(
	ctx context.Context,
	store schedulex.Store,
	policy schedulex.Policy,
	in *GraphState,
	wanted schedulex.Slot,
) []schedulex.Slot {
	from := wanted.Start
	if from.Before(in.Now) {
		from = in.Now
	}
	alts, err := schedulex.SuggestSlots(ctx, store, policy, from, wanted.Duration(), maxAlternatives)
	if err != nil {
		log.Warn().Err(err).Msg("suggest alternative slots")
		return nil
	}
	return alts
}

func apologize(in *GraphState, err error) *GraphState {
	log.Error().
		Err(err).
		Str("event_id", in.Envelope.EventID).
		Str("intent", string(in.Intent)).
		Msg("scheduling backend failed")
	in.Reply = bookingApology
	return in
}
