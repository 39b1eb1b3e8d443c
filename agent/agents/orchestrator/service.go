package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	nodex "github.com/tanpawarit/frontdesk-agent/agent/nodes"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidContact = nodex.ErrInvalidContact
	ErrInvalidID      = nodex.ErrInvalidID
)

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator routes one event to one action and exactly one outbound send.
// It holds no per-event state; concurrent calls are independent.
type Orchestrator struct {
	store      schedulex.Store
	models     contractx.Registry
	dispatcher contractx.Dispatcher
	policy     schedulex.Policy

	inboundRunner compose.Runnable[contractx.Envelope, contractx.Outcome]
	noShowRunner  compose.Runnable[string, contractx.Outcome]

	tracer trace.Tracer
	now    func() time.Time
}

func New(
	store schedulex.Store,
	models contractx.Registry,
	dispatcher contractx.Dispatcher,
	policy schedulex.Policy,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("schedule store is required")
	}
	if models == nil {
		return nil, errors.New("capability registry is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	o := &Orchestrator{
		store:      store,
		models:     models,
		dispatcher: dispatcher,
		policy:     policy,
		tracer:     otel.Tracer("orchestrator"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	inboundRunner, err := o.compileHandleInboundGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.inboundRunner = inboundRunner

	noShowRunner, err := o.compileHandleNoShowGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.noShowRunner = noShowRunner

	return o, nil
}

// HandleInbound processes one inbound event. The returned error is non-nil only
// for invalid envelopes and for delivery failures; in the latter case the
// Outcome still describes what was attempted.
func (o *Orchestrator) HandleInbound(ctx context.Context, env contractx.Envelope) (contractx.Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.handle_inbound",
		trace.WithAttributes(attribute.String("event_id", env.EventID)),
	)
	defer span.End()

	out, err := o.inboundRunner.Invoke(ctx, env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbound graph failed")
		return contractx.Outcome{}, err
	}
	return o.finish(span, out)
}

// HandleNoShow sends a reschedule request to the appointment's stored contact.
// Unknown ids are reported with ErrNotFound and nothing is sent.
func (o *Orchestrator) HandleNoShow(ctx context.Context, appointmentID string) (contractx.Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.handle_no_show",
		trace.WithAttributes(attribute.String("appointment_id", appointmentID)),
	)
	defer span.End()

	out, err := o.noShowRunner.Invoke(ctx, appointmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no-show graph failed")
		log.Error().Err(err).Str("appointment_id", appointmentID).Msg("no-show follow-up not sent")
		return contractx.Outcome{}, err
	}
	return o.finish(span, out)
}

func (o *Orchestrator) finish(span trace.Span, out contractx.Outcome) (contractx.Outcome, error) {
	span.SetAttributes(
		attribute.String("intent", string(out.Intent)),
		attribute.String("channel", string(out.Channel)),
		attribute.Bool("delivered", out.Delivered),
		attribute.Bool("degraded", out.Degraded),
	)
	if !out.Delivered {
		err := fmt.Errorf("%w: target=%s channel=%s", contractx.ErrDeliveryFailure, out.Target, out.Channel)
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return out, err
	}
	return out, nil
}
