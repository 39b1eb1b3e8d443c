package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Enabled bool   `envconfig:"ENABLED" default:"false"`
	Brokers string `envconfig:"BROKERS" default:"localhost:9092"`
	GroupID string `envconfig:"GROUP_ID" default:"frontdesk-agent"`
	Topic   string `envconfig:"NOSHOW_TOPIC" default:"appointments.no_show"`
}

// NoShowEvent is published by whatever detects a missed appointment.
type NoShowEvent struct {
	AppointmentID string `json:"appointment_id"`
}

type NoShowHandler interface {
	HandleNoShow(ctx context.Context, appointmentID string) (contractx.Outcome, error)
}

type Handler func(ctx context.Context, msg kafka.Message) error

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads no-show events and hands each one to the orchestrator.
// Messages are committed after handling whether or not the follow-up was sent;
// the orchestrator does not retry and neither does the consumer.
type Consumer struct {
	reader  Reader
	handler Handler
	backoff time.Duration
}

func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func New(reader Reader, handler Handler) *Consumer {
	return &Consumer{reader: reader, handler: handler, backoff: time.Second}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("kafka commit failed")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctxMsg := ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("no-show handler panicked")
			span.SetStatus(codes.Error, "panic")
		}
	}()

	if err := c.handler(ctxSpan, msg); err != nil {
		log.Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("no-show event failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
	}
}

var ErrMalformedEvent = errors.New("malformed no-show event")

func DecodeNoShow(msg kafka.Message) (NoShowEvent, error) {
	var ev NoShowEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return NoShowEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev.AppointmentID = strings.TrimSpace(ev.AppointmentID)
	if ev.AppointmentID == "" {
		return NoShowEvent{}, fmt.Errorf("%w: appointment_id is empty", ErrMalformedEvent)
	}
	return ev, nil
}

// NoShowHandlerFunc adapts the orchestrator into a message Handler.
func NoShowHandlerFunc(h NoShowHandler) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		ev, err := DecodeNoShow(msg)
		if err != nil {
			return err
		}
		out, err := h.HandleNoShow(ctx, ev.AppointmentID)
		if err != nil {
			return fmt.Errorf("no-show %s: %w", ev.AppointmentID, err)
		}
		log.Info().
			Str("appointment_id", ev.AppointmentID).
			Str("channel", string(out.Channel)).
			Str("target", out.Target).
			Msg("no-show follow-up sent")
		return nil
	}
}

func SplitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
