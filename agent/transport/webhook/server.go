package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/frontdesk-agent/agent/agents/nlu"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
	"github.com/tanpawarit/frontdesk-agent/pkg/qstash"
)

type Config struct {
	Addr              string        `envconfig:"ADDR" default:":8080"`
	PublicURL         string        `envconfig:"PUBLIC_URL"`
	BodyLimit         int64         `envconfig:"BODY_LIMIT" default:"65536"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RateLimitFailOpen bool          `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"true"`
	TrustProxy        bool          `envconfig:"TRUST_PROXY" default:"false"`
}

// Orchestrator is the part of the orchestrator the HTTP adapter drives.
type Orchestrator interface {
	HandleInbound(ctx context.Context, env contractx.Envelope) (contractx.Outcome, error)
	HandleNoShow(ctx context.Context, appointmentID string) (contractx.Outcome, error)
}

type Calendar interface {
	ListConfirmed(ctx context.Context, from, to time.Time) ([]schedulex.Appointment, error)
}

type SignatureVerifier interface {
	Verify(signature string, body []byte, url string) error
}

type Option func(*Server)

func WithLimiter(l Limiter, failOpen bool) Option {
	return func(s *Server) {
		s.limiter = l
		s.failOpen = failOpen
	}
}

// WithVerifier requires a valid Upstash-Signature on every POST. publicURL is
// the externally visible base URL used for the subject check; empty skips it.
func WithVerifier(v SignatureVerifier, publicURL string) Option {
	return func(s *Server) {
		s.verifier = v
		s.publicURL = strings.TrimRight(strings.TrimSpace(publicURL), "/")
	}
}

// WithTrustedProxy keys anonymous callers by X-Forwarded-For. Enable it only
// when a proxy in front of the server overwrites that header.
func WithTrustedProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}

func WithBodyLimitBytes(n int64) Option {
	return func(s *Server) { s.bodyLimit = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithEventIDs(next func() string) Option {
	return func(s *Server) {
		if next != nil {
			s.newEventID = next
		}
	}
}

// Server turns provider webhooks into intent envelopes.
type Server struct {
	orchestrator Orchestrator
	calendar     Calendar
	policy       schedulex.Policy

	limiter    Limiter
	failOpen   bool
	trustProxy bool
	verifier   SignatureVerifier
	publicURL  string
	bodyLimit  int64

	now        func() time.Time
	newEventID func() string
}

func New(o Orchestrator, cal Calendar, policy schedulex.Policy, opts ...Option) *Server {
	s := &Server{
		orchestrator: o,
		calendar:     cal,
		policy:       policy,
		failOpen:     true,
		bodyLimit:    64 << 10,
		now:          time.Now,
		newEventID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/inbound", s.handleInbound)
	mux.HandleFunc("POST /v1/voice", s.handleVoice)
	mux.HandleFunc("POST /v1/no-show", s.handleNoShow)
	mux.HandleFunc("GET /v1/calendar.ics", s.handleCalendar)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return Chain(mux,
		WithRecover,
		WithRequestID,
		WithAccessLog,
		WithBodyLimit(s.bodyLimit),
	)
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

type inboundRequest struct {
	Contact  string            `json:"contact"`
	Message  string            `json:"message"`
	Channel  string            `json:"channel"`
	Intent   string            `json:"intent,omitempty"`
	Entities map[string]string `json:"entities,omitempty"`
}

type voiceRequest struct {
	CallerID  string `json:"caller_id"`
	Utterance string `json:"utterance"`
}

type noShowRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type voiceGreeting struct {
	Reply string `json:"reply"`
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.allow(w, r, req.Contact) {
		return
	}

	env := contractx.Envelope{
		EventID:       s.newEventID(),
		Entities:      req.Entities,
		RawText:       req.Message,
		SourceContact: strings.TrimSpace(req.Contact),
		Channel:       contractx.ParseChannel(req.Channel),
		ReceivedAt:    s.now(),
	}
	if strings.TrimSpace(req.Intent) != "" {
		env.Intent = contractx.ParseIntent(req.Intent)
	}

	out, err := s.orchestrator.HandleInbound(r.Context(), env)
	s.writeOutcome(w, r, out, err)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		writeJSON(w, http.StatusOK, voiceGreeting{Reply: nlu.Greeting()})
		return
	}
	if !s.allow(w, r, req.CallerID) {
		return
	}

	out, err := s.orchestrator.HandleInbound(r.Context(), contractx.Envelope{
		EventID:       s.newEventID(),
		RawText:       req.Utterance,
		SourceContact: strings.TrimSpace(req.CallerID),
		Channel:       contractx.ChannelVoice,
		ReceivedAt:    s.now(),
	})
	s.writeOutcome(w, r, out, err)
}

func (s *Server) handleNoShow(w http.ResponseWriter, r *http.Request) {
	var req noShowRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.orchestrator.HandleNoShow(r.Context(), strings.TrimSpace(req.AppointmentID))
	s.writeOutcome(w, r, out, err)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	from, err := parseBound(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseBound(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}

	appts, err := s.calendar.ListConfirmed(r.Context(), from, to)
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("list appointments failed")
		writeError(w, http.StatusInternalServerError, "calendar unavailable")
		return
	}

	var buf bytes.Buffer
	if err := schedulex.WriteICS(&buf, s.policy, appts); err != nil {
		log.Error().Err(err).Msg("render calendar failed")
		writeError(w, http.StatusInternalServerError, "calendar unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// decode reads the body, checks the signature when a verifier is set and
// unmarshals into dst. It writes the error response itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return false
	}

	if s.verifier != nil {
		url := ""
		if s.publicURL != "" {
			url = s.publicURL + r.URL.Path
		}
		if err := s.verifier.Verify(r.Header.Get(qstash.SignatureHeader), body, url); err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("rejected unsigned webhook")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return false
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// allow applies the per-contact limiter, falling back to the client address
// when the payload has no contact.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, contact string) bool {
	if s.limiter == nil {
		return true
	}
	key := strings.TrimSpace(contact)
	if key == "" {
		key = "ip:" + clientKey(r, s.trustProxy)
	}
	ok, err := s.limiter.Allow(r.Context(), key)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter error")
		if s.failOpen {
			return true
		}
		writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
		return false
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out contractx.Outcome, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, contractx.ErrDeliveryFailure):
		writeJSON(w, http.StatusBadGateway, out)
	case errors.Is(err, contractx.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, contractx.ErrAppointmentCancelled):
		writeError(w, http.StatusConflict, "appointment is cancelled")
	default:
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("event handling failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseBound(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
