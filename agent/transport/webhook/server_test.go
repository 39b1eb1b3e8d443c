package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/frontdesk-agent/agent/agents/nlu"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
	"github.com/tanpawarit/frontdesk-agent/pkg/qstash"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeOrchestrator struct {
	mu        sync.Mutex
	envelopes []contractx.Envelope
	noShows   []string

	out contractx.Outcome
	err error
}

func (f *fakeOrchestrator) HandleInbound(_ context.Context, env contractx.Envelope) (contractx.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, env)
	out := f.out
	out.EventID = env.EventID
	return out, f.err
}

func (f *fakeOrchestrator) HandleNoShow(_ context.Context, id string) (contractx.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noShows = append(f.noShows, id)
	return f.out, f.err
}

type fakeCalendar struct {
	appts []schedulex.Appointment
	err   error

	from, to time.Time
}

func (f *fakeCalendar) ListConfirmed(_ context.Context, from, to time.Time) ([]schedulex.Appointment, error) {
	f.from, f.to = from, to
	return f.appts, f.err
}

type fakeLimiter struct {
	allowed map[string]bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[key], nil
}

func testPolicy(t *testing.T) schedulex.Policy {
	t.Helper()
	p, err := schedulex.NewPolicy(schedulex.Config{ID: "front-desk", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	return p
}

func newTestServer(t *testing.T, o Orchestrator, cal Calendar, opts ...Option) http.Handler {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithEventIDs(func() string { return "evt-1" }),
	}, opts...)
	return New(o, cal, testPolicy(t), opts...).Handler()
}

func post(t *testing.T, h http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInboundBuildsEnvelope(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{
		Intent:    contractx.IntentQuestion,
		Reply:     "Brush twice a day.",
		Target:    "+15550100",
		Channel:   contractx.ChannelSMS,
		Delivered: true,
	}}
	h := newTestServer(t, orch, &fakeCalendar{})

	rec := post(t, h, "/v1/inbound", `{"contact":" +15550100 ","message":"how often should I brush?","channel":"sms"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}

	if len(orch.envelopes) != 1 {
		t.Fatalf("expected one envelope, got %d", len(orch.envelopes))
	}
	env := orch.envelopes[0]
	if env.EventID != "evt-1" || env.SourceContact != "+15550100" || env.Channel != contractx.ChannelSMS {
		t.Fatalf("unexpected envelope %#v", env)
	}
	if env.RawText != "how often should I brush?" || !env.ReceivedAt.Equal(fixedNow) || env.Intent != "" {
		t.Fatalf("unexpected envelope %#v", env)
	}

	var out contractx.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Reply != "Brush twice a day." || out.EventID != "evt-1" || !out.Delivered {
		t.Fatalf("unexpected outcome %#v", out)
	}
}

func TestInboundPresetIntent(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{Delivered: true}}
	h := newTestServer(t, orch, &fakeCalendar{})

	body := `{"contact":"a@b.c","message":"book","channel":"email","intent":"schedule_appointment","entities":{"time":"2026-03-02T10:00:00Z"}}`
	if rec := post(t, h, "/v1/inbound", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := orch.envelopes[0]
	if env.Intent != contractx.IntentSchedule || env.Channel != contractx.ChannelEmail {
		t.Fatalf("unexpected envelope %#v", env)
	}
	if env.Entities[contractx.EntityTime] != "2026-03-02T10:00:00Z" {
		t.Fatalf("entities not forwarded: %#v", env.Entities)
	}
}

func TestOutcomeStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "delivery failure", err: fmt.Errorf("%w: target=x", contractx.ErrDeliveryFailure), want: http.StatusBadGateway},
		{name: "validation", err: fmt.Errorf("%w: message is empty", contractx.ErrValidation), want: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("lookup: %w", contractx.ErrNotFound), want: http.StatusNotFound},
		{name: "cancelled", err: contractx.ErrAppointmentCancelled, want: http.StatusConflict},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			orch := &fakeOrchestrator{err: tt.err}
			h := newTestServer(t, orch, &fakeCalendar{})
			rec := post(t, h, "/v1/no-show", `{"appointment_id":"APT00001"}`, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestNoShowForwardsID(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{Intent: contractx.IntentNoShow, Delivered: true}}
	h := newTestServer(t, orch, &fakeCalendar{})

	if rec := post(t, h, "/v1/no-show", `{"appointment_id":" APT00042 "}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(orch.noShows) != 1 || orch.noShows[0] != "APT00042" {
		t.Fatalf("unexpected no-show calls %v", orch.noShows)
	}
}

func TestVoiceGreetingWithoutUtterance(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{}
	h := newTestServer(t, orch, &fakeCalendar{})

	rec := post(t, h, "/v1/voice", `{"caller_id":"+15550100","utterance":"  "}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got voiceGreeting
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Reply != nlu.Greeting() {
		t.Fatalf("reply = %q", got.Reply)
	}
	if len(orch.envelopes) != 0 {
		t.Fatal("greeting must not reach the orchestrator")
	}
}

func TestVoiceUtterance(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{Delivered: true}}
	h := newTestServer(t, orch, &fakeCalendar{})

	if rec := post(t, h, "/v1/voice", `{"caller_id":"+15550100","utterance":"cancel APT00001"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := orch.envelopes[0]
	if env.Channel != contractx.ChannelVoice || env.SourceContact != "+15550100" || env.RawText != "cancel APT00001" {
		t.Fatalf("unexpected envelope %#v", env)
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{}
	h := newTestServer(t, orch, &fakeCalendar{}, WithBodyLimitBytes(32))

	if rec := post(t, h, "/v1/inbound", `{not json`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json status = %d", rec.Code)
	}
	big := `{"contact":"+1555","message":"` + strings.Repeat("x", 64) + `"}`
	if rec := post(t, h, "/v1/inbound", big, nil); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/inbound", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET inbound status = %d", rec.Code)
	}
	if len(orch.envelopes) != 0 {
		t.Fatal("rejected requests must not reach the orchestrator")
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{Delivered: true}}
	lim := &fakeLimiter{allowed: map[string]bool{"+1": true}}
	h := newTestServer(t, orch, &fakeCalendar{}, WithLimiter(lim, true))

	if rec := post(t, h, "/v1/inbound", `{"contact":"+1","message":"hi"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("allowed status = %d", rec.Code)
	}
	if rec := post(t, h, "/v1/inbound", `{"contact":"+2","message":"hi"}`, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("limited status = %d", rec.Code)
	}
	if rec := post(t, h, "/v1/inbound", `{"contact":"","message":"hi"}`, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
	if got := lim.keys[2]; !strings.HasPrefix(got, "ip:") {
		t.Fatalf("anonymous key = %q", got)
	}
	if len(orch.envelopes) != 1 {
		t.Fatalf("expected one processed event, got %d", len(orch.envelopes))
	}
}

func TestRateLimiterErrors(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{Delivered: true}}
	broken := &fakeLimiter{err: errors.New("redis down")}

	open := newTestServer(t, orch, &fakeCalendar{}, WithLimiter(broken, true))
	if rec := post(t, open, "/v1/inbound", `{"contact":"+1","message":"hi"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("fail-open status = %d", rec.Code)
	}
	closed := newTestServer(t, orch, &fakeCalendar{}, WithLimiter(broken, false))
	if rec := post(t, closed, "/v1/inbound", `{"contact":"+1","message":"hi"}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("fail-closed status = %d", rec.Code)
	}
}

func TestSignedWebhooks(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{out: contractx.Outcome{Delivered: true}}
	v := qstash.MustNewVerifier(qstash.Config{CurrentSigningKey: "current"})
	h := newTestServer(t, orch, &fakeCalendar{}, WithVerifier(v, "https://desk.example.com/"))

	body := `{"appointment_id":"APT00001"}`
	if rec := post(t, h, "/v1/no-show", body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d", rec.Code)
	}

	sig, err := qstash.Sign("current", "https://desk.example.com/v1/no-show", []byte(body), time.Now(), time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	header := http.Header{qstash.SignatureHeader: []string{sig}}
	if rec := post(t, h, "/v1/no-show", body, header); rec.Code != http.StatusOK {
		t.Fatalf("signed status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec := post(t, h, "/v1/inbound", body, header); rec.Code != http.StatusUnauthorized {
		t.Fatalf("signature replayed on another path: status = %d", rec.Code)
	}
	if len(orch.noShows) != 1 {
		t.Fatalf("expected one accepted no-show, got %d", len(orch.noShows))
	}
}

func TestCalendarFeed(t *testing.T) {
	t.Parallel()

	cal := &fakeCalendar{appts: []schedulex.Appointment{{
		ID:          "APT00001",
		CalendarID:  "front-desk",
		PatientName: "Jane Doe",
		Contact:     "+15550100",
		Slot:        schedulex.NewSlot(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), 30*time.Minute),
		Status:      schedulex.StatusConfirmed,
		UpdatedAt:   fixedNow,
	}}}
	h := newTestServer(t, &fakeOrchestrator{}, cal)

	req := httptest.NewRequest(http.MethodGet, "/v1/calendar.ics?from=2026-03-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "UID:APT00001@front-desk") {
		t.Fatalf("feed missing event:\n%s", rec.Body.String())
	}
	if !cal.from.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || !cal.to.IsZero() {
		t.Fatalf("unexpected window %s..%s", cal.from, cal.to)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/calendar.ics?to=tomorrow", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad bound status = %d", rec.Code)
	}
}

func TestRecoverAndHealth(t *testing.T) {
	t.Parallel()

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithRecover, WithRequestID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic status = %d", rec.Code)
	}

	srv := newTestServer(t, &fakeOrchestrator{}, &fakeCalendar{})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAnonymousRateLimitKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		trust bool
		want  string
	}{
		{name: "direct caller ignores forwarded header", trust: false, want: "ip:192.0.2.1"},
		{name: "trusted proxy uses forwarded header", trust: true, want: "ip:203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lim := &fakeLimiter{allowed: map[string]bool{}}
			h := newTestServer(t, &fakeOrchestrator{}, &fakeCalendar{}, WithLimiter(lim, true), WithTrustedProxy(tt.trust))

			for _, forwarded := range []string{"203.0.113.7", "198.51.100.9"} {
				header := http.Header{"X-Forwarded-For": []string{forwarded + ", 10.0.0.1"}}
				if rec := post(t, h, "/v1/inbound", `{"contact":"","message":"hi"}`, header); rec.Code != http.StatusTooManyRequests {
					t.Fatalf("status = %d", rec.Code)
				}
			}
			if lim.keys[0] != tt.want {
				t.Fatalf("key = %q, want %q", lim.keys[0], tt.want)
			}
			if !tt.trust && lim.keys[1] != lim.keys[0] {
				t.Fatalf("spoofed header changed the bucket: %v", lim.keys)
			}
		})
	}
}
