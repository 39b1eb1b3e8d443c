package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

type recordingSender struct {
	err  error
	to   []string
	body []string
}

func (r *recordingSender) ProviderID() string { return "recording" }

func (r *recordingSender) Send(_ context.Context, to, body string) error {
	r.to = append(r.to, to)
	r.body = append(r.body, body)
	return r.err
}

func TestRouterSendPicksChannel(t *testing.T) {
	t.Parallel()

	sms := &recordingSender{}
	email := &recordingSender{err: errors.New("relay down")}
	r := NewRouter(map[contractx.Channel]Sender{
		contractx.ChannelSMS:   sms,
		contractx.ChannelEmail: email,
	})

	if !r.Send(context.Background(), "+1555", "hi", contractx.ChannelSMS) {
		t.Fatal("expected sms delivery")
	}
	if len(sms.to) != 1 || sms.to[0] != "+1555" || sms.body[0] != "hi" {
		t.Fatalf("unexpected sms record: %#v", sms)
	}
	if r.Send(context.Background(), "a@b.c", "hi", contractx.ChannelEmail) {
		t.Fatal("expected failure when sender errors")
	}
	if r.Send(context.Background(), "+1555", "hi", contractx.ChannelVoice) {
		t.Fatal("expected failure for unconfigured channel")
	}
	if r.Send(context.Background(), "  ", "hi", contractx.ChannelSMS) {
		t.Fatal("expected failure for empty target")
	}
	if len(sms.to) != 1 {
		t.Fatalf("empty target must not reach sender, got %d sends", len(sms.to))
	}
}

func TestWebhookSender(t *testing.T) {
	t.Parallel()

	var (
		gotAuth    string
		gotPayload map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		if gotPayload["to"] == "fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	s := NewWebhookSender("sms-webhook", srv.URL, "secret", 0)
	if err := s.Send(context.Background(), "+1555", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAuth != "Bearer secret" || gotPayload["to"] != "+1555" || gotPayload["body"] != "hello" {
		t.Fatalf("unexpected request auth=%q payload=%#v", gotAuth, gotPayload)
	}
	if err := s.Send(context.Background(), "fail", "hello"); err == nil {
		t.Fatal("expected error on non-2xx")
	}
	if err := NewWebhookSender("voice-webhook", "", "", 0).Send(context.Background(), "x", "y"); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestSMTPSender(t *testing.T) {
	t.Parallel()

	s := NewSMTPSender("mail.local", "25", "", "", "", "")
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := s.Send(context.Background(), "alice@example.com", "See you soon"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "mail.local:25" || len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("unexpected envelope addr=%s to=%v", gotAddr, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Dental Office Follow-up\r\n") || !strings.HasSuffix(gotMsg, "See you soon\r\n") {
		t.Fatalf("unexpected message %q", gotMsg)
	}
	if err := s.Send(context.Background(), "+1555", "x"); err == nil {
		t.Fatal("expected error for non-email target")
	}
}

func TestNewProviders(t *testing.T) {
	t.Parallel()

	r, err := New(Config{})
	if err != nil {
		t.Fatalf("New(log) error = %v", err)
	}
	for _, ch := range []contractx.Channel{contractx.ChannelSMS, contractx.ChannelEmail, contractx.ChannelVoice} {
		if !r.Send(context.Background(), "someone", "body", ch) {
			t.Fatalf("log provider should deliver on %s", ch)
		}
	}
	if _, err := New(Config{Provider: "pigeon"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
