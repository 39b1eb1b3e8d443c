package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sender delivers a message body to one address on one transport.
type Sender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// LogSender only logs the message. It is the offline transport.
type LogSender struct {
	channel string
}

func NewLogSender(channel string) *LogSender {
	return &LogSender{channel: channel}
}

func (s *LogSender) ProviderID() string {
	return "log-" + strings.ToLower(s.channel)
}

func (s *LogSender) Send(_ context.Context, to string, body string) error {
	log.Info().
		Str("channel", s.channel).
		Str("target", to).
		Str("body", body).
		Msg("outbound message")
	return nil
}

// WebhookSender posts {"to","body"} JSON to a provider relay. Used for SMS and
// for voice call scripts.
type WebhookSender struct {
	id    string
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(id, url, token string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		id:    id,
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *WebhookSender) ProviderID() string {
	return s.id
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return fmt.Errorf("%s: webhook url not configured", s.id)
	}
	raw, err := json.Marshal(map[string]string{
		"to":   to,
		"body": body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: webhook returned %d", s.id, resp.StatusCode)
	}
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends plain text email through an SMTP relay.
type SMTPSender struct {
	addr     string
	from     string
	subject  string
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewSMTPSender(host, port, username, password, from, subject string) *SMTPSender {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "front-desk@localhost"
	}
	if strings.TrimSpace(subject) == "" {
		subject = "Dental Office Follow-up"
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%s", host, strings.TrimSpace(port)),
		from:     from,
		subject:  subject,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) ProviderID() string {
	return "smtp"
}

func (s *SMTPSender) Send(ctx context.Context, to string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.Contains(to, "@") {
		return errors.New("smtp: target is not an email address")
	}
	msg := buildMessage(s.from, to, s.subject, body)
	return s.sendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}
