package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

const (
	ProviderLog  = "log"
	ProviderLive = "live"
)

type Config struct {
	Provider string        `envconfig:"PROVIDER" default:"log"`
	Timeout  time.Duration `split_words:"true" default:"5s"`

	SMSWebhookURL     string `envconfig:"SMS_WEBHOOK_URL"`
	SMSWebhookToken   string `envconfig:"SMS_WEBHOOK_TOKEN"`
	VoiceWebhookURL   string `envconfig:"VOICE_WEBHOOK_URL"`
	VoiceWebhookToken string `envconfig:"VOICE_WEBHOOK_TOKEN"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	EmailFrom    string `envconfig:"EMAIL_FROM"`
	EmailSubject string `envconfig:"EMAIL_SUBJECT" default:"Dental Office Follow-up"`
}

// Router implements the outbound dispatch contract by picking a Sender per channel.
type Router struct {
	senders map[contractx.Channel]Sender
}

func NewRouter(senders map[contractx.Channel]Sender) *Router {
	cp := make(map[contractx.Channel]Sender, len(senders))
	for ch, s := range senders {
		if s != nil {
			cp[ch] = s
		}
	}
	return &Router{senders: cp}
}

// New builds the router selected by cfg.Provider.
func New(cfg Config) (*Router, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderLog:
		return NewRouter(map[contractx.Channel]Sender{
			contractx.ChannelSMS:   NewLogSender(string(contractx.ChannelSMS)),
			contractx.ChannelEmail: NewLogSender(string(contractx.ChannelEmail)),
			contractx.ChannelVoice: NewLogSender(string(contractx.ChannelVoice)),
		}), nil
	case ProviderLive:
		return NewRouter(map[contractx.Channel]Sender{
			contractx.ChannelSMS:   NewWebhookSender("sms-webhook", cfg.SMSWebhookURL, cfg.SMSWebhookToken, cfg.Timeout),
			contractx.ChannelVoice: NewWebhookSender("voice-webhook", cfg.VoiceWebhookURL, cfg.VoiceWebhookToken, cfg.Timeout),
			contractx.ChannelEmail: NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailSubject),
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown dispatch provider %q", contractx.ErrValidation, cfg.Provider)
	}
}

func (r *Router) Send(ctx context.Context, target string, body string, channel contractx.Channel) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		log.Error().Str("channel", string(channel)).Msg("dispatch: empty target")
		return false
	}
	sender, ok := r.senders[channel]
	if !ok {
		log.Error().Str("channel", string(channel)).Msg("dispatch: no sender for channel")
		return false
	}
	if err := sender.Send(ctx, target, body); err != nil {
		log.Error().
			Err(err).
			Str("provider", sender.ProviderID()).
			Str("channel", string(channel)).
			Str("target", target).
			Msg("dispatch: send failed")
		return false
	}
	return true
}
