// Package notify sends user-facing notifications over email and WhatsApp.
// Delivery transports are opaque HTTP services; callers only see the Sender
// contract.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Channel selects the delivery transport for a message.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Message is one notification to deliver.
type Message struct {
	Channel   Channel
	Recipient string
	Subject   string
	Template  string
	Data      map[string]string
}

// Sender delivers a single message. Implementations surface transport errors
// to the caller and never retry on their own; retry policy lives in the
// Dispatcher.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailSenderConfig configures the HTTP mail relay client.
type EmailSenderConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// EmailSender delivers templated email through an HTTP relay.
type EmailSender struct {
	client *resty.Client
	from   string
}

// NewEmailSender constructs an EmailSender with an explicit request timeout.
func NewEmailSender(cfg EmailSenderConfig) (*EmailSender, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("email relay base url is required")
	}
	if cfg.From == "" {
		return nil, errors.New("email sender address is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey)

	return &EmailSender{client: client, from: cfg.From}, nil
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return fmt.Errorf("email sender cannot deliver channel %q", msg.Channel)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"from":     s.from,
			"to":       msg.Recipient,
			"subject":  msg.Subject,
			"template": msg.Template,
			"data":     msg.Data,
		}).
		Post("/v1/messages")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send email: relay returned %s", resp.Status())
	}
	return nil
}

// WhatsAppSenderConfig configures the WhatsApp gateway client.
type WhatsAppSenderConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// WhatsAppSender delivers plain-text WhatsApp messages through a
// Twilio-shaped gateway.
type WhatsAppSender struct {
	client *resty.Client
	sid    string
	from   string
}

// NewWhatsAppSender constructs a WhatsAppSender with an explicit request timeout.
func NewWhatsAppSender(cfg WhatsAppSenderConfig) (*WhatsAppSender, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("whatsapp gateway base url is required")
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("whatsapp gateway credentials are required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken)

	return &WhatsAppSender{client: client, sid: cfg.AccountSID, from: cfg.FromNumber}, nil
}

func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelWhatsApp {
		return fmt.Errorf("whatsapp sender cannot deliver channel %q", msg.Channel)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": "whatsapp:" + s.from,
			"To":   "whatsapp:" + msg.Recipient,
			"Body": msg.Data["body"],
		}).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.sid))
	if err != nil {
		return fmt.Errorf("send whatsapp: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send whatsapp: gateway returned %s", resp.Status())
	}
	return nil
}

// Router fans a message out to the sender registered for its channel.
type Router struct {
	senders map[Channel]Sender
}

// NewRouter builds a Router from the given channel senders.
func NewRouter(senders map[Channel]Sender) *Router {
	if len(senders) == 0 {
		panic("notify router requires at least one sender")
	}
	return &Router{senders: senders}
}

func (r *Router) Send(ctx context.Context, msg Message) error {
	sender, ok := r.senders[msg.Channel]
	if !ok {
		return fmt.Errorf("no sender registered for channel %q", msg.Channel)
	}
	return sender.Send(ctx, msg)
}

var (
	_ Sender = (*EmailSender)(nil)
	_ Sender = (*WhatsAppSender)(nil)
	_ Sender = (*Router)(nil)
)
