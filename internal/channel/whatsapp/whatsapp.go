// Package whatsapp delivers messages over the Twilio WhatsApp API.
//
// WhatsApp via Twilio has no interactive widgets comparable to Slack blocks
// or Discord components, so richer payload kinds are degraded to formatted
// text with numbered options and bare URLs.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/irislabs/iris/internal/models"
)

// messageCreator is the slice of the Twilio REST client the adapter uses.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Opts holds the adapter's configurable fields.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	API        messageCreator
}

// Option configures the WhatsApp adapter.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the WhatsApp sender number, e.g. "+14155238886".
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithAPI injects a Twilio message API, used by tests.
func WithAPI(api messageCreator) Option {
	return func(o *Opts) { o.API = api }
}

// Adapter sends WhatsApp messages through Twilio.
type Adapter struct {
	api  messageCreator
	from string
}

// NewAdapter creates a Twilio-backed WhatsApp adapter.
func NewAdapter(opts ...Option) (*Adapter, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("WhatsApp sender number not set")
	}
	if cfg.API == nil {
		if cfg.AccountSID == "" || cfg.AuthToken == "" {
			return nil, fmt.Errorf("Twilio credentials not set")
		}
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		cfg.API = client.Api
	}
	return &Adapter{api: cfg.API, from: cfg.From}, nil
}

// Send delivers a payload as a WhatsApp text message.
func (a *Adapter) Send(ctx context.Context, recipientID string, payload models.Payload) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	body := renderText(payload)
	if body == "" {
		return models.ErrEmptyMessage
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo("whatsapp:" + recipientID)
	params.SetFrom("whatsapp:" + a.from)
	params.SetBody(body)

	msg, err := a.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send WhatsApp message: %w", err)
	}
	if msg.Sid != nil {
		slog.Debug("WhatsApp message sent", "sid", *msg.Sid, "to", recipientID)
	}
	return nil
}

// DisplayName returns empty; the Twilio messaging API exposes no profile
// lookup for WhatsApp recipients.
func (a *Adapter) DisplayName(ctx context.Context, recipientID string) (string, error) {
	return "", nil
}

// renderText flattens a payload into WhatsApp plain text.
func renderText(p models.Payload) string {
	var b strings.Builder
	b.WriteString(p.Text)

	switch p.Kind {
	case models.PayloadLink, models.PayloadChoices:
		for _, btn := range p.Buttons {
			b.WriteString("\n")
			if btn.URL != "" {
				fmt.Fprintf(&b, "%s: %s", btn.Title, btn.URL)
			} else {
				b.WriteString(btn.Title)
			}
		}
	case models.PayloadQuickReplies:
		if len(p.QuickReplies) > 0 {
			b.WriteString("\n")
			b.WriteString(strings.Join(p.QuickReplies, " / "))
		}
	case models.PayloadList:
		for i, item := range p.Items {
			b.WriteString("\n")
			fmt.Fprintf(&b, "%d. %s", i+1, item.Title)
			if item.Subtitle != "" {
				fmt.Fprintf(&b, " (%s)", item.Subtitle)
			}
			if item.URL != "" {
				fmt.Fprintf(&b, " %s", item.URL)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
