// Package slack delivers messages over the Slack Web API. Button and
// quick-reply payloads render as block kit actions; lists render as section
// blocks.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/irislabs/iris/internal/models"
)

// client is the slice of the Slack API client the adapter uses.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Opts holds the adapter's configurable fields.
type Opts struct {
	BotToken string
	Client   client
}

// Option configures the Slack adapter.
type Option func(*Opts)

// WithBotToken sets the Slack bot token.
func WithBotToken(token string) Option {
	return func(o *Opts) { o.BotToken = token }
}

// WithClient injects a Slack API client, used by tests.
func WithClient(c client) Option {
	return func(o *Opts) { o.Client = c }
}

// Adapter sends messages through the Slack Web API.
type Adapter struct {
	client client
}

// NewAdapter creates a Slack adapter.
func NewAdapter(opts ...Option) (*Adapter, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Client == nil {
		if cfg.BotToken == "" {
			return nil, fmt.Errorf("Slack bot token not set")
		}
		cfg.Client = slack.New(cfg.BotToken)
	}
	return &Adapter{client: cfg.Client}, nil
}

// Send delivers a payload to a Slack channel or DM.
func (a *Adapter) Send(ctx context.Context, recipientID string, payload models.Payload) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	if payload.Text == "" && len(payload.Buttons) == 0 && len(payload.Items) == 0 {
		return models.ErrEmptyMessage
	}

	opts := []slack.MsgOption{slack.MsgOptionText(payload.Text, false)}
	if blocks := buildBlocks(payload); len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	_, ts, err := a.client.PostMessageContext(ctx, recipientID, opts...)
	if err != nil {
		return fmt.Errorf("post Slack message: %w", err)
	}
	slog.Debug("Slack message sent", "channel", recipientID, "ts", ts)
	return nil
}

// DisplayName resolves the Slack user's profile name.
func (a *Adapter) DisplayName(ctx context.Context, recipientID string) (string, error) {
	user, err := a.client.GetUserInfoContext(ctx, recipientID)
	if err != nil {
		return "", fmt.Errorf("get Slack user info: %w", err)
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName, nil
	}
	return user.RealName, nil
}

func buildBlocks(p models.Payload) []slack.Block {
	var blocks []slack.Block
	if p.Text != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.PlainTextType, p.Text, true, false), nil, nil,
		))
	}

	switch p.Kind {
	case models.PayloadLink, models.PayloadChoices:
		var elements []slack.BlockElement
		for i, btn := range p.Buttons {
			be := slack.NewButtonBlockElement(
				fmt.Sprintf("action_%d", i),
				btn.Data,
				slack.NewTextBlockObject(slack.PlainTextType, btn.Title, true, false),
			)
			if btn.URL != "" {
				be.URL = btn.URL
			}
			elements = append(elements, be)
		}
		if len(elements) > 0 {
			blocks = append(blocks, slack.NewActionBlock("choices", elements...))
		}
	case models.PayloadQuickReplies:
		var elements []slack.BlockElement
		for i, reply := range p.QuickReplies {
			elements = append(elements, slack.NewButtonBlockElement(
				fmt.Sprintf("reply_%d", i),
				reply,
				slack.NewTextBlockObject(slack.PlainTextType, reply, true, false),
			))
		}
		if len(elements) > 0 {
			blocks = append(blocks, slack.NewActionBlock("quick_replies", elements...))
		}
	case models.PayloadList:
		for _, item := range p.Items {
			text := "*" + item.Title + "*"
			if item.Subtitle != "" {
				text += "\n" + item.Subtitle
			}
			if item.URL != "" {
				text += "\n" + item.URL
			}
			blocks = append(blocks, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil,
			))
		}
	}
	return blocks
}
