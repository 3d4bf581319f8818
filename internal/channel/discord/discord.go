// Package discord delivers messages over the Discord bot API. Buttons and
// quick replies render as message components; lists render as an embed.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/irislabs/iris/internal/models"
)

// session is the slice of the discordgo session the adapter uses.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Opts holds the adapter's configurable fields.
type Opts struct {
	BotToken string
	Session  session
}

// Option configures the Discord adapter.
type Option func(*Opts)

// WithBotToken sets the Discord bot token.
func WithBotToken(token string) Option {
	return func(o *Opts) { o.BotToken = token }
}

// WithSession injects a Discord session, used by tests.
func WithSession(s session) Option {
	return func(o *Opts) { o.Session = s }
}

// Adapter sends messages through a Discord bot session. Recipients are user
// IDs; a DM channel is opened per send.
type Adapter struct {
	session session
}

// NewAdapter creates a Discord adapter.
func NewAdapter(opts ...Option) (*Adapter, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Session == nil {
		if cfg.BotToken == "" {
			return nil, fmt.Errorf("Discord bot token not set")
		}
		s, err := discordgo.New("Bot " + cfg.BotToken)
		if err != nil {
			return nil, fmt.Errorf("create Discord session: %w", err)
		}
		cfg.Session = s
	}
	return &Adapter{session: cfg.Session}, nil
}

// Send delivers a payload to the user's DM channel.
func (a *Adapter) Send(ctx context.Context, recipientID string, payload models.Payload) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}

	ch, err := a.session.UserChannelCreate(recipientID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open Discord DM channel: %w", err)
	}

	msg := &discordgo.MessageSend{Content: payload.Text}
	if components := buildComponents(payload); len(components) > 0 {
		msg.Components = components
	}
	if embed := buildListEmbed(payload); embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if msg.Content == "" && len(msg.Components) == 0 && len(msg.Embeds) == 0 {
		return models.ErrEmptyMessage
	}

	if _, err := a.session.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send Discord message: %w", err)
	}
	slog.Debug("Discord message sent", "user", recipientID, "channel", ch.ID)
	return nil
}

// DisplayName resolves the Discord user's global or account name.
func (a *Adapter) DisplayName(ctx context.Context, recipientID string) (string, error) {
	u, err := a.session.User(recipientID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("get Discord user: %w", err)
	}
	if u.GlobalName != "" {
		return u.GlobalName, nil
	}
	return u.Username, nil
}

func buildComponents(p models.Payload) []discordgo.MessageComponent {
	var buttons []discordgo.MessageComponent
	switch p.Kind {
	case models.PayloadLink, models.PayloadChoices:
		for _, btn := range p.Buttons {
			if btn.URL != "" {
				buttons = append(buttons, discordgo.Button{
					Label: btn.Title,
					Style: discordgo.LinkButton,
					URL:   btn.URL,
				})
			} else {
				buttons = append(buttons, discordgo.Button{
					Label:    btn.Title,
					Style:    discordgo.PrimaryButton,
					CustomID: btn.Data,
				})
			}
		}
	case models.PayloadQuickReplies:
		for _, reply := range p.QuickReplies {
			buttons = append(buttons, discordgo.Button{
				Label:    reply,
				Style:    discordgo.SecondaryButton,
				CustomID: reply,
			})
		}
	}
	if len(buttons) == 0 {
		return nil
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func buildListEmbed(p models.Payload) *discordgo.MessageEmbed {
	if p.Kind != models.PayloadList || len(p.Items) == 0 {
		return nil
	}
	embed := &discordgo.MessageEmbed{}
	for _, item := range p.Items {
		value := item.Subtitle
		if item.URL != "" {
			if value != "" {
				value += "\n"
			}
			value += item.URL
		}
		if value == "" {
			value = "​"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  item.Title,
			Value: value,
		})
	}
	return embed
}
