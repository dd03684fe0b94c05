// Package discord connects a Discord bot account to the dispatcher.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/dispatch"
	"github.com/keshon/togglebot/internal/platform"
)

// Bot is one Discord session.
type Bot struct {
	name    string
	token   string
	handler *platform.Handler
	dg      *discordgo.Session
}

// New prepares a bot for the configured platform p.
func New(p config.Platform, handler *platform.Handler) (*Bot, error) {
	token := p.Credential()
	if token == "" {
		return nil, errors.New("discord: no token configured")
	}
	return &Bot{name: p.Name, token: token, handler: handler}, nil
}

// Name returns the platform name messages are dispatched under.
func (b *Bot) Name() string { return b.name }

// Run opens the session and serves messages until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	dg.AddHandler(b.onReady)
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(ctx, s, m)
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Info().Str("component", "discord").Str("platform", b.name).Msg("shutting down")
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("component", "discord").
		Str("platform", b.name).
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("connection ready")
}

func (b *Bot) onMessageCreate(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	msg, ok := toMessage(b.name, s.State.User.ID, m.Message)
	if !ok {
		return
	}
	reply, ok := b.handler.Handle(ctx, msg)
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
		log.Error().Err(err).Str("component", "discord").Str("channel", m.ChannelID).Msg("failed to send reply")
	}
}

// toMessage converts a Discord message, skipping the bot's own messages and
// those of other bots.
func toMessage(platformName, selfID string, m *discordgo.Message) (dispatch.Message, bool) {
	if m == nil || m.Author == nil || m.Author.ID == selfID || m.Author.Bot {
		return dispatch.Message{}, false
	}
	return dispatch.Message{
		Platform: platformName,
		Text:     m.Content,
		Sender:   m.Author.Username,
		Channel:  m.ChannelID,
	}, true
}
