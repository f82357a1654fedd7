// Copyright 2025-2026 Hexavox

// Package discord attaches the bridge core to Discord: it feeds incoming
// messages into the core and implements the core's reply surface.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"github.com/hexavox/gamebridge/pkg/bridge"
)

// webhookName is the per-channel delivery hook the adapter owns. Hooks with
// other names belong to other integrations and are never touched.
const webhookName = "gamebridge"

type Adapter struct {
	session *discordgo.Session
	bridge  *bridge.Bridge
	log     zerolog.Logger
}

var _ bridge.Responder = (*Adapter)(nil)

func New(token string, br *bridge.Bridge, log zerolog.Logger) (*Adapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	a := &Adapter{
		session: session,
		bridge:  br,
		log:     log.With().Str("component", "discord").Logger(),
	}
	session.AddHandler(a.onReady)
	session.AddHandler(a.onMessageCreate)
	return a, nil
}

// Open connects to the gateway. Auth failures surface here and are fatal to
// the caller.
func (a *Adapter) Open() error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.session.Close()
}

func (a *Adapter) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	self, err := snowflake.Parse(r.User.ID)
	if err != nil {
		a.log.Error().Err(err).Str("user_id", r.User.ID).Msg("Gateway reported an unparseable own user ID")
		return
	}
	a.log.Info().Str("username", r.User.Username).Msg("Connected to Discord")
	a.bridge.SetChatIdentity(self)
	go func() {
		if err := a.bridge.SyncChannels(context.Background()); err != nil {
			a.log.Error().Err(err).Msg("Failed to sync relay channels")
		}
	}()
}

func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	msg, err := translateMessage(m)
	if err != nil {
		a.log.Warn().Err(err).Msg("Dropping unparseable message event")
		return
	}
	a.bridge.HandleChatMessage(context.Background(), msg)
}

func translateMessage(m *discordgo.MessageCreate) (bridge.ChatMessage, error) {
	if m.Author == nil {
		return bridge.ChatMessage{}, fmt.Errorf("message %s has no author", m.ID)
	}
	id, err := snowflake.Parse(m.ID)
	if err != nil {
		return bridge.ChatMessage{}, fmt.Errorf("invalid message ID %q: %w", m.ID, err)
	}
	channelID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return bridge.ChatMessage{}, fmt.Errorf("invalid channel ID %q: %w", m.ChannelID, err)
	}
	authorID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return bridge.ChatMessage{}, fmt.Errorf("invalid author ID %q: %w", m.Author.ID, err)
	}
	return bridge.ChatMessage{
		ID:         id,
		ChannelID:  channelID,
		AuthorID:   authorID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
		DM:         m.GuildID == "",
		FromBot:    m.Author.Bot,
	}, nil
}

// SendPrivate implements bridge.Responder.
func (a *Adapter) SendPrivate(_ context.Context, user snowflake.ID, text string) error {
	channel, err := a.session.UserChannelCreate(user.String())
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	if _, err := a.session.ChannelMessageSend(channel.ID, text); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

// SendChannel implements bridge.Responder.
func (a *Adapter) SendChannel(_ context.Context, channel snowflake.ID, text string) error {
	_, err := a.session.ChannelMessageSend(channel.String(), text)
	return err
}

// DeleteMessage implements bridge.Responder.
func (a *Adapter) DeleteMessage(_ context.Context, channel, message snowflake.ID) error {
	return a.session.ChannelMessageDelete(channel.String(), message.String())
}

// EnsureWebhook implements bridge.Responder. It reuses the adapter's own
// hook when one already exists on the channel.
func (a *Adapter) EnsureWebhook(_ context.Context, channel snowflake.ID) (string, error) {
	hooks, err := a.session.ChannelWebhooks(channel.String())
	if err != nil {
		return "", fmt.Errorf("failed to list channel webhooks: %w", err)
	}
	for _, hook := range hooks {
		if hook.Name == webhookName {
			return webhookURL(hook), nil
		}
	}
	hook, err := a.session.WebhookCreate(channel.String(), webhookName, "")
	if err != nil {
		return "", fmt.Errorf("failed to create webhook: %w", err)
	}
	return webhookURL(hook), nil
}

// RemoveWebhook implements bridge.Responder.
func (a *Adapter) RemoveWebhook(_ context.Context, channel snowflake.ID) error {
	hooks, err := a.session.ChannelWebhooks(channel.String())
	if err != nil {
		return fmt.Errorf("failed to list channel webhooks: %w", err)
	}
	for _, hook := range hooks {
		if hook.Name == webhookName {
			return a.session.WebhookDelete(hook.ID)
		}
	}
	return nil
}

func webhookURL(hook *discordgo.Webhook) string {
	return discordgo.EndpointWebhookToken(hook.ID, hook.Token)
}
