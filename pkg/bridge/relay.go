// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// chatLineRe matches a regular player chat line as rendered by the game
// server: "<sender> message".
var chatLineRe = regexp.MustCompile(`^<(.*?)> (.*)$`)

// HandleGameChat implements GameHandler. Player chat lines are mirrored to
// every registered channel, impersonating the sender. The bridge's own
// lines are suppressed to stop the echo loop.
func (b *Bridge) HandleGameChat(evt ChatEvent) {
	if evt.Position != PositionChat {
		b.analytics.LogRaw(evt.Position.String(), evt.Text)
		return
	}
	m := chatLineRe.FindStringSubmatch(evt.Text)
	if m == nil {
		// System broadcasts, deaths, advancements and the like.
		b.analytics.LogRaw(evt.Position.String(), evt.Text)
		return
	}
	sender, message := m[1], m[2]

	if strings.EqualFold(sender, b.opts.GameUsername) {
		// Our own relay coming back. The inner "name: text" form is still
		// worth recording as the platform side of the conversation.
		if name, text, ok := strings.Cut(message, ": "); ok {
			b.analytics.LogChat(uuid.Nil, name, text, evt.Raw)
		}
		return
	}

	hooks := b.snapshotHooks()
	id, _ := b.identities.ResolveID(context.Background(), sender)
	display := EscapeMarkdown(StripEmoji(NeutralizeMentions(strings.TrimSpace(StripFormattingCodes(message)))))
	if display == "" {
		return
	}
	b.broadcast(context.Background(), hooks, &WebhookMessage{
		Username:  sender,
		AvatarURL: b.avatarURL(id),
		Content:   display,
	})
	b.analytics.LogChat(id, sender, message, evt.Raw)
	b.analytics.LogRaw(evt.Position.String(), evt.Raw)
}

// HandleChatMessage routes one platform message: commands are dispatched,
// everything else in a registered channel is relayed to the game.
func (b *Bridge) HandleChatMessage(ctx context.Context, msg ChatMessage) {
	b.mu.Lock()
	self := b.selfChatID
	b.mu.Unlock()
	if msg.AuthorID == self || msg.FromBot {
		return
	}
	if strings.HasPrefix(msg.Content, b.opts.CommandPrefix) {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.DM {
		return
	}
	b.relayToGame(ctx, msg)
}

func (b *Bridge) relayToGame(ctx context.Context, msg ChatMessage) {
	reg, err := b.channels.Get(msg.ChannelID)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to look up channel registration")
		return
	}
	if reg == nil {
		return
	}

	// The original message is deleted and replaced with the webhook
	// redisplay so both sides see the exact relayed text.
	if err := b.responder.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		b.log.Warn().Err(err).Msg("Failed to delete relayed platform message")
	}

	gameID, linked, err := b.accounts.LinkedIdentity(msg.AuthorID)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to look up account link")
		return
	}
	if !linked {
		b.replyPrivate(ctx, msg,
			fmt.Sprintf("You need to connect your game account before chatting here. Send `%slink` to get started.",
				b.opts.CommandPrefix))
		return
	}
	name, ok := b.identities.ResolveName(ctx, gameID)
	if !ok {
		name = strings.SplitN(gameID.String(), "-", 2)[0]
	}

	// Normalize first so the length ceiling is measured against what the
	// game will actually receive, then cut both renditions at that point.
	toGame := ToGameEncoding(StripEmoji(strings.TrimSpace(msg.Content)))
	if strings.TrimSpace(toGame) == "" {
		return
	}
	prefix := name + ": "
	toGame = truncateRunes(toGame, b.opts.GameMessageLimit-len(prefix))

	now := time.Now()
	b.mu.Lock()
	if b.throttle.blocked(now) {
		b.mu.Unlock()
		b.log.Debug().Str("content", toGame).Msg("Rate-limiting a chat message")
		b.replyPrivate(ctx, msg,
			fmt.Sprintf("Your message was rate-limited and not sent to the game:\n> %s", toGame))
		return
	}
	b.throttle.record(now, b.opts.MessageDelay)
	session := b.session
	b.mu.Unlock()
	hooks := b.snapshotHooks()

	redisplay := EscapeMarkdown(NeutralizeMentions(toGame))
	b.broadcast(ctx, hooks, &WebhookMessage{
		Username:  name,
		AvatarURL: b.avatarURL(gameID),
		Content:   redisplay,
	})

	if session == nil {
		b.log.Warn().Msg("Dropping chat message, no game session")
		b.replyPrivate(ctx, msg, "The game server is currently unreachable; your message was not delivered.")
		return
	}
	if err := session.SendChat(prefix + toGame); err != nil {
		b.log.Error().Err(err).Msg("Failed to send chat to the game server")
	}
}

// replyPrivate answers the author directly, falling back to a channel
// mention when their privacy settings refuse the direct message.
func (b *Bridge) replyPrivate(ctx context.Context, msg ChatMessage, text string) {
	if err := b.responder.SendPrivate(ctx, msg.AuthorID, text); err == nil {
		return
	}
	if msg.DM {
		return
	}
	fallback := fmt.Sprintf("<@%d>, please allow private messages from server members; I could not reach you directly.", msg.AuthorID)
	if err := b.responder.SendChannel(ctx, msg.ChannelID, fallback); err != nil {
		b.log.Error().Err(err).Msg("Failed to send fallback channel reply")
	}
}
