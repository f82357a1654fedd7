// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

func (b *Bridge) isAdmin(id snowflake.ID) bool {
	return slices.Contains(b.opts.Admins, id)
}

// deleteCommandMessage removes the invoking message from public channels so
// command traffic never lingers in relay channels.
func (b *Bridge) deleteCommandMessage(ctx context.Context, msg ChatMessage) {
	if msg.DM {
		return
	}
	if err := b.responder.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		b.log.Warn().Err(err).Msg("Failed to delete command message")
	}
}

func (b *Bridge) handleCommand(ctx context.Context, msg ChatMessage) {
	command := strings.TrimPrefix(msg.Content, b.opts.CommandPrefix)
	command = strings.ToLower(strings.TrimSpace(strings.SplitN(command, " ", 2)[0]))
	b.log.Debug().Str("command", command).
		Int64("author_id", int64(msg.AuthorID)).
		Msg("Handling chat command")

	switch command {
	case "help":
		b.handleHelp(ctx, msg)
	case "players", "tab":
		b.handlePlayers(ctx, msg)
	case "link", "register":
		b.handleLink(ctx, msg)
	case "chathere":
		b.handleChatHere(ctx, msg)
	case "stopchathere":
		b.handleStopChatHere(ctx, msg)
	default:
		b.deleteCommandMessage(ctx, msg)
		b.replyPrivate(ctx, msg,
			fmt.Sprintf("Unknown command. Send `%shelp` for the list of commands.", b.opts.CommandPrefix))
	}
}

func (b *Bridge) handleHelp(ctx context.Context, msg ChatMessage) {
	b.deleteCommandMessage(ctx, msg)
	p := b.opts.CommandPrefix
	var sb strings.Builder
	sb.WriteString("**Available commands**\n")
	fmt.Fprintf(&sb, "`%shelp` shows this message\n", p)
	fmt.Fprintf(&sb, "`%splayers` lists the players currently online\n", p)
	fmt.Fprintf(&sb, "`%slink` connects your game account to your chat account\n", p)
	fmt.Fprintf(&sb, "`%schathere` (admin) relays game chat in the current channel\n", p)
	fmt.Fprintf(&sb, "`%sstopchathere` (admin) stops relaying in the current channel", p)
	b.replyPrivate(ctx, msg, sb.String())
}

func (b *Bridge) handlePlayers(ctx context.Context, msg ChatMessage) {
	b.deleteCommandMessage(ctx, msg)

	b.mu.Lock()
	state := b.presence.State()
	names := b.presence.PlayerNames()
	header, footer := b.tabHeader, b.tabFooter
	b.mu.Unlock()

	if state != StateActive {
		b.replyPrivate(ctx, msg, "The game server is currently unreachable.")
		return
	}
	var sb strings.Builder
	if header != "" {
		sb.WriteString(EscapeMarkdown(StripFormattingCodes(header)))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Players online: %d\n", len(names))
	if len(names) > 0 {
		sb.WriteString(EscapeMarkdown(strings.Join(names, ", ")))
		sb.WriteString("\n")
	}
	if footer != "" {
		sb.WriteString(EscapeMarkdown(StripFormattingCodes(footer)))
	}
	b.replyPrivate(ctx, msg, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bridge) handleChatHere(ctx context.Context, msg ChatMessage) {
	if msg.DM {
		b.replyPrivate(ctx, msg, "This command is only available in public channels.")
		return
	}
	b.deleteCommandMessage(ctx, msg)
	if !b.isAdmin(msg.AuthorID) {
		b.replyPrivate(ctx, msg, "You do not have permission to manage relay channels.")
		return
	}
	url, err := b.responder.EnsureWebhook(ctx, msg.ChannelID)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to create delivery hook")
		b.replyPrivate(ctx, msg, "Failed to set up the relay for this channel.")
		return
	}
	if err := b.channels.Add(msg.ChannelID, url); err != nil {
		b.log.Error().Err(err).Msg("Failed to persist channel registration")
		b.replyPrivate(ctx, msg, "Failed to save the relay registration.")
		return
	}
	b.addHook(Hook{ChannelID: msg.ChannelID, URL: url})
	if err := b.responder.SendChannel(ctx, msg.ChannelID, "Game chat will now be relayed in this channel."); err != nil {
		b.log.Error().Err(err).Msg("Failed to confirm channel registration")
	}
}

func (b *Bridge) handleStopChatHere(ctx context.Context, msg ChatMessage) {
	if msg.DM {
		b.replyPrivate(ctx, msg, "This command is only available in public channels.")
		return
	}
	b.deleteCommandMessage(ctx, msg)
	if !b.isAdmin(msg.AuthorID) {
		b.replyPrivate(ctx, msg, "You do not have permission to manage relay channels.")
		return
	}
	removed, err := b.channels.Remove(msg.ChannelID)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to remove channel registration")
		b.replyPrivate(ctx, msg, "Failed to remove the relay registration.")
		return
	}
	if !removed {
		b.replyPrivate(ctx, msg, "Game chat is not being relayed in this channel.")
		return
	}
	b.removeHook(msg.ChannelID)
	if err := b.responder.RemoveWebhook(ctx, msg.ChannelID); err != nil {
		b.log.Warn().Err(err).Msg("Failed to remove delivery hook")
	}
	if err := b.responder.SendChannel(ctx, msg.ChannelID, "Game chat will no longer be relayed in this channel."); err != nil {
		b.log.Error().Err(err).Msg("Failed to confirm channel removal")
	}
}
