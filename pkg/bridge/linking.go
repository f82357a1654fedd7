// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/util/random"
)

const (
	linkTokenLength = 16
	linkTokenTTL    = time.Hour
)

// handleLink issues a fresh single-use link token. Requesting again before
// the previous token is used supersedes it; the old token stops working
// immediately.
func (b *Bridge) handleLink(ctx context.Context, msg ChatMessage) {
	b.deleteCommandMessage(ctx, msg)

	if _, err := b.accounts.Ensure(msg.AuthorID); err != nil {
		b.log.Error().Err(err).Msg("Failed to ensure account row")
		b.replyPrivate(ctx, msg, "Something went wrong while preparing your link token, please try again.")
		return
	}
	token := random.String(linkTokenLength)
	expiry := time.Now().Add(linkTokenTTL)
	if err := b.accounts.SetLinkToken(msg.AuthorID, token, expiry); err != nil {
		b.log.Error().Err(err).Msg("Failed to store link token")
		b.replyPrivate(ctx, msg, "Something went wrong while preparing your link token, please try again.")
		return
	}
	b.replyPrivate(ctx, msg, fmt.Sprintf(
		"Connect your game account by joining the server at `%s.%s` within the next hour.\n"+
			"You will be disconnected with a confirmation message; after that your chat messages are relayed under your game name.",
		token, b.opts.LinkHost))
}
