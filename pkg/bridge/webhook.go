// Copyright 2025-2026 Hexavox

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	joinColor  = 0x00ff00
	leaveColor = 0xff0000
)

// Hook is an active delivery target: one registered relay channel and its
// webhook URL.
type Hook struct {
	ChannelID snowflake.ID
	URL       string
}

// Embed is the decorated portion of a webhook message.
type Embed struct {
	Title string `json:"title,omitempty"`
	Color int    `json:"color,omitempty"`
}

// WebhookMessage is the payload posted to a delivery hook. Username and
// AvatarURL impersonate the originating player.
type WebhookMessage struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// WebhookClient posts messages to channel delivery hooks.
type WebhookClient struct {
	client *http.Client
	log    zerolog.Logger
}

func NewWebhookClient(log zerolog.Logger) *WebhookClient {
	return &WebhookClient{
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "webhook").Logger(),
	}
}

// Post delivers one message to one hook URL.
func (c *WebhookClient) Post(ctx context.Context, url string, msg *WebhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, data)
	}
	return nil
}

// broadcast delivers a message to every active hook. Failures are isolated
// per hook so one broken channel never blocks the rest.
func (b *Bridge) broadcast(ctx context.Context, hooks []Hook, msg *WebhookMessage) {
	for _, hook := range hooks {
		if err := b.webhooks.Post(ctx, hook.URL, msg); err != nil {
			b.log.Error().Err(err).
				Int64("channel_id", int64(hook.ChannelID)).
				Msg("Failed to deliver webhook message")
		}
	}
}

// avatarURL renders a deterministic avatar for a player identity.
func (b *Bridge) avatarURL(id uuid.UUID) string {
	if id == uuid.Nil || b.opts.AvatarURLTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(b.opts.AvatarURLTemplate, "{uuid}", id.String())
}
