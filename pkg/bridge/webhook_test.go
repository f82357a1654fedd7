// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestWebhookPost(t *testing.T) {
	t.Parallel()
	var got WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q, want %q", ct, "application/json")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(zerolog.Nop())
	err := client.Post(context.Background(), server.URL, &WebhookMessage{
		Username: "Alice",
		Content:  "hello",
		Embeds:   []Embed{{Title: "**Joined the game**", Color: joinColor}},
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got.Username != "Alice" || got.Content != "hello" {
		t.Errorf("payload: got %+v", got)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Color != 0x00ff00 {
		t.Errorf("embeds: got %+v", got.Embeds)
	}
}

func TestWebhookPostErrorStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such webhook", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewWebhookClient(zerolog.Nop())
	err := client.Post(context.Background(), server.URL, &WebhookMessage{Content: "x"})
	if err == nil {
		t.Fatal("Post should fail on HTTP 404")
	}
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	t.Parallel()
	tb := newTestBridge(t, Options{})
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer dead.Close()

	hooks := []Hook{
		{ChannelID: 1, URL: dead.URL},
		{ChannelID: 2, URL: tb.webhooks.server.URL},
	}
	tb.bridge.broadcast(context.Background(), hooks, &WebhookMessage{Content: "still delivered"})

	msgs := tb.webhooks.all()
	if len(msgs) != 1 || msgs[0].Content != "still delivered" {
		t.Errorf("healthy hook delivery: got %+v", msgs)
	}
}

func TestJoinAndLeaveEmbeds(t *testing.T) {
	t.Parallel()
	tb := newTestBridge(t, Options{})
	tb.activate(nil)

	tb.bridge.HandlePlayerList([]PlayerListAction{
		{Kind: PlayerAdd, ID: aliceID, Name: "Alice"},
	})
	tb.bridge.HandlePlayerList([]PlayerListAction{
		{Kind: PlayerRemove, ID: aliceID},
	})

	msgs := tb.webhooks.all()
	if len(msgs) != 2 {
		t.Fatalf("webhook posts: got %d, want 2", len(msgs))
	}
	join, leave := msgs[0], msgs[1]
	if join.Username != "Alice" || len(join.Embeds) != 1 ||
		join.Embeds[0].Title != "**Joined the game**" || join.Embeds[0].Color != 0x00ff00 {
		t.Errorf("join embed: got %+v", join)
	}
	if leave.Username != "Alice" || len(leave.Embeds) != 1 ||
		leave.Embeds[0].Title != "**Left the game**" || leave.Embeds[0].Color != 0xff0000 {
		t.Errorf("leave embed: got %+v", leave)
	}
}

func TestAvatarURL(t *testing.T) {
	t.Parallel()
	tb := newTestBridge(t, Options{AvatarURLTemplate: "https://a.test/face/{uuid}"})
	if got := tb.bridge.avatarURL(aliceID); got != "https://a.test/face/"+aliceID.String() {
		t.Errorf("avatarURL: got %q", got)
	}
	if got := tb.bridge.avatarURL(uuid.Nil); got != "" {
		t.Errorf("avatarURL for nil identity: got %q, want empty", got)
	}
}
