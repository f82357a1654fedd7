// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hexavox/gamebridge/pkg/store"
)

type memChannels struct {
	mu   sync.Mutex
	regs map[snowflake.ID]*store.ChannelRegistration
}

func newMemChannels() *memChannels {
	return &memChannels{regs: make(map[snowflake.ID]*store.ChannelRegistration)}
}

func (m *memChannels) All() ([]*store.ChannelRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ChannelRegistration
	for _, reg := range m.regs {
		out = append(out, reg)
	}
	return out, nil
}

func (m *memChannels) Get(channelID snowflake.ID) (*store.ChannelRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[channelID], nil
}

func (m *memChannels) Add(channelID snowflake.ID, webhookURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[channelID] = &store.ChannelRegistration{ChannelID: channelID, WebhookURL: webhookURL}
	return nil
}

func (m *memChannels) Remove(channelID snowflake.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.regs[channelID]
	delete(m.regs, channelID)
	return ok, nil
}

type memAccounts struct {
	mu      sync.Mutex
	linked  map[snowflake.ID]uuid.UUID
	tokens  map[snowflake.ID]string
	expires map[snowflake.ID]time.Time
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		linked:  make(map[snowflake.ID]uuid.UUID),
		tokens:  make(map[snowflake.ID]string),
		expires: make(map[snowflake.ID]time.Time),
	}
}

func (m *memAccounts) Ensure(chatID snowflake.ID) (*store.Account, error) {
	return &store.Account{ID: int64(chatID), ChatID: chatID}, nil
}

func (m *memAccounts) SetLinkToken(chatID snowflake.ID, token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[chatID] = token
	m.expires[chatID] = expiry
	return nil
}

func (m *memAccounts) LinkedIdentity(chatID snowflake.ID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.linked[chatID]
	return id, ok, nil
}

func (m *memAccounts) link(chatID snowflake.ID, gameID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linked[chatID] = gameID
}

type fakeLookup struct {
	mu    sync.Mutex
	names map[uuid.UUID]string
	ids   map[string]uuid.UUID
	calls int
	err   error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		names: make(map[uuid.UUID]string),
		ids:   make(map[string]uuid.UUID),
	}
}

func (f *fakeLookup) NameByID(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	name, ok := f.names[id]
	if !ok {
		return "", errors.New("profile not found")
	}
	return name, nil
}

func (f *fakeLookup) IDByName(_ context.Context, name string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id, ok := f.ids[name]
	if !ok {
		return uuid.Nil, errors.New("profile not found")
	}
	return id, nil
}

var errTestDMClosed = errors.New("user disallows DMs")

type fakeResponder struct {
	mu         sync.Mutex
	privates   []string
	channel    []string
	deleted    int
	hookURL    string
	privateErr error
}

func (f *fakeResponder) SendPrivate(_ context.Context, _ snowflake.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.privateErr != nil {
		return f.privateErr
	}
	f.privates = append(f.privates, text)
	return nil
}

func (f *fakeResponder) SendChannel(_ context.Context, _ snowflake.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = append(f.channel, text)
	return nil
}

func (f *fakeResponder) DeleteMessage(_ context.Context, _, _ snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakeResponder) EnsureWebhook(_ context.Context, _ snowflake.ID) (string, error) {
	return f.hookURL, nil
}

func (f *fakeResponder) RemoveWebhook(_ context.Context, _ snowflake.ID) error {
	return nil
}

func (f *fakeResponder) lastPrivate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.privates) == 0 {
		return ""
	}
	return f.privates[len(f.privates)-1]
}

type fakeSession struct {
	mu       sync.Mutex
	sent     []string
	respawns int
	sendErr  error
}

func (f *fakeSession) SendChat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSession) Respawn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respawns++
	return nil
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// webhookRecorder captures messages posted to a test hook endpoint.
type webhookRecorder struct {
	mu       sync.Mutex
	messages []WebhookMessage
	server   *httptest.Server
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	rec := &webhookRecorder{}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg WebhookMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("webhook recorder: failed to decode payload: %v", err)
		}
		rec.mu.Lock()
		rec.messages = append(rec.messages, msg)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func (r *webhookRecorder) all() []WebhookMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WebhookMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

type testBridge struct {
	bridge    *Bridge
	channels  *memChannels
	accounts  *memAccounts
	lookup    *fakeLookup
	responder *fakeResponder
	session   *fakeSession
	webhooks  *webhookRecorder
	channelID snowflake.ID
}

const testChannelID = snowflake.ID(1000)

func newTestBridge(t *testing.T, opts Options) *testBridge {
	t.Helper()
	if opts.GameUsername == "" {
		opts.GameUsername = "BridgeBot"
	}
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "mc!"
	}
	if opts.GameMessageLimit == 0 {
		opts.GameMessageLimit = 256
	}
	if opts.LinkHost == "" {
		opts.LinkHost = "link.example.com"
	}
	tb := &testBridge{
		channels:  newMemChannels(),
		accounts:  newMemAccounts(),
		lookup:    newFakeLookup(),
		responder: &fakeResponder{},
		session:   &fakeSession{},
		webhooks:  newWebhookRecorder(t),
		channelID: testChannelID,
	}
	tb.channels.Add(tb.channelID, tb.webhooks.server.URL)
	tb.bridge = New(opts, Deps{
		Channels: tb.channels,
		Accounts: tb.accounts,
		Lookup:   tb.lookup,
		Webhooks: NewWebhookClient(zerolog.Nop()),
		Log:      zerolog.Nop(),
	})
	tb.bridge.SetResponder(tb.responder)
	tb.bridge.addHook(Hook{ChannelID: tb.channelID, URL: tb.webhooks.server.URL})
	tb.bridge.attachSession(tb.session)
	return tb
}

// activate walks the presence tracker to the active state with the given
// players already online.
func (tb *testBridge) activate(players map[uuid.UUID]string) {
	tb.bridge.HandleSessionEstablished()
	var actions []PlayerListAction
	for id, name := range players {
		actions = append(actions, PlayerListAction{Kind: PlayerAdd, ID: id, Name: name})
	}
	actions = append(actions, PlayerListAction{
		Kind: PlayerAdd,
		ID:   uuid.MustParse("00000000-0000-0000-0000-0000000000ff"),
		Name: tb.bridge.opts.GameUsername,
	})
	tb.bridge.HandlePlayerList(actions)
}
