// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hexavox/gamebridge/pkg/store"
)

// GameSession is the outbound capability surface of an established game
// connection.
type GameSession interface {
	SendChat(text string) error
	Respawn() error
	Close() error
}

// GameHandler is implemented by the bridge core and invoked by the game
// protocol client as events arrive on its own execution context.
type GameHandler interface {
	HandleSessionEstablished()
	HandlePlayerList(actions []PlayerListAction)
	HandleGameChat(evt ChatEvent)
	HandleTabInfo(header, footer string)
	HandleHealth(health float64)
	HandleDisconnect(err error)
}

// GameConnector establishes a game session and wires its events to a handler.
type GameConnector interface {
	Connect(ctx context.Context, handler GameHandler) (GameSession, error)
}

// LivenessProbe checks game server reachability without a full handshake.
type LivenessProbe interface {
	Ping(ctx context.Context) error
}

// ProfileLookup resolves identities against the external profile service.
type ProfileLookup interface {
	NameByID(ctx context.Context, id uuid.UUID) (string, error)
	IDByName(ctx context.Context, name string) (uuid.UUID, error)
}

// Responder is the chat platform's reply surface. Private delivery can fail
// (user forbids DMs); callers fall back to the public channel.
type Responder interface {
	SendPrivate(ctx context.Context, user snowflake.ID, text string) error
	SendChannel(ctx context.Context, channel snowflake.ID, text string) error
	DeleteMessage(ctx context.Context, channel, message snowflake.ID) error
	// EnsureWebhook returns the delivery hook URL for a channel, creating
	// the hook if it does not exist yet.
	EnsureWebhook(ctx context.Context, channel snowflake.ID) (string, error)
	RemoveWebhook(ctx context.Context, channel snowflake.ID) error
}

// ChannelRegistry is the subset of the durable channel store the core consumes.
type ChannelRegistry interface {
	All() ([]*store.ChannelRegistration, error)
	Get(channelID snowflake.ID) (*store.ChannelRegistration, error)
	Add(channelID snowflake.ID, webhookURL string) error
	Remove(channelID snowflake.ID) (bool, error)
}

// AccountRegistry is the subset of the durable account store the core consumes.
type AccountRegistry interface {
	Ensure(chatID snowflake.ID) (*store.Account, error)
	SetLinkToken(chatID snowflake.ID, token string, expiry time.Time) error
	LinkedIdentity(chatID snowflake.ID) (uuid.UUID, bool, error)
}

// ChatMessage is a platform message as delivered by the chat adapter.
type ChatMessage struct {
	ID         snowflake.ID
	ChannelID  snowflake.ID
	AuthorID   snowflake.ID
	AuthorName string
	Content    string
	DM         bool
	FromBot    bool
}

// ChatPosition classifies a game chat event.
type ChatPosition int

const (
	PositionChat ChatPosition = iota
	PositionSystem
	PositionGameInfo
)

func (p ChatPosition) String() string {
	switch p {
	case PositionChat:
		return "CHAT"
	case PositionSystem:
		return "SYSTEM"
	case PositionGameInfo:
		return "GAME_INFO"
	default:
		return "UNKNOWN"
	}
}

// ChatEvent is a structured game chat event.
type ChatEvent struct {
	Position ChatPosition
	// Text is the flattened display text of the event.
	Text string
	// Raw is the unparsed wire payload, kept for analytics.
	Raw string
}

// Options tunes the bridge core.
type Options struct {
	// GameUsername is the bridge's own in-game account name.
	GameUsername string
	// CommandPrefix introduces chat platform commands, e.g. "mc!".
	CommandPrefix string
	// MessageDelay is the global minimum time between chat-to-game relays.
	MessageDelay time.Duration
	// GameMessageLimit is the game's hard per-message character ceiling.
	GameMessageLimit int
	// AvatarURLTemplate renders a deterministic avatar URL; {uuid} is
	// replaced with the player's persistent identity.
	AvatarURLTemplate string
	// LinkHost is the host:port target embedded in link instructions; the
	// link token is prepended as the first DNS label.
	LinkHost string
	// Admins may manage channel registrations.
	Admins []snowflake.ID
}

// Deps are the collaborators the bridge core consumes.
type Deps struct {
	Channels  ChannelRegistry
	Accounts  AccountRegistry
	Lookup    ProfileLookup
	Webhooks  *WebhookClient
	Analytics *Analytics
	Log       zerolog.Logger
}

// Bridge is the single owner of all shared bridge state.
type Bridge struct {
	opts       Options
	log        zerolog.Logger
	identities *IdentityCache
	channels   ChannelRegistry
	accounts   AccountRegistry
	webhooks   *WebhookClient
	analytics  *Analytics
	responder  Responder

	mu           sync.Mutex
	presence     *PresenceTracker
	session      GameSession
	selfChatID   snowflake.ID
	hookList     []Hook
	throttle     throttleState
	tabHeader    string
	tabFooter    string
	onDisconnect func(error)
}

var _ GameHandler = (*Bridge)(nil)

// New creates a bridge core. The chat adapter must be attached with
// SetResponder before any events are delivered.
func New(opts Options, deps Deps) *Bridge {
	log := deps.Log.With().Str("component", "bridge").Logger()
	b := &Bridge{
		opts:       opts,
		log:        log,
		identities: NewIdentityCache(deps.Lookup, deps.Log),
		channels:   deps.Channels,
		accounts:   deps.Accounts,
		webhooks:   deps.Webhooks,
		analytics:  deps.Analytics,
	}
	b.presence = NewPresenceTracker(opts.GameUsername, b.identities, deps.Log)
	return b
}

// SetResponder attaches the chat platform's reply surface.
func (b *Bridge) SetResponder(r Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responder = r
}

// SetChatIdentity records the bridge's own chat platform account, used to
// reject its own messages.
func (b *Bridge) SetChatIdentity(id snowflake.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selfChatID = id
}

// setDisconnectFunc wires the lifecycle manager's disconnect notification.
func (b *Bridge) setDisconnectFunc(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDisconnect = fn
}

// attachSession installs a freshly established game session.
func (b *Bridge) attachSession(s GameSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = s
}

// detachSession drops the current session and marks presence disconnected.
func (b *Bridge) detachSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = nil
	b.presence.MarkDisconnected()
}

// SessionState returns the presence tracker's current state.
func (b *Bridge) SessionState() SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presence.State()
}

// SyncChannels loads the channel registrations from the durable store,
// ensures each one has a delivery hook, and installs the active hook list.
// Called by the chat adapter once its session is ready.
func (b *Bridge) SyncChannels(ctx context.Context) error {
	regs, err := b.channels.All()
	if err != nil {
		return err
	}
	var hooks []Hook
	for _, reg := range regs {
		url := reg.WebhookURL
		if url == "" {
			url, err = b.responder.EnsureWebhook(ctx, reg.ChannelID)
			if err != nil {
				b.log.Error().Err(err).
					Int64("channel_id", int64(reg.ChannelID)).
					Msg("Failed to ensure delivery hook")
				continue
			}
			if err := b.channels.Add(reg.ChannelID, url); err != nil {
				b.log.Error().Err(err).
					Int64("channel_id", int64(reg.ChannelID)).
					Msg("Failed to persist delivery hook")
			}
		}
		hooks = append(hooks, Hook{ChannelID: reg.ChannelID, URL: url})
	}
	b.mu.Lock()
	b.hookList = hooks
	b.mu.Unlock()
	b.log.Info().Int("count", len(hooks)).Msg("Synced relay channels")
	return nil
}

// snapshotHooks copies the active hook list without holding the lock during
// delivery.
func (b *Bridge) snapshotHooks() []Hook {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.hookList)
}

func (b *Bridge) addHook(h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.hookList {
		if existing.ChannelID == h.ChannelID {
			b.hookList[i] = h
			return
		}
	}
	b.hookList = append(b.hookList, h)
}

func (b *Bridge) removeHook(channelID snowflake.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hookList = slices.DeleteFunc(b.hookList, func(h Hook) bool {
		return h.ChannelID == channelID
	})
}

// HandleSessionEstablished implements GameHandler.
func (b *Bridge) HandleSessionEstablished() {
	b.log.Info().Msg("Game session established, backfilling player list")
	b.mu.Lock()
	b.presence.SessionEstablished()
	b.mu.Unlock()
}

// HandleTabInfo implements GameHandler.
func (b *Bridge) HandleTabInfo(header, footer string) {
	b.mu.Lock()
	b.tabHeader = header
	b.tabFooter = footer
	b.mu.Unlock()
}

// HandleHealth implements GameHandler. The bridge account must respawn when
// its health reaches zero or the server removes it from the player list.
func (b *Bridge) HandleHealth(health float64) {
	if health > 0 {
		return
	}
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()
	if session == nil {
		return
	}
	b.log.Debug().Msg("Respawning the bridge account because its health reached zero")
	if err := session.Respawn(); err != nil {
		b.log.Error().Err(err).Msg("Respawn failed")
	}
}

// HandleDisconnect implements GameHandler.
func (b *Bridge) HandleDisconnect(err error) {
	b.mu.Lock()
	fn := b.onDisconnect
	b.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// HandlePlayerList implements GameHandler. Presence mutations happen under
// the lock; the resulting notifications are delivered afterwards.
func (b *Bridge) HandlePlayerList(actions []PlayerListAction) {
	b.mu.Lock()
	events := b.presence.Apply(actions)
	hooks := slices.Clone(b.hookList)
	b.mu.Unlock()

	ctx := context.Background()
	for _, ev := range events {
		b.deliverPresenceEvent(ctx, ev, hooks)
	}
}

func (b *Bridge) deliverPresenceEvent(ctx context.Context, ev PresenceEvent, hooks []Hook) {
	switch ev.Kind {
	case PresenceJoin:
		b.broadcast(ctx, hooks, &WebhookMessage{
			Username:  ev.Name,
			AvatarURL: b.avatarURL(ev.ID),
			Embeds:    []Embed{{Title: "**Joined the game**", Color: joinColor}},
		})
		b.analytics.LogConnection(ev.ID, ReasonConnected, ev.Online)
	case PresenceLeave:
		b.broadcast(ctx, hooks, &WebhookMessage{
			Username:  ev.Name,
			AvatarURL: b.avatarURL(ev.ID),
			Embeds:    []Embed{{Title: "**Left the game**", Color: leaveColor}},
		})
		b.analytics.LogConnection(ev.ID, ReasonDisconnected, ev.Online)
	case PresenceSeen:
		b.analytics.LogConnection(ev.ID, ReasonSeen, 0)
	case PresenceBackfillDone:
		b.log.Info().Int("online", ev.Online).Msg("Player list backfill complete")
		b.analytics.LogConnection(ev.ID, ReasonConnected, ev.Online)
	}
}
