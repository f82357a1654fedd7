// Copyright 2025-2026 Hexavox

// Package config loads the bridge configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level bridge configuration.
type Config struct {
	Game      GameConfig      `yaml:"game"`
	Chat      ChatConfig      `yaml:"chat"`
	Auth      AuthConfig      `yaml:"auth_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Relay     RelayConfig     `yaml:"relay"`
	Identity  IdentityConfig  `yaml:"identity"`

	// LogLevel is "debug" or "info". Anything else falls back to info.
	LogLevel string `yaml:"log_level"`
}

// GameConfig describes the game server connection.
type GameConfig struct {
	// Host and Port point at the game server itself and are used for the
	// liveness probe before (re)connecting.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Username is the bridge's own in-game account name. Presence backfill
	// ends when this name appears in the player list, and chat lines spoken
	// under it are never relayed back to the chat platform.
	Username string `yaml:"username"`
	// EventsURL is the websocket endpoint of the server-side bridge plugin
	// that streams structured chat/presence events.
	EventsURL string `yaml:"events_url"`
	// EventsToken is an optional bearer token for the events endpoint.
	EventsToken string `yaml:"events_token"`
}

// ChatConfig describes the chat platform session.
type ChatConfig struct {
	Token         string         `yaml:"token"`
	CommandPrefix string         `yaml:"command_prefix"`
	Admins        []snowflake.ID `yaml:"admins"`
}

// AuthConfig describes the account-link authentication listener.
type AuthConfig struct {
	BindAddr string `yaml:"bind_addr"`
	Port     int    `yaml:"port"`
	// DNSWildcard is the wildcard host players connect to with their token
	// as the first label, e.g. token.link.example.com.
	DNSWildcard string `yaml:"dns_wildcard"`
}

// DatabaseConfig describes the Postgres connection for the durable store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN renders the config as a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.User, d.Password, d.DB, sslMode)
}

// AnalyticsConfig describes the optional analytics document sink.
type AnalyticsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Auth     bool   `yaml:"auth"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RelayConfig tunes the message relay pipeline and reconnect loop.
type RelayConfig struct {
	// MessageDelaySeconds is the global outbound throttle: the minimum time
	// between chat-to-game relays.
	MessageDelaySeconds int `yaml:"message_delay_seconds"`
	// GameMessageLimit is the game server's hard per-message character
	// ceiling, including the "name: " prefix the bridge adds.
	GameMessageLimit int `yaml:"game_message_limit"`
	// ProbeIntervalSeconds is the wait between liveness probes while the
	// game server is unreachable.
	ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`
	// GraceIntervalSeconds is the wait after an unplanned disconnect before
	// probing again.
	GraceIntervalSeconds int `yaml:"grace_interval_seconds"`
}

// MessageDelay returns the throttle delay as a duration.
func (r RelayConfig) MessageDelay() time.Duration {
	return time.Duration(r.MessageDelaySeconds) * time.Second
}

// ProbeInterval returns the liveness probe interval as a duration.
func (r RelayConfig) ProbeInterval() time.Duration {
	return time.Duration(r.ProbeIntervalSeconds) * time.Second
}

// GraceInterval returns the post-disconnect grace period as a duration.
func (r RelayConfig) GraceInterval() time.Duration {
	return time.Duration(r.GraceIntervalSeconds) * time.Second
}

// IdentityConfig describes the external identity lookup service and the
// avatar rendering template.
type IdentityConfig struct {
	LookupURL string `yaml:"lookup_url"`
	// AvatarURLTemplate contains a {uuid} placeholder substituted with the
	// player's persistent identity.
	AvatarURLTemplate string `yaml:"avatar_url_template"`
}

const (
	defaultCommandPrefix       = "mc!"
	defaultMessageDelaySeconds = 3
	defaultGameMessageLimit    = 256
	defaultProbeSeconds        = 15
	defaultGraceSeconds        = 15
	defaultAvatarTemplate      = "https://visage.surgeplay.com/face/160/{uuid}"
)

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Chat.CommandPrefix == "" {
		c.Chat.CommandPrefix = defaultCommandPrefix
	}
	if c.Relay.MessageDelaySeconds <= 0 {
		c.Relay.MessageDelaySeconds = defaultMessageDelaySeconds
	}
	if c.Relay.GameMessageLimit <= 0 {
		c.Relay.GameMessageLimit = defaultGameMessageLimit
	}
	if c.Relay.ProbeIntervalSeconds <= 0 {
		c.Relay.ProbeIntervalSeconds = defaultProbeSeconds
	}
	if c.Relay.GraceIntervalSeconds <= 0 {
		c.Relay.GraceIntervalSeconds = defaultGraceSeconds
	}
	if c.Identity.AvatarURLTemplate == "" {
		c.Identity.AvatarURLTemplate = defaultAvatarTemplate
	}
}

func (c *Config) validate() error {
	switch {
	case c.Game.Host == "":
		return fmt.Errorf("config: game.host is required")
	case c.Game.Username == "":
		return fmt.Errorf("config: game.username is required")
	case c.Game.EventsURL == "":
		return fmt.Errorf("config: game.events_url is required")
	case c.Chat.Token == "":
		return fmt.Errorf("config: chat.token is required")
	case c.Auth.Port == 0:
		return fmt.Errorf("config: auth_server.port is required")
	case c.Auth.DNSWildcard == "":
		return fmt.Errorf("config: auth_server.dns_wildcard is required")
	}
	return nil
}
