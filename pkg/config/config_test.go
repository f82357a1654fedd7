// Copyright 2025-2026 Hexavox

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const sampleConfig = `
game:
  host: mc.example.com
  port: 25565
  username: BridgeBot
  events_url: ws://mc.example.com:8765/events
  events_token: secret
chat:
  token: bot-token
  command_prefix: "srv!"
  admins:
    - 123456789
auth_server:
  bind_addr: 0.0.0.0
  port: 25566
  dns_wildcard: link.example.com
database:
  host: localhost
  user: bridge
  password: hunter2
  db: gamebridge
relay:
  message_delay_seconds: 5
  game_message_limit: 100
analytics:
  enabled: true
  url: http://localhost:9200
log_level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.Host != "mc.example.com" || cfg.Game.Username != "BridgeBot" {
		t.Errorf("game config: got %+v", cfg.Game)
	}
	if cfg.Chat.CommandPrefix != "srv!" {
		t.Errorf("command prefix: got %q, want %q", cfg.Chat.CommandPrefix, "srv!")
	}
	if len(cfg.Chat.Admins) != 1 || cfg.Chat.Admins[0] != snowflake.ID(123456789) {
		t.Errorf("admins: got %v", cfg.Chat.Admins)
	}
	if cfg.Relay.MessageDelay() != 5*time.Second {
		t.Errorf("message delay: got %v, want 5s", cfg.Relay.MessageDelay())
	}
	if cfg.Relay.GameMessageLimit != 100 {
		t.Errorf("message limit: got %d, want 100", cfg.Relay.GameMessageLimit)
	}
	if !cfg.Analytics.Enabled {
		t.Error("analytics should be enabled")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	minimal := `
game:
  host: mc.example.com
  username: BridgeBot
  events_url: ws://mc.example.com:8765/events
chat:
  token: bot-token
auth_server:
  port: 25566
  dns_wildcard: link.example.com
`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.CommandPrefix != "mc!" {
		t.Errorf("default prefix: got %q, want %q", cfg.Chat.CommandPrefix, "mc!")
	}
	if cfg.Relay.MessageDelay() != 3*time.Second {
		t.Errorf("default delay: got %v, want 3s", cfg.Relay.MessageDelay())
	}
	if cfg.Relay.GameMessageLimit != 256 {
		t.Errorf("default limit: got %d, want 256", cfg.Relay.GameMessageLimit)
	}
	if cfg.Relay.ProbeInterval() != 15*time.Second || cfg.Relay.GraceInterval() != 15*time.Second {
		t.Errorf("default intervals: got %v/%v", cfg.Relay.ProbeInterval(), cfg.Relay.GraceInterval())
	}
	if cfg.Identity.AvatarURLTemplate == "" {
		t.Error("default avatar template missing")
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	t.Parallel()
	incomplete := `
game:
  host: mc.example.com
`
	if _, err := Load(writeConfig(t, incomplete)); err == nil {
		t.Fatal("Load should reject a config without required fields")
	}
}

func TestDatabaseDSN(t *testing.T) {
	t.Parallel()
	d := DatabaseConfig{Host: "db.local", User: "u", Password: "p", DB: "bridge"}
	want := "host=db.local user=u password=p dbname=bridge sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}
