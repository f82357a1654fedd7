// Copyright 2025-2026 Hexavox

// Package store provides the bridge's durable keyed storage: relay-enabled
// channel registrations and chat-platform account records holding at most
// one pending link token and at most one bound game identity.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var schema = `
CREATE TABLE IF NOT EXISTS channel_registrations (
	id          SERIAL PRIMARY KEY,
	channel_id  BIGINT NOT NULL UNIQUE,
	webhook_url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_accounts (
	id           SERIAL PRIMARY KEY,
	chat_id      BIGINT NOT NULL UNIQUE,
	game_uuid    TEXT,
	link_token   TEXT,
	token_expiry TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS chat_accounts_link_token ON chat_accounts (link_token);
`

// ChannelRegistration is a relay-enabled chat channel and its delivery hook.
type ChannelRegistration struct {
	ID         int64        `db:"id"`
	ChannelID  snowflake.ID `db:"channel_id"`
	WebhookURL string       `db:"webhook_url"`
}

// Account is a chat-platform account record.
type Account struct {
	ID          int64          `db:"id"`
	ChatID      snowflake.ID   `db:"chat_id"`
	GameUUID    sql.NullString `db:"game_uuid"`
	LinkToken   sql.NullString `db:"link_token"`
	TokenExpiry sql.NullTime   `db:"token_expiry"`
}

// Linked reports whether the account has a bound game identity.
func (a *Account) Linked() bool {
	return a.GameUUID.Valid && a.GameUUID.String != ""
}

// TokenExpired reports whether the account's pending link token has passed
// its expiry. An account without a token is treated as expired.
func (a *Account) TokenExpired(now time.Time) bool {
	if !a.LinkToken.Valid || !a.TokenExpiry.Valid {
		return true
	}
	return now.After(a.TokenExpiry.Time)
}

// Open connects to the database and ensures the schema exists.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}
