// Copyright 2025-2026 Hexavox

package store

import (
	"database/sql"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jmoiron/sqlx"
)

var selectChannels = `SELECT c.* FROM channel_registrations c`

// ChannelStore is keyed CRUD over relay-enabled channel registrations.
type ChannelStore interface {
	All() ([]*ChannelRegistration, error)
	Get(channelID snowflake.ID) (*ChannelRegistration, error)
	Add(channelID snowflake.ID, webhookURL string) error
	Remove(channelID snowflake.ID) (bool, error)
}

type postgresChannelStore struct {
	db *sqlx.DB
}

// NewChannels returns a Postgres-backed ChannelStore.
func NewChannels(dbconn *sqlx.DB) ChannelStore {
	return &postgresChannelStore{db: dbconn}
}

func (s *postgresChannelStore) All() ([]*ChannelRegistration, error) {
	var regs []*ChannelRegistration
	err := s.db.Select(&regs, selectChannels+" ORDER BY c.id;")
	if err == sql.ErrNoRows {
		return []*ChannelRegistration{}, nil
	}
	return regs, err
}

func (s *postgresChannelStore) Get(channelID snowflake.ID) (*ChannelRegistration, error) {
	var reg ChannelRegistration
	err := s.db.Get(&reg, selectChannels+" WHERE c.channel_id = $1;", int64(channelID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *postgresChannelStore) Add(channelID snowflake.ID, webhookURL string) error {
	stmt := `
	INSERT INTO channel_registrations (channel_id, webhook_url)
	VALUES ($1, $2)
	ON CONFLICT (channel_id)
	DO UPDATE SET webhook_url = $2;
	`
	_, err := s.db.Exec(stmt, int64(channelID), webhookURL)
	return err
}

func (s *postgresChannelStore) Remove(channelID snowflake.ID) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM channel_registrations WHERE channel_id = $1;`, int64(channelID))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
