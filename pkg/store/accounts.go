// Copyright 2025-2026 Hexavox

package store

import (
	"database/sql"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

var selectAccounts = `SELECT a.* FROM chat_accounts a`

const linkedCacheTTL = 15 * time.Minute

// AccountStore is keyed CRUD over chat-platform account records.
type AccountStore interface {
	GetByChatID(chatID snowflake.ID) (*Account, error)
	// Ensure returns the account for chatID, creating it if absent.
	Ensure(chatID snowflake.ID) (*Account, error)
	// SetLinkToken stores a pending link token, superseding any prior one.
	SetLinkToken(chatID snowflake.ID, token string, expiry time.Time) error
	GetByToken(token string) (*Account, error)
	DeleteToken(accountID int64) error
	// BindGameIdentity consumes the pending token and binds the game
	// identity in one statement; re-binding replaces the previous identity.
	BindGameIdentity(accountID int64, gameID uuid.UUID) error
	// LinkedIdentity resolves the bound game identity for a chat account.
	// Results are served from a short-lived read cache since this runs on
	// every chat-to-game relay.
	LinkedIdentity(chatID snowflake.ID) (uuid.UUID, bool, error)
}

type postgresAccountStore struct {
	db          *sqlx.DB
	log         zerolog.Logger
	linkedCache *ttlcache.Cache[int64, string]
}

// NewAccounts returns a Postgres-backed AccountStore.
func NewAccounts(dbconn *sqlx.DB, log zerolog.Logger) AccountStore {
	cache := ttlcache.New[int64, string](
		ttlcache.WithTTL[int64, string](linkedCacheTTL),
	)
	go cache.Start()
	return &postgresAccountStore{
		db:          dbconn,
		log:         log.With().Str("component", "account_store").Logger(),
		linkedCache: cache,
	}
}

func (s *postgresAccountStore) GetByChatID(chatID snowflake.ID) (*Account, error) {
	var acct Account
	err := s.db.Get(&acct, selectAccounts+" WHERE a.chat_id = $1;", int64(chatID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *postgresAccountStore) Ensure(chatID snowflake.ID) (*Account, error) {
	stmt := `
	INSERT INTO chat_accounts (chat_id)
	VALUES ($1)
	ON CONFLICT (chat_id) DO NOTHING;
	`
	if _, err := s.db.Exec(stmt, int64(chatID)); err != nil {
		return nil, err
	}
	return s.GetByChatID(chatID)
}

func (s *postgresAccountStore) SetLinkToken(chatID snowflake.ID, token string, expiry time.Time) error {
	stmt := `
	UPDATE chat_accounts
	SET link_token = $1, token_expiry = $2
	WHERE chat_id = $3;
	`
	_, err := s.db.Exec(stmt, token, expiry, int64(chatID))
	if err == nil {
		s.linkedCache.Delete(int64(chatID))
	}
	return err
}

func (s *postgresAccountStore) GetByToken(token string) (*Account, error) {
	var acct Account
	err := s.db.Get(&acct, selectAccounts+" WHERE a.link_token = $1;", token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *postgresAccountStore) DeleteToken(accountID int64) error {
	stmt := `
	UPDATE chat_accounts
	SET link_token = NULL, token_expiry = NULL
	WHERE id = $1;
	`
	_, err := s.db.Exec(stmt, accountID)
	return err
}

func (s *postgresAccountStore) BindGameIdentity(accountID int64, gameID uuid.UUID) error {
	stmt := `
	UPDATE chat_accounts
	SET game_uuid = $1, link_token = NULL, token_expiry = NULL
	WHERE id = $2
	RETURNING chat_id;
	`
	var chatID int64
	if err := s.db.QueryRow(stmt, gameID.String(), accountID).Scan(&chatID); err != nil {
		return err
	}
	s.linkedCache.Delete(chatID)
	return nil
}

func (s *postgresAccountStore) LinkedIdentity(chatID snowflake.ID) (uuid.UUID, bool, error) {
	if item := s.linkedCache.Get(int64(chatID), ttlcache.WithDisableTouchOnHit[int64, string]()); item != nil {
		if item.Value() == "" {
			return uuid.Nil, false, nil
		}
		id, err := uuid.Parse(item.Value())
		if err != nil {
			return uuid.Nil, false, err
		}
		return id, true, nil
	}
	s.log.Debug().Int64("chat_id", int64(chatID)).Msg("LinkedIdentity cache miss, querying database")
	acct, err := s.GetByChatID(chatID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if acct == nil || !acct.Linked() {
		// Negative entries are cached too; invalidated by SetLinkToken/Bind.
		s.linkedCache.Set(int64(chatID), "", linkedCacheTTL)
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(acct.GameUUID.String)
	if err != nil {
		return uuid.Nil, false, err
	}
	s.linkedCache.Set(int64(chatID), id.String(), linkedCacheTTL)
	return id, true, nil
}
