// Copyright 2025-2026 Hexavox

// Package authserver runs a fake game server that accepts exactly one login
// attempt per connection. Players join `{token}.{wildcard-host}` and the
// first DNS label of the handshake address carries their link token.
package authserver

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hexavox/gamebridge/pkg/gameproto"
	"github.com/hexavox/gamebridge/pkg/store"
)

const connTimeout = 30 * time.Second

// AccountBinder is the store subset the listener consumes.
type AccountBinder interface {
	GetByToken(token string) (*store.Account, error)
	DeleteToken(accountID int64) error
	BindGameIdentity(accountID int64, gameID uuid.UUID) error
}

type Server struct {
	Addr     string
	Accounts AccountBinder
	Log      zerolog.Logger

	ln net.Listener
}

// Listen binds the listener without accepting yet.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}
	s.ln = ln
	return nil
}

// BoundAddr returns the listener address, useful when Addr requested an
// ephemeral port.
func (s *Server) BoundAddr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	ln := s.ln
	log := s.Log.With().Str("component", "authserver").Logger()
	log.Info().Str("addr", ln.Addr().String()).Msg("Account link listener running")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("Accept failed")
			continue
		}
		go s.handleConn(conn, log)
	}
}

func (s *Server) handleConn(conn net.Conn, log zerolog.Logger) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	addr, next, err := readHandshake(conn)
	if err != nil {
		log.Debug().Err(err).Msg("Dropping connection with bad handshake")
		return
	}
	if next == gameproto.StateStatus {
		// Server list pings against the link address get a minimal status
		// response so clients show the host as reachable.
		s.serveStatus(conn, log)
		return
	}
	if next != gameproto.StateLogin {
		return
	}

	name, id, err := readLoginStart(conn)
	if err != nil {
		log.Debug().Err(err).Msg("Dropping connection with bad login start")
		return
	}

	token, _, _ := strings.Cut(addr, ".")
	account, err := s.Accounts.GetByToken(token)
	if err != nil {
		log.Error().Err(err).Msg("Token lookup failed")
		_ = disconnect(conn, "Something went wrong, please request a new token and try again.")
		return
	}
	if account == nil {
		_ = disconnect(conn, "You have connected with an invalid token!")
		return
	}
	if account.TokenExpired(time.Now()) {
		if err := s.Accounts.DeleteToken(account.ID); err != nil {
			log.Error().Err(err).Msg("Failed to delete expired token")
		}
		_ = disconnect(conn, "Your token has expired, please request a new one.")
		return
	}
	if err := s.Accounts.BindGameIdentity(account.ID, id); err != nil {
		log.Error().Err(err).Msg("Failed to bind game identity")
		_ = disconnect(conn, "Something went wrong, please request a new token and try again.")
		return
	}
	log.Info().Str("name", name).Str("uuid", id.String()).
		Int64("account_id", account.ID).
		Msg("Linked a game account")
	_ = disconnect(conn, fmt.Sprintf("Success! Your game account %s is now connected.", name))
}

func (s *Server) serveStatus(conn net.Conn, log zerolog.Logger) {
	// Status request packet; its body is empty.
	if _, _, err := gameproto.ReadPacket(conn); err != nil {
		return
	}
	status := `{"version":{"name":"Account Link","protocol":-1},"players":{"max":0,"online":0},"description":{"text":"Join to connect your account"}}`
	body := gameproto.AppendString(nil, status)
	if err := gameproto.WritePacket(conn, 0x00, body); err != nil {
		log.Debug().Err(err).Msg("Failed to write status response")
	}
}

// readHandshake consumes the handshake packet and returns the announced
// server address and the requested next state.
func readHandshake(conn net.Conn) (addr string, next int32, err error) {
	id, body, err := gameproto.ReadPacket(conn)
	if err != nil {
		return "", 0, err
	}
	if id != 0x00 {
		return "", 0, fmt.Errorf("unexpected handshake packet id 0x%02x", id)
	}
	r := bytes.NewReader(body)
	if _, err := gameproto.ReadVarInt(r); err != nil { // protocol version
		return "", 0, err
	}
	addr, err = gameproto.ReadString(r)
	if err != nil {
		return "", 0, err
	}
	var port [2]byte
	if _, err := r.Read(port[:]); err != nil {
		return "", 0, err
	}
	next, err = gameproto.ReadVarInt(r)
	if err != nil {
		return "", 0, err
	}
	// Modded clients append a marker after the hostname.
	addr = strings.TrimSuffix(addr, "\x00FML\x00")
	return addr, next, nil
}

// readLoginStart consumes the login start packet and returns the player's
// name and UUID. Clients that omit the UUID get the offline-mode identity
// derived from their name.
func readLoginStart(conn net.Conn) (string, uuid.UUID, error) {
	id, body, err := gameproto.ReadPacket(conn)
	if err != nil {
		return "", uuid.Nil, err
	}
	if id != 0x00 {
		return "", uuid.Nil, fmt.Errorf("unexpected login packet id 0x%02x", id)
	}
	r := bytes.NewReader(body)
	name, err := gameproto.ReadString(r)
	if err != nil {
		return "", uuid.Nil, err
	}
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return name, offlineUUID(name), nil
	}
	playerID, err := uuid.FromBytes(raw[:])
	if err != nil || playerID == uuid.Nil {
		return name, offlineUUID(name), nil
	}
	return name, playerID, nil
}

// offlineUUID derives the deterministic offline-mode identity for a name.
func offlineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = (sum[6] & 0x0f) | 0x30 // version 3
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant
	id, _ := uuid.FromBytes(sum[:])
	return id
}

// disconnect writes a login disconnect packet with a JSON chat reason.
func disconnect(conn net.Conn, reason string) error {
	payload, err := json.Marshal(map[string]string{"text": reason})
	if err != nil {
		return err
	}
	body := gameproto.AppendString(nil, string(payload))
	return gameproto.WritePacket(conn, 0x00, body)
}
