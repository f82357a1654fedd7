// Copyright 2025-2026 Hexavox

// Package gamews implements the bridge's game-side transport: a websocket
// stream of JSON events produced by the in-server companion plugin.
package gamews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hexavox/gamebridge/pkg/bridge"
)

// Connector dials the companion plugin's event stream.
type Connector struct {
	URL    string
	Token  string
	Log    zerolog.Logger
	Dialer *websocket.Dialer
}

var _ bridge.GameConnector = (*Connector)(nil)

type event struct {
	Type string `json:"type"`

	// session_start has no payload.

	// player_list
	Actions []playerAction `json:"actions,omitempty"`

	// chat
	Position string `json:"position,omitempty"`
	Text     string `json:"text,omitempty"`

	// tab_info
	Header string `json:"header,omitempty"`
	Footer string `json:"footer,omitempty"`

	// health
	Health float64 `json:"health,omitempty"`
}

type playerAction struct {
	Action string `json:"action"`
	UUID   string `json:"uuid"`
	Name   string `json:"name,omitempty"`
}

type outbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Connect implements bridge.GameConnector.
func (c *Connector) Connect(ctx context.Context, handler bridge.GameHandler) (bridge.GameSession, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, resp, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open event stream (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	s := &session{
		conn:    conn,
		handler: handler,
		log:     c.Log.With().Str("component", "gamews").Logger(),
	}
	go s.readLoop()
	return s, nil
}

type session struct {
	conn    *websocket.Conn
	handler bridge.GameHandler
	log     zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ bridge.GameSession = (*session)(nil)

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handler.HandleDisconnect(err)
			s.Close()
			return
		}
		var evt event
		if err := json.Unmarshal(data, &evt); err != nil {
			// A malformed frame means the stream framing is broken; the
			// only safe recovery is a fresh session.
			s.log.Error().Err(err).Msg("Malformed event frame, dropping the session")
			s.handler.HandleDisconnect(fmt.Errorf("malformed event frame: %w", err))
			s.Close()
			return
		}
		s.dispatch(evt, data)
	}
}

func (s *session) dispatch(evt event, raw []byte) {
	switch evt.Type {
	case "session_start":
		s.handler.HandleSessionEstablished()
	case "player_list":
		s.handler.HandlePlayerList(s.parseActions(evt.Actions))
	case "chat":
		s.handler.HandleGameChat(bridge.ChatEvent{
			Position: parsePosition(evt.Position),
			Text:     evt.Text,
			Raw:      string(raw),
		})
	case "tab_info":
		s.handler.HandleTabInfo(evt.Header, evt.Footer)
	case "health":
		s.handler.HandleHealth(evt.Health)
	default:
		s.log.Debug().Str("type", evt.Type).Msg("Ignoring unknown event type")
	}
}

func (s *session) parseActions(raw []playerAction) []bridge.PlayerListAction {
	actions := make([]bridge.PlayerListAction, 0, len(raw))
	for _, a := range raw {
		id, err := uuid.Parse(a.UUID)
		if err != nil {
			s.log.Warn().Err(err).Str("uuid", a.UUID).Msg("Skipping player action with invalid UUID")
			continue
		}
		var kind bridge.PlayerListActionKind
		switch a.Action {
		case "add":
			kind = bridge.PlayerAdd
		case "remove":
			kind = bridge.PlayerRemove
		default:
			s.log.Warn().Str("action", a.Action).Msg("Skipping unknown player action")
			continue
		}
		actions = append(actions, bridge.PlayerListAction{Kind: kind, ID: id, Name: a.Name})
	}
	return actions
}

func parsePosition(pos string) bridge.ChatPosition {
	switch pos {
	case "system":
		return bridge.PositionSystem
	case "game_info":
		return bridge.PositionGameInfo
	default:
		return bridge.PositionChat
	}
}

func (s *session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// SendChat implements bridge.GameSession.
func (s *session) SendChat(text string) error {
	return s.writeJSON(outbound{Type: "chat", Text: text})
}

// Respawn implements bridge.GameSession.
func (s *session) Respawn() error {
	return s.writeJSON(outbound{Type: "respawn"})
}

// Close implements bridge.GameSession.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
	return nil
}
