// Copyright 2025-2026 Hexavox

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConnectionReason labels a presence analytics record.
type ConnectionReason string

const (
	ReasonConnected    ConnectionReason = "CONNECTED"
	ReasonDisconnected ConnectionReason = "DISCONNECTED"
	// ReasonSeen records a player observed during backfill, with no
	// reliable join time or player count.
	ReasonSeen ConnectionReason = "SEEN"
)

// Analytics ships presence and chat records to an external document index.
// A nil *Analytics is valid and drops everything, so callers never need to
// branch on whether the sink is configured.
type Analytics struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	log      zerolog.Logger
}

func NewAnalytics(baseURL, username, password string, log zerolog.Logger) *Analytics {
	return &Analytics{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With().Str("component", "analytics").Logger(),
	}
}

type connectionRecord struct {
	UUID   string           `json:"uuid"`
	Reason ConnectionReason `json:"reason"`
	Count  *int             `json:"count,omitempty"`
	Time   int64            `json:"time"`
}

type chatRecord struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Message     string `json:"message"`
	Unformatted string `json:"unformatted"`
	Time        int64  `json:"time"`
}

type rawRecord struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Time    int64  `json:"time"`
}

// LogConnection records a presence change. online is omitted for SEEN
// records because the list is still streaming in.
func (a *Analytics) LogConnection(id uuid.UUID, reason ConnectionReason, online int) {
	if a == nil {
		return
	}
	rec := connectionRecord{
		UUID:   id.String(),
		Reason: reason,
		Time:   time.Now().UnixMilli(),
	}
	if reason != ReasonSeen {
		rec.Count = &online
	}
	a.index("connections/_doc/", rec)
}

// LogChat records a relayed game chat line, keeping the raw wire text
// alongside the parsed message.
func (a *Analytics) LogChat(id uuid.UUID, name, message, unformatted string) {
	if a == nil {
		return
	}
	a.index("chat_messages/_doc/", chatRecord{
		UUID:        id.String(),
		Name:        name,
		Message:     message,
		Unformatted: unformatted,
		Time:        time.Now().UnixMilli(),
	})
}

// LogRaw records an unparsed or non-player message.
func (a *Analytics) LogRaw(kind, message string) {
	if a == nil {
		return
	}
	a.index("raw_messages/_doc/", rawRecord{
		Kind:    kind,
		Message: message,
		Time:    time.Now().UnixMilli(),
	})
}

func (a *Analytics) index(endpoint string, doc any) {
	body, err := json.Marshal(doc)
	if err != nil {
		a.log.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to encode analytics record")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		a.log.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to build analytics request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if a.username != "" {
		req.SetBasicAuth(a.username, a.password)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to ship analytics record")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.log.Warn().Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Analytics index rejected record")
	}
}
