// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPProfileLookup resolves identities against the profile service's REST
// API: GET name-history-by-id and GET id-by-name, both returning JSON.
type HTTPProfileLookup struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPProfileLookup creates a lookup client with a sane request timeout.
func NewHTTPProfileLookup(baseURL string) *HTTPProfileLookup {
	return &HTTPProfileLookup{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *HTTPProfileLookup) httpClient() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return http.DefaultClient
}

func (l *HTTPProfileLookup) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("profile service returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NameByID fetches the identity's name history and returns the most recent
// entry.
func (l *HTTPProfileLookup) NameByID(ctx context.Context, id uuid.UUID) (string, error) {
	shortID := strings.ReplaceAll(id.String(), "-", "")
	var history []struct {
		Name string `json:"name"`
	}
	url := fmt.Sprintf("%s/user/profiles/%s/names", l.BaseURL, shortID)
	if err := l.getJSON(ctx, url, &history); err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("identity %s has no recorded name history", id)
	}
	return history[len(history)-1].Name, nil
}

// IDByName resolves a display name to its persistent identity.
func (l *HTTPProfileLookup) IDByName(ctx context.Context, name string) (uuid.UUID, error) {
	var profile struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/users/profiles/%s", l.BaseURL, name)
	if err := l.getJSON(ctx, url, &profile); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(profile.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("profile service returned malformed id %q: %w", profile.ID, err)
	}
	return id, nil
}
