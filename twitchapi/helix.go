// Package twitchapi contains minimal helpers for the Twitch Helix API: user id
// resolution and whisper delivery for private bot conversations.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// HelixClient calls Helix with bearer tokens from an oauth2 token source.
type HelixClient struct {
	BaseURL    string
	ClientID   string
	HTTPClient *http.Client
}

// NewHelixClient returns a client whose requests are authorized by ts.
func NewHelixClient(ctx context.Context, clientID string, ts oauth2.TokenSource) *HelixClient {
	return &HelixClient{ClientID: clientID, HTTPClient: oauth2.NewClient(ctx, ts)}
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) url(path string, q url.Values) string {
	base := hc.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return base + path + "?" + q.Encode()
}

func (hc *HelixClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Client-Id", hc.ClientID)
	return hc.http().Do(req)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// StatusError is a non-success Helix response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("helix %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", errors.New("login empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.url("/users", url.Values{"login": {login}}), nil)
	if err != nil {
		return "", err
	}
	resp, err := hc.do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", statusError("get users", resp)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", errors.New("user not found")
	}
	return body.Data[0].ID, nil
}

// SendWhisper sends message from one user to another. The token must belong to
// fromUserID and carry the user:manage:whispers scope.
func (hc *HelixClient) SendWhisper(ctx context.Context, fromUserID, toUserID, message string) error {
	if fromUserID == "" || toUserID == "" {
		return errors.New("whisper: user id empty")
	}
	payload, err := json.Marshal(struct {
		Message string `json:"message"`
	}{message})
	if err != nil {
		return err
	}
	q := url.Values{"from_user_id": {fromUserID}, "to_user_id": {toUserID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.url("/whispers", q), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("send whisper", resp)
	}
	return nil
}
