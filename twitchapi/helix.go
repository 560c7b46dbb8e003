// Package twitchapi contains minimal clients for the Twitch Helix API and the
// id.twitch.tv identity endpoints, covering only what the chat client needs:
// user id resolution, sending chat messages and announcements, global emotes,
// EventSub subscription creation, and token validate/refresh/exchange.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultHelixBaseURL is the production Helix API root.
const DefaultHelixBaseURL = "https://api.twitch.tv/helix"

// UserAgent is sent on all outbound requests.
const UserAgent = "chat-tender/1.0"

// HelixClient issues Helix requests on behalf of a logged-in user. The zero
// value plus a Token is usable; BaseURL and HTTPClient exist for tests.
type HelixClient struct {
	Token      *UserToken
	BaseURL    string
	HTTPClient *http.Client
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return DefaultHelixBaseURL
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if hc.Token == nil {
		return nil, errors.New("helix client has no token")
	}
	req, err := http.NewRequestWithContext(ctx, method, hc.base()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", hc.Token.ClientID)
	req.Header.Set("Authorization", "Bearer "+hc.Token.AccessToken)
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// GetUserID resolves a login name to its user ID. Returns an empty string
// when the login does not exist.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	req, err := hc.newRequest(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("login", login)
	req.URL.RawQuery = q.Encode()
	resp, err := hc.http().Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("helix users request failed: %s: %s", resp.Status, string(b))
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
		return "", nil
	}
	return body.Data[0].ID, nil
}

// SendKind selects the outbound send endpoint.
type SendKind int

const (
	SendMessage SendKind = iota
	SendAnnouncement
)

// AnnouncementColor is the accent color for announcements; empty means primary.
type AnnouncementColor string

const (
	ColorPrimary AnnouncementColor = "primary"
	ColorBlue    AnnouncementColor = "blue"
	ColorGreen   AnnouncementColor = "green"
	ColorOrange  AnnouncementColor = "orange"
	ColorPurple  AnnouncementColor = "purple"
)

// SendRequest is a tagged outbound send. Both variants share the broadcaster,
// sender and message payload and differ only in endpoint and the optional
// color tag.
type SendRequest struct {
	Kind          SendKind
	BroadcasterID string
	SenderID      string
	Message       string
	Color         AnnouncementColor
}

// Send delivers a chat message or announcement to a channel.
func (hc *HelixClient) Send(ctx context.Context, sr SendRequest) error {
	if sr.BroadcasterID == "" || sr.SenderID == "" || sr.Message == "" {
		return errors.New("missing broadcaster/sender/message")
	}
	var path string
	var payload any
	switch sr.Kind {
	case SendMessage:
		path = "/chat/messages"
		payload = map[string]string{
			"broadcaster_id": sr.BroadcasterID,
			"sender_id":      sr.SenderID,
			"message":        sr.Message,
		}
	case SendAnnouncement:
		color := sr.Color
		if color == "" {
			color = ColorPrimary
		}
		path = fmt.Sprintf("/chat/announcements?broadcaster_id=%s&moderator_id=%s", sr.BroadcasterID, sr.SenderID)
		payload = map[string]string{
			"message": sr.Message,
			"color":   string(color),
		}
	default:
		return fmt.Errorf("unknown send kind %d", sr.Kind)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := hc.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("helix send failed: %s: %s", resp.Status, string(rb))
	}
	return nil
}

// Emote is one global emote as reported by Helix.
type Emote struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Images EmoteImages `json:"images"`
	Format []string    `json:"format"`
	Scale  []string    `json:"scale"`
	Theme  []string    `json:"theme_mode"`
}

type EmoteImages struct {
	URL1x string `json:"url_1x"`
	URL2x string `json:"url_2x"`
	URL4x string `json:"url_4x"`
}

// GetGlobalEmotes fetches the global emote set.
func (hc *HelixClient) GetGlobalEmotes(ctx context.Context) ([]Emote, error) {
	req, err := hc.newRequest(ctx, http.MethodGet, "/chat/emotes/global", nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("helix global emotes failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data     []Emote `json:"data"`
		Template string  `json:"template"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// CreateChatSubscription registers a channel.chat.message subscription bound
// to a websocket session id.
func (hc *HelixClient) CreateChatSubscription(ctx context.Context, sessionID, broadcasterID, userID string) error {
	if sessionID == "" || broadcasterID == "" || userID == "" {
		return errors.New("missing session/broadcaster/user id")
	}
	payload := map[string]any{
		"type":    "channel.chat.message",
		"version": "1",
		"condition": map[string]string{
			"broadcaster_user_id": broadcasterID,
			"user_id":             userID,
		},
		"transport": map[string]string{
			"method":     "websocket",
			"session_id": sessionID,
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := hc.newRequest(ctx, http.MethodPost, "/eventsub/subscriptions", bytes.NewReader(b))
	if err != nil {
		return err
	}
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		rb, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("eventsub subscription rejected: %s: %s", resp.Status, string(rb))
	}
	return nil
}
