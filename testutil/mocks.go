// Package testutil provides shared test helpers, primarily a mock Twitch
// server covering the Helix and identity endpoints the client touches.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer is a test server that mocks Twitch Helix and id.twitch.tv
// responses. Register handlers by path; unregistered paths 404.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockUserResponse adds a handler for the /users endpoint.
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/users"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data": []map[string]string{{"id": userID, "login": login}},
		})
	}
}

// MockValidateResponse adds a handler for the identity /validate endpoint.
func (m *MockTwitchServer) MockValidateResponse(userID, login, clientID string) {
	m.Handlers["/validate"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"client_id":  clientID,
			"login":      login,
			"user_id":    userID,
			"scopes":     []string{"chat:read", "chat:edit"},
			"expires_in": 14400,
		})
	}
}

// MockValidateFailure makes /validate reject every token.
func (m *MockTwitchServer) MockValidateFailure() {
	m.Handlers["/validate"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"status": 401, "message": "invalid access token"})
	}
}

// MockGlobalEmotes adds a handler for /chat/emotes/global.
func (m *MockTwitchServer) MockGlobalEmotes(names ...string) {
	m.Handlers["/chat/emotes/global"] = func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(names))
		for i, n := range names {
			data = append(data, map[string]any{
				"id":   string(rune('a' + i)),
				"name": n,
				"images": map[string]string{
					"url_1x": "https://cdn.example/" + n + "/1x",
				},
			})
		}
		writeJSON(w, map[string]any{"data": data, "template": ""})
	}
}

// MockSubscriptionAccepted makes /eventsub/subscriptions accept everything.
func (m *MockTwitchServer) MockSubscriptionAccepted() {
	m.Handlers["/eventsub/subscriptions"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]any{"data": []any{map[string]string{"status": "enabled"}}})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
