package eventsub

import "encoding/json"

// Envelope kinds on the realtime socket.
const (
	kindWelcome      = "session_welcome"
	kindKeepalive    = "session_keepalive"
	kindNotification = "notification"
	kindReconnect    = "session_reconnect"
	kindRevocation   = "revocation"
)

type envelope struct {
	Metadata struct {
		MessageID        string `json:"message_id"`
		MessageType      string `json:"message_type"`
		MessageTimestamp string `json:"message_timestamp"`
	} `json:"metadata"`
	Payload json.RawMessage `json:"payload"`
}

type welcomePayload struct {
	Session struct {
		ID                      string `json:"id"`
		KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
		ReconnectURL            string `json:"reconnect_url"`
	} `json:"session"`
}

type notificationPayload struct {
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
	Event json.RawMessage `json:"event"`
}

type chatMessageEvent struct {
	MessageID       string `json:"message_id"`
	ChatterUserName string `json:"chatter_user_name"`
	Color           string `json:"color"`
	Message         struct {
		Fragments []struct {
			Type  string `json:"type"`
			Text  string `json:"text"`
			Emote *struct {
				ID string `json:"id"`
			} `json:"emote"`
		} `json:"fragments"`
	} `json:"message"`
}
