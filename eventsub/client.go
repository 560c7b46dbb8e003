// Package eventsub implements the realtime subscription client: one
// websocket connection per joined channel, a welcome/subscribe handshake,
// then demultiplexing of inbound envelopes into typed chat events on the app
// bus. An instance is single-shot; rejoining a channel builds a fresh one.
package eventsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chat-tender/events"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

// DefaultSocketURL is the production EventSub websocket endpoint.
const DefaultSocketURL = "wss://eventsub.wss.twitch.tv/ws"

// ErrUnexpectedFirstFrame reports a connection whose first frame was not the
// welcome envelope.
var ErrUnexpectedFirstFrame = errors.New("first frame was not session_welcome")

// welcomeWait bounds how long the first frame may take.
const welcomeWait = 15 * time.Second

// Client drives one EventSub session for one channel.
type Client struct {
	URL           string
	Helix         *twitchapi.HelixClient
	BroadcasterID string
	UserID        string
	Bus           *events.Bus
	Dialer        *websocket.Dialer
}

func (c *Client) url() string {
	if c.URL != "" {
		return c.URL
	}
	return DefaultSocketURL
}

func (c *Client) dialer() *websocket.Dialer {
	if c.Dialer != nil {
		return c.Dialer
	}
	return websocket.DefaultDialer
}

// Run executes connect → welcome → subscribe → streaming until the
// connection ends or ctx is cancelled. Terminal failures are surfaced on the
// bus as ChatEventSubError; cancellation is silent. Run never reconnects:
// retry is the channel-switch gesture upstream.
func (c *Client) Run(ctx context.Context) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "eventsub", "session", attribute.String("broadcaster_id", c.BroadcasterID))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	conn, _, err := c.dialer().DialContext(ctx, c.url(), nil)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("eventsub dial: %w", err))
	}
	defer func() { _ = conn.Close() }()

	// Unblock reads when the owning task is cancelled. The watcher must also
	// exit when Run returns on its own, or it would park until the next join.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	keepalive, err := c.awaitWelcomeAndSubscribe(ctx, conn)
	if err != nil {
		return c.fail(ctx, err)
	}

	slog.Info("eventsub streaming", slog.String("broadcaster_id", c.BroadcasterID))
	readWait := time.Duration(keepalive)*time.Second + 10*time.Second

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return c.fail(ctx, errors.New("connection closed"))
		}
		if err := c.dispatch(ctx, data); err != nil {
			return c.fail(ctx, err)
		}
	}
}

// awaitWelcomeAndSubscribe enforces that the very first inbound frame is the
// welcome envelope, then binds a chat subscription to its session id.
func (c *Client) awaitWelcomeAndSubscribe(ctx context.Context, conn *websocket.Conn) (keepaliveSeconds int, err error) {
	_ = conn.SetReadDeadline(time.Now().Add(welcomeWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("read welcome: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("parse welcome: %w", err)
	}
	telemetry.WSFrames.WithLabelValues(env.Metadata.MessageType).Inc()
	if env.Metadata.MessageType != kindWelcome {
		return 0, fmt.Errorf("%w: got %q", ErrUnexpectedFirstFrame, env.Metadata.MessageType)
	}
	var welcome welcomePayload
	if err := json.Unmarshal(env.Payload, &welcome); err != nil {
		return 0, fmt.Errorf("parse welcome payload: %w", err)
	}
	slog.Info("eventsub session established", slog.String("session_id", welcome.Session.ID))

	if err := c.Helix.CreateChatSubscription(ctx, welcome.Session.ID, c.BroadcasterID, c.UserID); err != nil {
		return 0, err
	}
	keepaliveSeconds = welcome.Session.KeepaliveTimeoutSeconds
	if keepaliveSeconds <= 0 {
		keepaliveSeconds = 30
	}
	return keepaliveSeconds, nil
}

func (c *Client) dispatch(ctx context.Context, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse frame: %w", err)
	}
	telemetry.WSFrames.WithLabelValues(env.Metadata.MessageType).Inc()

	switch env.Metadata.MessageType {
	case kindNotification:
		var note notificationPayload
		if err := json.Unmarshal(env.Payload, &note); err != nil {
			return fmt.Errorf("parse notification: %w", err)
		}
		if note.Subscription.Type != "channel.chat.message" {
			slog.Debug("ignoring notification", slog.String("type", note.Subscription.Type))
			return nil
		}
		msg, err := decodeChatMessage(note.Event)
		if err != nil {
			slog.Warn("undecodable chat notification", slog.Any("err", err))
			return nil
		}
		telemetry.ChatMessagesReceived.Inc()
		return c.Bus.Publish(ctx, events.ChatNewMessage{Message: msg})
	case kindKeepalive:
		// no-op
	case kindReconnect:
		// TODO: follow reconnect_url instead of waiting for the session to drop.
		slog.Warn("eventsub reconnect requested, not followed")
	case kindRevocation:
		slog.Warn("eventsub subscription revoked")
	default:
		slog.Debug("unhandled eventsub frame", slog.String("type", env.Metadata.MessageType))
	}
	return nil
}

// fail surfaces a terminal error on the bus unless the task was cancelled.
func (c *Client) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.Error("eventsub session failed", slog.Any("err", err))
	_ = c.Bus.Publish(ctx, events.ChatEventSubError{Reason: err.Error()})
	return err
}
