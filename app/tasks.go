package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chat-tender/auth"
	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/events"
	"github.com/onnwee/chat-tender/eventsub"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

// Tasks is the production Runner: every method launches a goroutine that does
// the blocking work and reports back over the bus. Auth is a template client;
// per-flow copies pick up the app credentials from the current config.
type Tasks struct {
	Bus       *events.Bus
	Auth      auth.Client
	ConfigDir string

	// Overrides for tests; empty means production endpoints.
	HelixBaseURL string
	SocketURL    string
}

func (t *Tasks) authClient(cfg config.Config) *auth.Client {
	c := t.Auth
	c.ClientID = cfg.ClientID
	c.ClientSecret = cfg.ClientSecret
	if c.ConfigDir == "" {
		c.ConfigDir = t.ConfigDir
	}
	return &c
}

func (t *Tasks) helixClient(token *twitchapi.UserToken) *twitchapi.HelixClient {
	return &twitchapi.HelixClient{Token: token, BaseURL: t.HelixBaseURL}
}

// LoadConfig resolves the config directory and loads the layered config.
func (t *Tasks) LoadConfig() {
	go func() {
		ctx := context.Background()
		dir := t.ConfigDir
		if dir == "" {
			var err error
			if dir, err = config.Dir(); err != nil {
				_ = t.Bus.Publish(ctx, events.ConfigLoaded{Config: config.Default(), Err: err})
				return
			}
		}
		cfg, err := config.Load(dir)
		_ = t.Bus.Publish(ctx, events.ConfigLoaded{Config: cfg, Err: err})
	}()
}

// SilentLogin attempts stored-token reuse for the active profile.
func (t *Tasks) SilentLogin(cfg config.Config) {
	go func() {
		ctx := context.Background()
		tok, err := t.authClient(cfg).TrySilentLogin(ctx, &cfg)
		_ = t.Bus.Publish(ctx, events.SilentLoginComplete{Token: tok, Err: err})
	}()
}

// SilentLoginForProfile attempts stored-token reuse for an explicit profile.
func (t *Tasks) SilentLoginForProfile(cfg config.Config, profileName string) {
	go func() {
		ctx := context.Background()
		tok, err := t.authClient(cfg).SilentLoginForProfile(ctx, profileName)
		_ = t.Bus.Publish(ctx, events.ProfileSwitchSilentLoginComplete{Token: tok, Err: err, ProfileName: profileName})
	}()
}

// BrowserLogin runs the browser/local-callback flow.
func (t *Tasks) BrowserLogin(cfg config.Config, profileName string) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		tok, err := t.authClient(cfg).StartInteractiveLogin(ctx, profileName)
		t.finishAuth(ctx, tok, err)
	}()
	return NewTask(cancel)
}

// DeviceLogin runs the device-code flow, surfacing the activation prompt as
// soon as the provider issues a code.
func (t *Tasks) DeviceLogin(cfg config.Config, profileName string) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		tok, err := t.authClient(cfg).RunDeviceFlow(ctx, profileName, func(uri, code string) {
			_ = t.Bus.Publish(ctx, events.AuthAwaitingDeviceActivation{URI: uri, UserCode: code})
		})
		t.finishAuth(ctx, tok, err)
	}()
	return NewTask(cancel)
}

// ValidatePastedToken checks a manually entered token against the identity
// endpoint. Bounded internally; not cancellable from the UI.
func (t *Tasks) ValidatePastedToken(cfg config.Config, raw string) {
	go func() {
		ctx := context.Background()
		tok, err := t.authClient(cfg).ValidatePastedToken(ctx, raw)
		t.finishAuth(ctx, tok, err)
	}()
}

// finishAuth converts a flow outcome into exactly one terminal event. A
// cancelled flow publishes nothing.
func (t *Tasks) finishAuth(ctx context.Context, tok *twitchapi.UserToken, err error) {
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if errors.Is(err, auth.ErrPortInUse) {
			_ = t.Bus.Publish(ctx, events.AuthFlowStartFailed{Reason: err.Error()})
			return
		}
		_ = t.Bus.Publish(ctx, events.AuthError{Reason: err.Error()})
		return
	}
	_ = t.Bus.Publish(ctx, events.AuthSuccess{Token: tok})
}

// PersistSession writes the token file and the config. Failures are logged;
// a persisted-state write error never disturbs the live session.
func (t *Tasks) PersistSession(profileName string, token *twitchapi.UserToken, cfg config.Config) {
	go func() {
		c := t.authClient(cfg)
		if err := c.SaveToken(profileName, token); err != nil {
			slog.Error("persist token", slog.String("profile", profileName), slog.Any("err", err))
		}
		if err := config.Save(c.ConfigDir, cfg); err != nil {
			slog.Error("persist config", slog.Any("err", err))
		}
	}()
}

// FetchGlobalEmotes loads the global emote set for the session.
func (t *Tasks) FetchGlobalEmotes(cfg config.Config, token *twitchapi.UserToken) {
	go func() {
		ctx := context.Background()
		emotes, err := t.helixClient(token).GetGlobalEmotes(ctx)
		_ = t.Bus.Publish(ctx, events.GlobalEmotesLoaded{Emotes: emotes, Err: err})
	}()
}

// JoinChannel resolves the channel login and runs one realtime session for
// it. The returned handle cancels the whole task, resolution included.
func (t *Tasks) JoinChannel(token *twitchapi.UserToken, channel string) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Release the context once the session ends on its own, so nothing
		// downstream keeps waiting on a cancellation that never comes.
		defer cancel()
		helix := t.helixClient(token)
		id, err := helix.GetUserID(ctx, channel)
		if err != nil {
			_ = t.Bus.Publish(ctx, events.ChatEventSubError{Reason: fmt.Sprintf("resolve channel %q: %v", channel, err)})
			return
		}
		if id == "" {
			_ = t.Bus.Publish(ctx, events.ChatEventSubError{Reason: fmt.Sprintf("channel %q not found", channel)})
			return
		}
		es := &eventsub.Client{
			URL:           t.SocketURL,
			Helix:         helix,
			BroadcasterID: id,
			UserID:        token.UserID,
			Bus:           t.Bus,
		}
		// Run publishes its own terminal failure.
		_ = es.Run(ctx)
	}()
	return NewTask(cancel)
}

// SendChat delivers one chat message to a channel by login name.
func (t *Tasks) SendChat(client *chat.Client, channel, senderID, message string) {
	go func() {
		ctx := context.Background()
		err := t.timedSend(ctx, client, channel, func(broadcasterID string) error {
			return client.SendMessage(ctx, broadcasterID, senderID, message)
		})
		t.finishSend(ctx, err)
	}()
}

// SendAnnouncement delivers one announcement to a channel by login name.
func (t *Tasks) SendAnnouncement(client *chat.Client, channel, senderID, message string, color twitchapi.AnnouncementColor) {
	go func() {
		ctx := context.Background()
		err := t.timedSend(ctx, client, channel, func(broadcasterID string) error {
			return client.SendAnnouncement(ctx, broadcasterID, senderID, message, color)
		})
		t.finishSend(ctx, err)
	}()
}

func (t *Tasks) timedSend(ctx context.Context, client *chat.Client, channel string, send func(broadcasterID string) error) error {
	ctx, span := telemetry.StartSpan(ctx, "chat", "send", attribute.String("channel", channel))
	defer span.End()
	var err error
	telemetry.TimeFunc(telemetry.SendDuration, func() {
		var id string
		if id, err = client.Helix.GetUserID(ctx, channel); err != nil {
			return
		}
		if id == "" {
			err = fmt.Errorf("channel %q not found", channel)
			return
		}
		err = send(id)
	})
	return err
}

func (t *Tasks) finishSend(ctx context.Context, err error) {
	if err != nil {
		telemetry.SendsFailed.Inc()
		_ = t.Bus.Publish(ctx, events.ChatMessageSendError{Reason: err.Error()})
		return
	}
	telemetry.SendsSucceeded.Inc()
	_ = t.Bus.Publish(ctx, events.ChatMessageSent{})
}
