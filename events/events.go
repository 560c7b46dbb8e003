// Package events defines the closed set of application events and the
// bounded bus carrying them. Background tasks and the presentation shell are
// producers; the session reducer is the sole consumer. Nothing else crosses
// the boundary between them.
package events

import (
	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/twitchapi"
)

// AppEvent is the only payload type carried on the bus. The union is closed:
// each variant implements the unexported marker method.
type AppEvent interface {
	appEvent()
}

// ConfigLoaded carries the result of the startup config load.
type ConfigLoaded struct {
	Config config.Config
	Err    error
}

// SilentLoginComplete carries the result of a stored-token reuse attempt for
// the active profile.
type SilentLoginComplete struct {
	Token *twitchapi.UserToken
	Err   error
}

// ProfileSwitchSilentLoginComplete is the silent-login result for an explicit
// profile switch, keeping the target profile name attached.
type ProfileSwitchSilentLoginComplete struct {
	Token       *twitchapi.UserToken
	Err         error
	ProfileName string
}

// AuthAwaitingDeviceActivation prompts the user to authorize at URI with the
// displayed code. Emitted once, as soon as the device flow has a code.
type AuthAwaitingDeviceActivation struct {
	URI      string
	UserCode string
}

// AuthSuccess terminates an auth flow with a validated token.
type AuthSuccess struct {
	Token *twitchapi.UserToken
}

// AuthError terminates an auth flow with a human-readable reason.
type AuthError struct {
	Reason string
}

// AuthCancel is the user abandoning an in-flight auth flow.
type AuthCancel struct{}

// AuthFlowStartFailed reports that an auth flow could not even begin
// (e.g. callback port already bound by another instance).
type AuthFlowStartFailed struct {
	Reason string
}

// ChatNewMessage is one decoded inbound chat message.
type ChatNewMessage struct {
	Message chat.Message
}

// ChatMessageSent reports a completed outbound send.
type ChatMessageSent struct{}

// ChatMessageSendError reports a failed outbound send.
type ChatMessageSendError struct {
	Reason string
}

// ChatEventSubError reports a degraded or lost realtime connection. The
// session stays live; chat simply stops updating.
type ChatEventSubError struct {
	Reason string
}

// GlobalEmotesLoaded carries the global emote fetch result.
type GlobalEmotesLoaded struct {
	Emotes []twitchapi.Emote
	Err    error
}

func (ConfigLoaded) appEvent()                     {}
func (SilentLoginComplete) appEvent()              {}
func (ProfileSwitchSilentLoginComplete) appEvent() {}
func (AuthAwaitingDeviceActivation) appEvent()     {}
func (AuthSuccess) appEvent()                      {}
func (AuthError) appEvent()                        {}
func (AuthCancel) appEvent()                       {}
func (AuthFlowStartFailed) appEvent()              {}
func (ChatNewMessage) appEvent()                   {}
func (ChatMessageSent) appEvent()                  {}
func (ChatMessageSendError) appEvent()             {}
func (ChatEventSubError) appEvent()                {}
func (GlobalEmotesLoaded) appEvent()               {}
