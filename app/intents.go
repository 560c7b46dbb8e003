package app

import (
	"strings"

	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/events"
	"github.com/onnwee/chat-tender/twitchapi"
)

// User intents. The presentation shell calls these on the same goroutine that
// calls Tick, so they may mutate state directly. Each is a no-op when the
// current state does not accept it.

// SubmitSetup commits the first-time setup form and moves to the login
// strategy chooser. The entered profile name is staged as the active profile;
// the profile itself is created only after a successful login.
func (a *App) SubmitSetup() {
	st, ok := a.State.(*FirstTimeSetup)
	if !ok {
		return
	}
	clientID := strings.TrimSpace(st.ClientIDInput)
	if clientID == "" {
		st.Err = "client id is required"
		return
	}
	profile := strings.TrimSpace(st.ProfileNameInput)
	if profile == "" {
		st.Err = "profile name is required"
		return
	}
	a.Config.ClientID = clientID
	a.Config.ClientSecret = strings.TrimSpace(st.ClientSecretInput)
	a.Config.ActiveProfileName = profile
	a.State = &RequestingInteractiveLogin{ProfileName: profile}
}

// SwitchProfile starts a silent login for a saved profile. Valid from profile
// selection or from an active session (profile switch).
func (a *App) SwitchProfile(name string) {
	if a.Config.FindProfile(name) == nil {
		return
	}
	switch st := a.State.(type) {
	case *LoggedIn:
		st.EventSubTask.Cancel()
	case *ProfileSelection:
	default:
		return
	}
	a.State = &Authenticating{StatusMessage: "Switching profile"}
	a.runner.SilentLoginForProfile(a.Config, name)
}

// ChooseLogin opens the strategy chooser for a saved profile whose stored
// token is unusable.
func (a *App) ChooseLogin(name string) {
	if _, ok := a.State.(*ProfileSelection); !ok {
		return
	}
	if a.Config.FindProfile(name) == nil {
		return
	}
	a.Config.ActiveProfileName = name
	a.State = &RequestingInteractiveLogin{ProfileName: name}
}

// StartBrowserLogin launches the browser/local-callback flow.
func (a *App) StartBrowserLogin() {
	st, ok := a.State.(*RequestingInteractiveLogin)
	if !ok {
		return
	}
	task := a.runner.BrowserLogin(a.Config, st.ProfileName)
	a.State = &Authenticating{
		StatusMessage: "Complete the login in your browser",
		FlowTask:      task,
	}
}

// StartDeviceLogin launches the device-code flow. The activation URI and code
// arrive as an AuthAwaitingDeviceActivation event.
func (a *App) StartDeviceLogin() {
	st, ok := a.State.(*RequestingInteractiveLogin)
	if !ok {
		return
	}
	task := a.runner.DeviceLogin(a.Config, st.ProfileName)
	a.State = &Authenticating{
		StatusMessage: "Requesting device code",
		FlowTask:      task,
	}
}

// UsePastedToken switches to manual token entry.
func (a *App) UsePastedToken() {
	st, ok := a.State.(*RequestingInteractiveLogin)
	if !ok {
		return
	}
	a.State = &WaitingForToken{ProfileName: st.ProfileName}
}

// SubmitPastedToken validates the entered token in the background. The state
// stays WaitingForToken so a validation error renders inline.
func (a *App) SubmitPastedToken() {
	st, ok := a.State.(*WaitingForToken)
	if !ok {
		return
	}
	raw := strings.TrimSpace(st.TokenInput)
	if raw == "" {
		st.Err = "paste a token first"
		return
	}
	st.Err = ""
	a.runner.ValidatePastedToken(a.Config, raw)
}

// CancelAuth abandons the in-flight login flow.
func (a *App) CancelAuth() {
	a.Reduce(events.AuthCancel{})
}

// JoinChannel tears down the previous realtime connection and starts a fresh
// one for the named channel. The old task is always cancelled before the new
// handle is recorded.
func (a *App) JoinChannel(channel string) {
	st, ok := a.State.(*LoggedIn)
	if !ok {
		return
	}
	channel = strings.TrimSpace(strings.TrimPrefix(channel, "#"))
	if channel == "" {
		return
	}
	st.EventSubTask.Cancel()
	st.EventSubTask = a.runner.JoinChannel(st.Token, channel)
	st.CurrentChannel = channel
	st.ChannelToJoin = ""
	st.ChatMessages = nil
	st.Users = make(map[chat.User]struct{})
	st.LastError = ""
}

// SendCurrentMessage sends the composed message to the current channel.
func (a *App) SendCurrentMessage() {
	st, msg, ok := a.sendable()
	if !ok {
		return
	}
	st.SendInProgress = true
	a.runner.SendChat(st.ChatClient, st.CurrentChannel, st.UserID, msg)
}

// SendCurrentAnnouncement sends the composed message as an announcement.
// Requires moderator privileges in the channel.
func (a *App) SendCurrentAnnouncement(color twitchapi.AnnouncementColor) {
	st, msg, ok := a.sendable()
	if !ok {
		return
	}
	st.SendInProgress = true
	a.runner.SendAnnouncement(st.ChatClient, st.CurrentChannel, st.UserID, msg, color)
}

func (a *App) sendable() (*LoggedIn, string, bool) {
	st, ok := a.State.(*LoggedIn)
	if !ok || st.SendInProgress {
		return nil, "", false
	}
	msg := strings.TrimSpace(st.MessageToSend)
	if msg == "" {
		return nil, "", false
	}
	if st.CurrentChannel == "" {
		st.LastError = "join a channel first"
		return nil, "", false
	}
	return st, msg, true
}
