// Package app owns the session state machine. The App holds the single
// authoritative AppState and the loaded Config; every change to either goes
// through Reduce, driven by events polled off the bus once per UI tick.
// Background work never touches state directly.
package app

import (
	"context"

	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/twitchapi"
)

// MaxChatMessages bounds the in-memory scrollback; the oldest message is
// evicted when a new one would exceed it.
const MaxChatMessages = 200

// AppState is the closed union of lifecycle states. Exactly one value is
// active at a time and only the reducer replaces it.
type AppState interface {
	appState()
}

// Startup is the initial state. TaskSpawned keeps the per-tick dispatch from
// launching the config load twice.
type Startup struct {
	TaskSpawned bool
}

// FirstTimeSetup collects app credentials and a profile name when no usable
// configuration exists yet. Inputs survive a failed attempt as defaults.
type FirstTimeSetup struct {
	ClientIDInput     string
	ClientSecretInput string
	ProfileNameInput  string
	Err               string
}

// ProfileSelection lets the user pick a saved profile or start a fresh login.
type ProfileSelection struct {
	Err string
}

// RequestingInteractiveLogin is the strategy chooser for one profile:
// browser, device code, or pasted token.
type RequestingInteractiveLogin struct {
	ProfileName string
}

// WaitingForToken collects a manually pasted access token.
type WaitingForToken struct {
	ProfileName string
	TokenInput  string
	Err         string
}

// DeviceFlowInfo is what the user needs to complete a device-code login
// elsewhere.
type DeviceFlowInfo struct {
	URI      string
	UserCode string
}

// Authenticating is active while a login flow runs in the background.
// FlowTask cancels the flow when the user backs out.
type Authenticating struct {
	StatusMessage string
	DeviceFlow    *DeviceFlowInfo
	FlowTask      *Task
}

// LoggedIn is the live session. EventSubTask is the handle of the current
// realtime connection; it is cancelled before a replacement is installed.
type LoggedIn struct {
	Token          *twitchapi.UserToken
	UserID         string
	UserLogin      string
	ChannelToJoin  string
	CurrentChannel string
	MessageToSend  string
	ChatMessages   []chat.Message
	Users          map[chat.User]struct{}
	GlobalEmotes   []twitchapi.Emote
	ChatClient     *chat.Client
	SendInProgress bool
	LastError      string
	EventSubTask   *Task
}

func (*Startup) appState()                    {}
func (*FirstTimeSetup) appState()             {}
func (*ProfileSelection) appState()           {}
func (*RequestingInteractiveLogin) appState() {}
func (*WaitingForToken) appState()            {}
func (*Authenticating) appState()             {}
func (*LoggedIn) appState()                   {}

// Task is a handle to one cancellable background task. Cancel is idempotent
// and safe on a nil handle.
type Task struct {
	cancel context.CancelFunc
}

// NewTask wraps a cancel function in a task handle.
func NewTask(cancel context.CancelFunc) *Task {
	return &Task{cancel: cancel}
}

// Cancel stops the task. The task publishes nothing after cancellation.
func (t *Task) Cancel() {
	if t != nil && t.cancel != nil {
		t.cancel()
	}
}
