package app

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/events"
	"github.com/onnwee/chat-tender/twitchapi"
)

// fakeRunner records every scheduling call the reducer makes.
type fakeRunner struct {
	configLoads   int
	silentLogins  int
	profileLogins []string
	browserLogins []string
	deviceLogins  []string
	pastedTokens  []string
	persists      []config.Config
	emoteFetches  int
	joins         []string
	sends         []string
	announces     []string
}

func (r *fakeRunner) LoadConfig()                      { r.configLoads++ }
func (r *fakeRunner) SilentLogin(config.Config)        { r.silentLogins++ }
func (r *fakeRunner) SilentLoginForProfile(_ config.Config, name string) {
	r.profileLogins = append(r.profileLogins, name)
}
func (r *fakeRunner) BrowserLogin(_ config.Config, name string) *Task {
	r.browserLogins = append(r.browserLogins, name)
	return NewTask(func() {})
}
func (r *fakeRunner) DeviceLogin(_ config.Config, name string) *Task {
	r.deviceLogins = append(r.deviceLogins, name)
	return NewTask(func() {})
}
func (r *fakeRunner) ValidatePastedToken(_ config.Config, raw string) {
	r.pastedTokens = append(r.pastedTokens, raw)
}
func (r *fakeRunner) PersistSession(_ string, _ *twitchapi.UserToken, cfg config.Config) {
	r.persists = append(r.persists, cfg)
}
func (r *fakeRunner) FetchGlobalEmotes(config.Config, *twitchapi.UserToken) { r.emoteFetches++ }
func (r *fakeRunner) JoinChannel(_ *twitchapi.UserToken, channel string) *Task {
	r.joins = append(r.joins, channel)
	return NewTask(func() {})
}
func (r *fakeRunner) SendChat(_ *chat.Client, _, _, message string) {
	r.sends = append(r.sends, message)
}
func (r *fakeRunner) SendAnnouncement(_ *chat.Client, _, _, message string, _ twitchapi.AnnouncementColor) {
	r.announces = append(r.announces, message)
}

func newTestApp() (*App, *fakeRunner) {
	r := &fakeRunner{}
	return New(events.NewBus(16), r), r
}

func aliceToken() *twitchapi.UserToken {
	return &twitchapi.UserToken{AccessToken: "tok", ClientID: "cid", UserID: "1", Login: "alice"}
}

func loggedInApp(t *testing.T) (*App, *fakeRunner, *LoggedIn) {
	t.Helper()
	a, r := newTestApp()
	a.Config.ClientID = "cid"
	a.State = &Authenticating{}
	a.Reduce(events.SilentLoginComplete{Token: aliceToken()})
	st, ok := a.State.(*LoggedIn)
	if !ok {
		t.Fatalf("state after login = %T", a.State)
	}
	return a, r, st
}

func textMsg(sender, text string) chat.Message {
	return chat.Message{
		ID:         text,
		SenderName: sender,
		Fragments:  []chat.Fragment{chat.TextFragment(text)},
		Timestamp:  time.Unix(0, 0),
	}
}

func TestTickDispatchesBootstrapOnce(t *testing.T) {
	a, r := newTestApp()
	a.Tick()
	a.Tick()
	if r.configLoads != 1 {
		t.Errorf("config loads = %d, want 1", r.configLoads)
	}
	if st, ok := a.State.(*Startup); !ok || !st.TaskSpawned {
		t.Errorf("state = %#v", a.State)
	}
}

func TestUnhandledPairsLeaveStateUnchanged(t *testing.T) {
	a, r := newTestApp()
	a.State = &Startup{TaskSpawned: true}
	before := &Startup{TaskSpawned: true}

	for _, ev := range []events.AppEvent{
		events.SilentLoginComplete{Token: aliceToken()},
		events.AuthSuccess{Token: aliceToken()},
		events.AuthAwaitingDeviceActivation{URI: "u", UserCode: "c"},
		events.AuthError{Reason: "x"},
		events.AuthCancel{},
		events.ChatNewMessage{Message: textMsg("bob", "hi")},
		events.ChatMessageSent{},
		events.ChatMessageSendError{Reason: "x"},
		events.ChatEventSubError{Reason: "x"},
		events.GlobalEmotesLoaded{Err: errors.New("x")},
	} {
		a.Reduce(ev)
		if !reflect.DeepEqual(a.State, before) {
			t.Fatalf("event %T changed state to %#v", ev, a.State)
		}
	}
	if r.silentLogins != 0 || r.emoteFetches != 0 || len(r.persists) != 0 {
		t.Errorf("ignored events scheduled work: %+v", r)
	}
}

func TestConfigLoadErrorGoesToSetup(t *testing.T) {
	a, _ := newTestApp()
	a.Reduce(events.ConfigLoaded{Config: config.Default(), Err: errors.New("parse config: boom")})
	st, ok := a.State.(*FirstTimeSetup)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}
	if st.Err == "" {
		t.Error("setup screen carries no error")
	}
}

func TestFirstRunWithoutProfilesFallsBackToSetup(t *testing.T) {
	a, r := newTestApp()
	cfg := config.Default()
	cfg.ClientID = "abc"
	a.Reduce(events.ConfigLoaded{Config: cfg})
	if _, ok := a.State.(*Authenticating); !ok {
		t.Fatalf("state after config load = %T", a.State)
	}
	if r.silentLogins != 1 {
		t.Fatalf("silent logins = %d, want 1", r.silentLogins)
	}

	a.Reduce(events.SilentLoginComplete{Err: errors.New("no active profile")})
	st, ok := a.State.(*FirstTimeSetup)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}
	if st.ClientIDInput != "abc" {
		t.Errorf("client id input = %q, want prefilled %q", st.ClientIDInput, "abc")
	}
}

func TestSilentLoginCreatesProfile(t *testing.T) {
	a, r := newTestApp()
	a.Config.ClientID = "abc"
	a.State = &Authenticating{}
	a.Reduce(events.SilentLoginComplete{Token: aliceToken()})

	st, ok := a.State.(*LoggedIn)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}
	if st.UserLogin != "alice" || st.UserID != "1" {
		t.Errorf("session identity = %q/%q", st.UserLogin, st.UserID)
	}
	if st.ChatClient == nil || st.Users == nil {
		t.Error("session fields not initialized")
	}
	p := a.Config.FindProfile("alice")
	if p == nil || p.TwitchUserID != "1" {
		t.Fatalf("profile = %+v", p)
	}
	if a.Config.ActiveProfileName != "alice" {
		t.Errorf("active profile = %q", a.Config.ActiveProfileName)
	}
	if len(r.persists) != 1 {
		t.Errorf("persist calls = %d, want 1", len(r.persists))
	}
	if r.emoteFetches != 1 {
		t.Errorf("emote fetches = %d, want 1", r.emoteFetches)
	}
}

func TestChatMessagesCapFIFO(t *testing.T) {
	a, _, st := loggedInApp(t)
	for i := 0; i < MaxChatMessages+5; i++ {
		a.Reduce(events.ChatNewMessage{Message: textMsg("bob", fmt.Sprintf("m%03d", i))})
	}
	if len(st.ChatMessages) != MaxChatMessages {
		t.Fatalf("len = %d, want %d", len(st.ChatMessages), MaxChatMessages)
	}
	if got := st.ChatMessages[0].Fragments[0].Text; got != "m005" {
		t.Errorf("oldest surviving = %q, want m005", got)
	}
	if got := st.ChatMessages[len(st.ChatMessages)-1].Fragments[0].Text; got != "m204" {
		t.Errorf("newest = %q, want m204", got)
	}
}

func TestNewMessageTrimsAndUpsertsUser(t *testing.T) {
	a, _, st := loggedInApp(t)
	a.Reduce(events.ChatNewMessage{Message: textMsg("bob", "hello   ")})
	a.Reduce(events.ChatNewMessage{Message: textMsg("bob", "again")})

	if got := st.ChatMessages[0].Fragments[0].Text; got != "hello" {
		t.Errorf("stored text = %q, want trimmed", got)
	}
	if len(st.Users) != 1 {
		t.Errorf("users = %d, want 1 (same sender, same color)", len(st.Users))
	}
}

func TestGlobalEmotesErrIsIdempotent(t *testing.T) {
	a, _, st := loggedInApp(t)
	st.GlobalEmotes = []twitchapi.Emote{{ID: "25", Name: "Kappa"}}
	a.Reduce(events.GlobalEmotesLoaded{Err: errors.New("rate limited")})
	if len(st.GlobalEmotes) != 1 || st.GlobalEmotes[0].Name != "Kappa" {
		t.Errorf("emotes mutated: %+v", st.GlobalEmotes)
	}

	a.Reduce(events.GlobalEmotesLoaded{Emotes: []twitchapi.Emote{{ID: "1"}, {ID: "2"}}})
	if len(st.GlobalEmotes) != 2 {
		t.Errorf("successful load not applied: %+v", st.GlobalEmotes)
	}
}

func TestEventSubErrorsKeepChannel(t *testing.T) {
	a, _, st := loggedInApp(t)
	st.CurrentChannel = "somechannel"
	a.Reduce(events.ChatEventSubError{Reason: "first"})
	a.Reduce(events.ChatEventSubError{Reason: "second"})
	if st.CurrentChannel != "somechannel" {
		t.Errorf("current channel = %q, must survive connection errors", st.CurrentChannel)
	}
	if st.LastError != "second" {
		t.Errorf("last error = %q, want latest", st.LastError)
	}
	if _, ok := a.State.(*LoggedIn); !ok {
		t.Errorf("state = %T, connection loss must not log out", a.State)
	}
}

func TestJoinChannelCancelsPriorTask(t *testing.T) {
	a, r, st := loggedInApp(t)
	cancelled := false
	st.EventSubTask = NewTask(func() { cancelled = true })
	old := st.EventSubTask

	a.JoinChannel("#newchannel")
	if !cancelled {
		t.Error("prior eventsub task not cancelled")
	}
	if st.EventSubTask == old || st.EventSubTask == nil {
		t.Error("new task handle not installed")
	}
	if got := r.joins; len(got) != 1 || got[0] != "newchannel" {
		t.Errorf("joins = %v", got)
	}
	if st.CurrentChannel != "newchannel" || st.LastError != "" || len(st.ChatMessages) != 0 {
		t.Errorf("session not reset for new channel: %+v", st)
	}
}

func TestSendLifecycle(t *testing.T) {
	a, r, st := loggedInApp(t)
	st.CurrentChannel = "chan"
	st.MessageToSend = "hi there"

	a.SendCurrentMessage()
	if !st.SendInProgress {
		t.Fatal("send not marked in progress")
	}
	if len(r.sends) != 1 || r.sends[0] != "hi there" {
		t.Fatalf("sends = %v", r.sends)
	}

	// A second submit while in flight is ignored.
	a.SendCurrentMessage()
	if len(r.sends) != 1 {
		t.Errorf("duplicate send scheduled: %v", r.sends)
	}

	a.Reduce(events.ChatMessageSent{})
	if st.SendInProgress || st.MessageToSend != "" {
		t.Errorf("sent event did not clear send state: %+v", st)
	}

	st.MessageToSend = "again"
	a.SendCurrentMessage()
	a.Reduce(events.ChatMessageSendError{Reason: "rejected"})
	if st.SendInProgress {
		t.Error("send error did not re-enable sending")
	}
	if st.LastError != "rejected" {
		t.Errorf("last error = %q", st.LastError)
	}
}

func TestSendWithoutChannelIsRejected(t *testing.T) {
	a, r, st := loggedInApp(t)
	st.MessageToSend = "hi"
	a.SendCurrentMessage()
	if len(r.sends) != 0 {
		t.Errorf("sends = %v, want none without a channel", r.sends)
	}
	if st.LastError == "" {
		t.Error("no inline error for missing channel")
	}
}

func TestAuthErrorPreservesSetupInputs(t *testing.T) {
	a, _ := newTestApp()
	a.Config.ClientID = "abc"
	a.Config.ClientSecret = "sec"
	a.Config.ActiveProfileName = "main"
	a.State = &Authenticating{}

	a.Reduce(events.AuthError{Reason: "denied"})
	st, ok := a.State.(*FirstTimeSetup)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}
	if st.ClientIDInput != "abc" || st.ClientSecretInput != "sec" || st.ProfileNameInput != "main" {
		t.Errorf("inputs not preserved: %+v", st)
	}
	if st.Err != "denied" {
		t.Errorf("err = %q", st.Err)
	}
}

func TestSetupThroughDeviceFlow(t *testing.T) {
	a, r := newTestApp()
	a.State = &FirstTimeSetup{
		ClientIDInput:    " abc ",
		ProfileNameInput: "main",
	}
	a.SubmitSetup()
	req, ok := a.State.(*RequestingInteractiveLogin)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}
	if req.ProfileName != "main" || a.Config.ClientID != "abc" {
		t.Errorf("staged setup = %+v, client id %q", req, a.Config.ClientID)
	}

	a.StartDeviceLogin()
	auth, ok := a.State.(*Authenticating)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}
	if len(r.deviceLogins) != 1 || r.deviceLogins[0] != "main" {
		t.Fatalf("device logins = %v", r.deviceLogins)
	}

	a.Reduce(events.AuthAwaitingDeviceActivation{URI: "https://example.com/activate", UserCode: "ABCD-1234"})
	if auth.DeviceFlow == nil || auth.DeviceFlow.UserCode != "ABCD-1234" {
		t.Errorf("device flow info = %+v", auth.DeviceFlow)
	}

	// The profile name entered at setup wins over the platform login.
	a.Reduce(events.AuthSuccess{Token: aliceToken()})
	if st, ok := a.State.(*LoggedIn); !ok || st.UserLogin != "alice" {
		t.Fatalf("state = %#v", a.State)
	}
	if a.Config.FindProfile("main") == nil || a.Config.ActiveProfileName != "main" {
		t.Errorf("profiles = %+v, active %q", a.Config.Profiles, a.Config.ActiveProfileName)
	}
}

func TestSubmitSetupValidatesInputs(t *testing.T) {
	a, _ := newTestApp()
	st := &FirstTimeSetup{ProfileNameInput: "main"}
	a.State = st
	a.SubmitSetup()
	if _, still := a.State.(*FirstTimeSetup); !still || st.Err == "" {
		t.Errorf("empty client id accepted: %#v", a.State)
	}
}

func TestPastedTokenErrorRendersInline(t *testing.T) {
	a, r := newTestApp()
	a.State = &RequestingInteractiveLogin{ProfileName: "main"}
	a.UsePastedToken()
	st, ok := a.State.(*WaitingForToken)
	if !ok {
		t.Fatalf("state = %T", a.State)
	}

	st.TokenInput = "oauth:abc"
	a.SubmitPastedToken()
	if len(r.pastedTokens) != 1 {
		t.Fatalf("pasted tokens = %v", r.pastedTokens)
	}

	a.Reduce(events.AuthError{Reason: "token invalid or expired"})
	if a.State != AppState(st) {
		t.Fatalf("validation error left token entry: %T", a.State)
	}
	if st.Err == "" {
		t.Error("no inline error on the token screen")
	}
}

func TestCancelAuthFallsBack(t *testing.T) {
	a, _ := newTestApp()
	a.Config.Profiles = []config.Profile{{Name: "main"}}
	cancelled := false
	a.State = &Authenticating{FlowTask: NewTask(func() { cancelled = true })}

	a.CancelAuth()
	if !cancelled {
		t.Error("flow task not cancelled")
	}
	if _, ok := a.State.(*ProfileSelection); !ok {
		t.Errorf("state = %T, want ProfileSelection with saved profiles", a.State)
	}
}

func TestSwitchProfileCancelsSessionTask(t *testing.T) {
	a, r, st := loggedInApp(t)
	a.Config.Profiles = append(a.Config.Profiles, config.Profile{Name: "other", TwitchUserID: "2"})
	cancelled := false
	st.EventSubTask = NewTask(func() { cancelled = true })

	a.SwitchProfile("other")
	if !cancelled {
		t.Error("eventsub task survived profile switch")
	}
	if _, ok := a.State.(*Authenticating); !ok {
		t.Fatalf("state = %T", a.State)
	}
	if len(r.profileLogins) != 1 || r.profileLogins[0] != "other" {
		t.Fatalf("profile logins = %v", r.profileLogins)
	}

	a.Reduce(events.ProfileSwitchSilentLoginComplete{
		Token:       &twitchapi.UserToken{AccessToken: "t2", ClientID: "cid", UserID: "2", Login: "bob"},
		ProfileName: "other",
	})
	if st2, ok := a.State.(*LoggedIn); !ok || st2.UserLogin != "bob" {
		t.Fatalf("state = %#v", a.State)
	}
	if a.Config.ActiveProfileName != "other" {
		t.Errorf("active profile = %q", a.Config.ActiveProfileName)
	}
}
