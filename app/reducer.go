package app

import (
	"log/slog"

	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/events"
	"github.com/onnwee/chat-tender/twitchapi"
)

// Runner spawns the background work the reducer schedules. Every method
// returns immediately; outcomes come back as bus events. The production
// implementation is Tasks; tests substitute a recorder.
type Runner interface {
	LoadConfig()
	SilentLogin(cfg config.Config)
	SilentLoginForProfile(cfg config.Config, profileName string)
	BrowserLogin(cfg config.Config, profileName string) *Task
	DeviceLogin(cfg config.Config, profileName string) *Task
	ValidatePastedToken(cfg config.Config, raw string)
	PersistSession(profileName string, token *twitchapi.UserToken, cfg config.Config)
	FetchGlobalEmotes(cfg config.Config, token *twitchapi.UserToken)
	JoinChannel(token *twitchapi.UserToken, channel string) *Task
	SendChat(client *chat.Client, channel, senderID, message string)
	SendAnnouncement(client *chat.Client, channel, senderID, message string, color twitchapi.AnnouncementColor)
}

// App is the single owner of AppState and Config. The presentation shell
// reads State between ticks and calls the intent methods; nothing else
// mutates either field.
type App struct {
	State  AppState
	Config config.Config
	Bus    *events.Bus

	runner Runner
}

// New builds an app in the Startup state.
func New(bus *events.Bus, runner Runner) *App {
	return &App{
		State:  &Startup{},
		Config: config.Default(),
		Bus:    bus,
		runner: runner,
	}
}

// Tick runs once per redraw: dispatch the bootstrap task if still pending,
// then drain every queued event through the reducer. It never blocks.
func (a *App) Tick() {
	if st, ok := a.State.(*Startup); ok && !st.TaskSpawned {
		st.TaskSpawned = true
		a.runner.LoadConfig()
	}
	for {
		ev, ok := a.Bus.Poll()
		if !ok {
			return
		}
		a.Reduce(ev)
	}
}

// Reduce applies one event as a state transition. It is total: any
// (state, event) pair without an explicit case below is ignored. The only
// side effects are scheduling background work through the runner.
func (a *App) Reduce(event events.AppEvent) {
	switch ev := event.(type) {
	case events.ConfigLoaded:
		a.reduceConfigLoaded(ev)
	case events.SilentLoginComplete:
		a.reduceSilentLogin(ev)
	case events.ProfileSwitchSilentLoginComplete:
		a.reduceProfileSwitch(ev)
	case events.AuthAwaitingDeviceActivation:
		if st, ok := a.State.(*Authenticating); ok {
			st.StatusMessage = "Waiting for device authorization"
			st.DeviceFlow = &DeviceFlowInfo{URI: ev.URI, UserCode: ev.UserCode}
		}
	case events.AuthSuccess:
		switch a.State.(type) {
		case *Authenticating, *WaitingForToken, *RequestingInteractiveLogin:
			a.completeLogin(ev.Token)
		}
	case events.AuthError:
		a.reduceAuthError(ev)
	case events.AuthCancel:
		switch st := a.State.(type) {
		case *Authenticating:
			st.FlowTask.Cancel()
			a.loginFallback("")
		case *WaitingForToken, *RequestingInteractiveLogin:
			a.loginFallback("")
		}
	case events.AuthFlowStartFailed:
		switch a.State.(type) {
		case *Authenticating, *RequestingInteractiveLogin:
			a.loginFallback(ev.Reason)
		}
	case events.ChatNewMessage:
		if st, ok := a.State.(*LoggedIn); ok {
			appendMessage(st, ev.Message)
		}
	case events.ChatMessageSent:
		if st, ok := a.State.(*LoggedIn); ok {
			st.SendInProgress = false
			st.MessageToSend = ""
		}
	case events.ChatMessageSendError:
		if st, ok := a.State.(*LoggedIn); ok {
			st.SendInProgress = false
			st.LastError = ev.Reason
		}
	case events.ChatEventSubError:
		// Connection loss degrades the session, it does not end it.
		if st, ok := a.State.(*LoggedIn); ok {
			st.LastError = ev.Reason
		}
	case events.GlobalEmotesLoaded:
		if ev.Err != nil {
			slog.Warn("global emote fetch failed", slog.Any("err", ev.Err))
			return
		}
		if st, ok := a.State.(*LoggedIn); ok {
			st.GlobalEmotes = ev.Emotes
		}
	}
}

func (a *App) reduceConfigLoaded(ev events.ConfigLoaded) {
	if _, ok := a.State.(*Startup); !ok {
		return
	}
	a.Config = ev.Config
	if ev.Err != nil {
		slog.Warn("config load failed", slog.Any("err", ev.Err))
		a.State = &FirstTimeSetup{Err: ev.Err.Error()}
		return
	}
	a.State = &Authenticating{StatusMessage: "Restoring session"}
	a.runner.SilentLogin(a.Config)
}

func (a *App) reduceSilentLogin(ev events.SilentLoginComplete) {
	if _, ok := a.State.(*Authenticating); !ok {
		return
	}
	if ev.Err != nil {
		slog.Info("silent login unavailable", slog.Any("err", ev.Err))
		a.loginFallback("")
		return
	}
	a.completeLogin(ev.Token)
}

func (a *App) reduceProfileSwitch(ev events.ProfileSwitchSilentLoginComplete) {
	if _, ok := a.State.(*Authenticating); !ok {
		return
	}
	if ev.Err != nil {
		a.State = &ProfileSelection{Err: ev.Err.Error()}
		return
	}
	a.Config.ActiveProfileName = ev.ProfileName
	a.completeLogin(ev.Token)
}

func (a *App) reduceAuthError(ev events.AuthError) {
	switch st := a.State.(type) {
	case *WaitingForToken:
		st.Err = ev.Reason
	case *Authenticating, *RequestingInteractiveLogin:
		a.State = &FirstTimeSetup{
			ClientIDInput:     a.Config.ClientID,
			ClientSecretInput: a.Config.ClientSecret,
			ProfileNameInput:  a.Config.ActiveProfileName,
			Err:               ev.Reason,
		}
	}
}

// completeLogin is the shared successful-login path: attach or create the
// profile, persist the session, and enter LoggedIn with fresh session fields.
func (a *App) completeLogin(token *twitchapi.UserToken) {
	if prev, ok := a.State.(*LoggedIn); ok {
		prev.EventSubTask.Cancel()
	}

	name := a.Config.ActiveProfileName
	if name == "" {
		name = token.Login
	}
	a.Config.UpsertProfile(config.Profile{Name: name, TwitchUserID: token.UserID})
	a.Config.ActiveProfileName = name
	a.runner.PersistSession(name, token, a.Config)

	a.State = &LoggedIn{
		Token:      token,
		UserID:     token.UserID,
		UserLogin:  token.Login,
		Users:      make(map[chat.User]struct{}),
		ChatClient: chat.NewClient(token),
	}
	slog.Info("logged in", slog.String("login", token.Login), slog.String("profile", name))

	if a.Config.ClientID != "" {
		a.runner.FetchGlobalEmotes(a.Config, token)
	}
}

// loginFallback returns to the manual-login entry point: profile selection
// when saved profiles exist, first-time setup otherwise.
func (a *App) loginFallback(reason string) {
	if len(a.Config.Profiles) > 0 {
		a.State = &ProfileSelection{Err: reason}
		return
	}
	a.State = &FirstTimeSetup{
		ClientIDInput:     a.Config.ClientID,
		ClientSecretInput: a.Config.ClientSecret,
		ProfileNameInput:  a.Config.ActiveProfileName,
		Err:               reason,
	}
}

func appendMessage(st *LoggedIn, m chat.Message) {
	m.TrimTrailingWhitespace()
	st.Users[chat.UserFor(m)] = struct{}{}
	st.ChatMessages = append(st.ChatMessages, m)
	if over := len(st.ChatMessages) - MaxChatMessages; over > 0 {
		st.ChatMessages = st.ChatMessages[over:]
	}
}
