// Command chat-tender is a terminal Twitch chat client. It:
//   - Loads the layered TOML configuration and initializes structured logging.
//   - Restores the last session via silent login, falling back to the
//     first-time setup or profile selection screens.
//   - Runs the session reducer loop: background tasks (auth flows, the
//     EventSub connection, outbound sends) publish events onto one bounded
//     bus, and the reducer is their single consumer.
//   - Optionally exposes /healthz and /metrics when METRICS_ADDR is set.
//
// Shutdown is graceful on SIGINT/SIGTERM or the /quit command.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chat-tender/app"
	"github.com/onnwee/chat-tender/auth"
	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/events"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only)
	_ = godotenv.Load()

	setupLogging()

	shutdown, err := telemetry.InitTracing("chat-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	enc, err := auth.EncryptorFromEnv()
	if err != nil {
		slog.Error("bad ENCRYPTION_KEY", slog.Any("err", err))
		os.Exit(1)
	}

	configDir, err := config.Dir()
	if err != nil {
		slog.Error("resolve config dir", slog.Any("err", err))
		os.Exit(1)
	}

	bus := events.NewBus(events.DefaultCapacity)
	tasks := &app.Tasks{
		Bus:       bus,
		Auth:      auth.Client{ConfigDir: configDir, Encryptor: enc},
		ConfigDir: configDir,
	}
	a := app.New(bus, tasks)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go serveMetrics(addr)
	}

	lines := make(chan string)
	go readInput(ctx, lines)

	shell := &shell{app: a}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	fmt.Println("chat-tender — /help for commands")
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if shell.handle(line) {
				return
			}
		case <-ticker.C:
			a.Tick()
			shell.render()
		}
	}
}

func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("metrics server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("metrics server exited", slog.Any("err", err))
	}
}

func readInput(ctx context.Context, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

// shell maps terminal lines onto reducer intents and prints what changed
// since the previous tick. It runs entirely on the reducer goroutine.
type shell struct {
	app          *app.App
	printed      int
	state        string
	lastErr      string
	devicePrompt bool
}

// handle processes one input line; returns true on /quit.
func (s *shell) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if st, ok := s.app.State.(*app.LoggedIn); ok {
			st.MessageToSend = line
			s.app.SendCurrentMessage()
		} else if st, ok := s.app.State.(*app.WaitingForToken); ok {
			st.TokenInput = line
			s.app.SubmitPastedToken()
		}
		return false
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		s.printHelp()
	case "setup":
		// /setup <client_id> [client_secret] <profile>
		s.handleSetup(arg)
	case "profile":
		s.app.SwitchProfile(arg)
	case "login":
		s.handleLogin(arg)
	case "join":
		s.app.JoinChannel(arg)
	case "announce":
		if st, ok := s.app.State.(*app.LoggedIn); ok && arg != "" {
			st.MessageToSend = arg
			s.app.SendCurrentAnnouncement(twitchapi.ColorPrimary)
		}
	case "cancel":
		s.app.CancelAuth()
	default:
		fmt.Printf("unknown command /%s\n", cmd)
	}
	return false
}

func (s *shell) handleSetup(arg string) {
	st, ok := s.app.State.(*app.FirstTimeSetup)
	if !ok {
		fmt.Println("/setup is only available on the setup screen")
		return
	}
	fields := strings.Fields(arg)
	switch len(fields) {
	case 2:
		st.ClientIDInput, st.ProfileNameInput = fields[0], fields[1]
	case 3:
		st.ClientIDInput, st.ClientSecretInput, st.ProfileNameInput = fields[0], fields[1], fields[2]
	default:
		fmt.Println("usage: /setup <client_id> [client_secret] <profile>")
		return
	}
	s.app.SubmitSetup()
}

func (s *shell) handleLogin(arg string) {
	if _, ok := s.app.State.(*app.ProfileSelection); ok {
		name, method, _ := strings.Cut(arg, " ")
		s.app.ChooseLogin(name)
		arg = strings.TrimSpace(method)
	}
	switch arg {
	case "browser", "":
		s.app.StartBrowserLogin()
	case "device":
		s.app.StartDeviceLogin()
	case "token":
		s.app.UsePastedToken()
	default:
		fmt.Println("usage: /login [profile] browser|device|token")
	}
}

func (s *shell) printHelp() {
	fmt.Print(`commands:
  /setup <client_id> [client_secret] <profile>   first-time setup
  /login [profile] browser|device|token          start a login flow
  /profile <name>                                switch to a saved profile
  /join <channel>                                join a channel
  /announce <text>                               send an announcement
  /cancel                                        abandon the current login
  /quit                                          exit
anything else is sent as a chat message
`)
}

// render prints new chat messages and state transitions since the last tick.
func (s *shell) render() {
	name := fmt.Sprintf("%T", s.app.State)
	if name != s.state {
		s.state = name
		s.printed = 0
		s.lastErr = ""
		s.devicePrompt = false
		s.describeState()
	}
	if as, ok := s.app.State.(*app.Authenticating); ok && as.DeviceFlow != nil && !s.devicePrompt {
		s.devicePrompt = true
		fmt.Printf("-- visit %s and enter code %s\n", as.DeviceFlow.URI, as.DeviceFlow.UserCode)
	}
	st, ok := s.app.State.(*app.LoggedIn)
	if !ok {
		return
	}
	if st.LastError != "" && st.LastError != s.lastErr {
		s.lastErr = st.LastError
		fmt.Printf("!! %s\n", st.LastError)
	}
	if s.printed > len(st.ChatMessages) {
		s.printed = 0 // channel switch reset the scrollback
	}
	for _, m := range st.ChatMessages[s.printed:] {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.SenderName, renderFragments(m))
	}
	s.printed = len(st.ChatMessages)
}

func (s *shell) describeState() {
	switch st := s.app.State.(type) {
	case *app.FirstTimeSetup:
		fmt.Println("-- first-time setup; use /setup")
		if st.Err != "" {
			fmt.Printf("!! %s\n", st.Err)
		}
	case *app.ProfileSelection:
		var names []string
		for _, p := range s.app.Config.Profiles {
			names = append(names, p.Name)
		}
		fmt.Printf("-- profiles: %s; use /profile or /login\n", strings.Join(names, ", "))
		if st.Err != "" {
			fmt.Printf("!! %s\n", st.Err)
		}
	case *app.RequestingInteractiveLogin:
		fmt.Printf("-- login as %q: /login browser|device|token\n", st.ProfileName)
	case *app.WaitingForToken:
		fmt.Println("-- paste your access token")
	case *app.Authenticating:
		fmt.Printf("-- %s\n", st.StatusMessage)
	case *app.LoggedIn:
		fmt.Printf("-- logged in as %s; /join a channel\n", st.UserLogin)
	}
}

func renderFragments(m chat.Message) string {
	var b strings.Builder
	for _, f := range m.Fragments {
		if f.Emote != nil {
			b.WriteString(f.Emote.Name)
			continue
		}
		b.WriteString(f.Text)
	}
	return b.String()
}
