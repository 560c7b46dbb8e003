package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

const successPage = `<!DOCTYPE html>
<html><head><title>chat-tender</title></head>
<body><h1>Login complete</h1><p>You can close this tab and return to chat-tender.</p></body></html>`

// StartInteractiveLogin runs the browser-redirect flow: bind the loopback
// callback port, open the user's browser on the authorization URL, await
// exactly one redirect carrying the code and anti-forgery state, exchange the
// code and validate the result. The listener serves the one exchange and is
// torn down; it never accepts a second.
func (c *Client) StartInteractiveLogin(ctx context.Context, profileName string) (tok *twitchapi.UserToken, err error) {
	telemetry.AuthAttempts.Inc()
	ctx, span := telemetry.StartSpan(ctx, "auth", "browser-login", attribute.String("profile", profileName))
	defer func() {
		if err != nil {
			telemetry.AuthFailures.Inc()
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	addr := c.CallbackAddr
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	ln, lerr := net.Listen("tcp", addr)
	if lerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortInUse, lerr)
	}
	defer func() { _ = ln.Close() }()

	state, serr := randomState(24)
	if serr != nil {
		return nil, serr
	}
	redirectURI := fmt.Sprintf("http://%s/callback", ln.Addr().String())

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	var once sync.Once
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			got := r.URL.Query().Get("state")
			if got == "" && r.Method == http.MethodPost {
				_ = r.ParseForm()
				got = r.PostFormValue("state")
			}
			if got != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				errCh <- ErrStateMismatch
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" && r.Method == http.MethodPost {
				code = r.PostFormValue("code")
			}
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				errCh <- errors.New("redirect carried no authorization code")
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, successPage)
			codeCh <- code
		})
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	authURL, aerr := c.id().BuildAuthorizeURL(c.ClientID, redirectURI, strings.Join(c.scopes(), " "), state)
	if aerr != nil {
		return nil, aerr
	}
	if oerr := c.openBrowser(authURL); oerr != nil {
		slog.Warn("could not open browser automatically", slog.String("url", authURL), slog.Any("err", oerr))
	}

	timeout := c.LoginTimeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	select {
	case code := <-codeCh:
		res, xerr := c.id().ExchangeAuthCode(ctx, c.ClientID, c.ClientSecret, code, redirectURI)
		if xerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, xerr)
		}
		tok, err = c.userTokenFromValidated(ctx, res.AccessToken, res.RefreshToken, res.ExpiresIn)
		if err != nil {
			return nil, err
		}
		if err := c.SaveToken(profileName, tok); err != nil {
			return nil, err
		}
		return tok, nil
	case e := <-errCh:
		return nil, e
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: no browser callback after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) userTokenFromValidated(ctx context.Context, access, refresh string, expiresIn int) (*twitchapi.UserToken, error) {
	res, err := c.validate(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &twitchapi.UserToken{
		AccessToken:  access,
		RefreshToken: refresh,
		ClientID:     res.ClientID,
		UserID:       res.UserID,
		Login:        res.Login,
		ExpiresAt:    twitchapi.ComputeExpiry(expiresIn),
	}, nil
}

func (c *Client) openBrowser(target string) error {
	if c.OpenBrowser != nil {
		return c.OpenBrowser(target)
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32.exe", "url.dll,FileProtocolHandler", target)
	case "darwin":
		cmd = exec.Command("open", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}

func randomState(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
