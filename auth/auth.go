// Package auth owns the credential lifecycle: silent reuse of a stored
// token, interactive browser login through a single-use loopback listener,
// the device-code flow, and pasted-token validation. Every operation is
// independently cancellable and terminates in exactly one result; callers
// convert that result into a bus event.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

// DefaultScopes are requested on every acquisition strategy.
var DefaultScopes = []string{
	"chat:read",
	"chat:edit",
	"user:read:chat",
	"user:write:chat",
	"moderator:manage:announcements",
	"moderator:read:chatters",
	"user:read:emotes",
}

// twitchEndpoint covers all three grant URLs on id.twitch.tv.
var twitchEndpoint = oauth2.Endpoint{
	AuthURL:       "https://id.twitch.tv/oauth2/authorize",
	TokenURL:      "https://id.twitch.tv/oauth2/token",
	DeviceAuthURL: "https://id.twitch.tv/oauth2/device",
}

const (
	// DefaultCallbackAddr is the fixed loopback bind for the browser flow.
	DefaultCallbackAddr = "127.0.0.1:8914"
	// DefaultLoginTimeout bounds the browser flow wall clock.
	DefaultLoginTimeout = 180 * time.Second

	validateTimeout = 15 * time.Second
)

// Client runs the acquisition strategies. Zero-value fields fall back to
// production defaults; tests override ID, Endpoint, CallbackAddr and
// OpenBrowser.
type Client struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	ConfigDir    string

	ID              *twitchapi.IDClient
	Encryptor       *Encryptor
	Endpoint        oauth2.Endpoint
	CallbackAddr    string
	LoginTimeout    time.Duration
	ValidateTimeout time.Duration
	OpenBrowser     func(url string) error
	HTTPClient      *http.Client
}

func (c *Client) id() *twitchapi.IDClient {
	if c.ID != nil {
		return c.ID
	}
	return &twitchapi.IDClient{HTTPClient: c.HTTPClient}
}

func (c *Client) scopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return DefaultScopes
}

func (c *Client) endpoint() oauth2.Endpoint {
	if c.Endpoint.TokenURL != "" {
		return c.Endpoint
	}
	return twitchEndpoint
}

// validate checks a token against the identity endpoint. Every validate call
// is bounded so a stalled endpoint fails the flow instead of hanging it.
func (c *Client) validate(ctx context.Context, access string) (*twitchapi.ValidateResult, error) {
	timeout := c.ValidateTimeout
	if timeout <= 0 {
		timeout = validateTimeout
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.id().Validate(vctx, access)
}

// TrySilentLogin reuses the stored token for the active profile, refreshing
// it when validation fails and a refresh token exists. The possibly refreshed
// token is re-persisted on success.
func (c *Client) TrySilentLogin(ctx context.Context, cfg *config.Config) (*twitchapi.UserToken, error) {
	profile := cfg.ActiveProfile()
	if profile == nil {
		return nil, ErrNoActiveProfile
	}
	return c.SilentLoginForProfile(ctx, profile.Name)
}

// SilentLoginForProfile is TrySilentLogin for an explicit profile name,
// used when switching profiles.
func (c *Client) SilentLoginForProfile(ctx context.Context, profileName string) (tok *twitchapi.UserToken, err error) {
	telemetry.AuthAttempts.Inc()
	ctx, span := telemetry.StartSpan(ctx, "auth", "silent-login", attribute.String("profile", profileName))
	defer func() {
		if err != nil {
			telemetry.AuthFailures.Inc()
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	st, err := LoadStoredToken(c.ConfigDir, profileName, c.Encryptor)
	if err != nil {
		return nil, err
	}

	access := st.AccessToken
	refresh := ""
	if st.RefreshToken != nil {
		refresh = *st.RefreshToken
	}

	res, verr := c.validate(ctx, access)
	if verr != nil && refresh != "" {
		rr, rerr := c.id().Refresh(ctx, c.ClientID, c.ClientSecret, refresh)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, rerr)
		}
		access = rr.AccessToken
		if rr.RefreshToken != "" {
			refresh = rr.RefreshToken
		}
		if res, verr = c.validate(ctx, access); verr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, verr)
		}
	} else if verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, verr)
	}

	tok = &twitchapi.UserToken{
		AccessToken:  access,
		RefreshToken: refresh,
		ClientID:     res.ClientID,
		UserID:       res.UserID,
		Login:        res.Login,
		ExpiresAt:    twitchapi.ComputeExpiry(res.ExpiresIn),
	}
	if err := c.SaveToken(profileName, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// ValidatePastedToken validates a token string pasted by the user. A leading
// "oauth:" prefix (IRC convention) is tolerated. No refresh token is assumed.
func (c *Client) ValidatePastedToken(ctx context.Context, raw string) (tok *twitchapi.UserToken, err error) {
	telemetry.AuthAttempts.Inc()
	ctx, span := telemetry.StartSpan(ctx, "auth", "pasted-token")
	defer func() {
		if err != nil {
			telemetry.AuthFailures.Inc()
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	access := strings.TrimSpace(raw)
	access = strings.TrimPrefix(access, "oauth:")
	if access == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	res, verr := c.validate(ctx, access)
	if verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, verr)
	}
	return &twitchapi.UserToken{
		AccessToken: access,
		ClientID:    res.ClientID,
		UserID:      res.UserID,
		Login:       res.Login,
		ExpiresAt:   twitchapi.ComputeExpiry(res.ExpiresIn),
	}, nil
}

// SaveToken persists a token under the profile directory.
func (c *Client) SaveToken(profileName string, tok *twitchapi.UserToken) error {
	st := StoredToken{AccessToken: tok.AccessToken}
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		st.RefreshToken = &rt
	}
	return SaveStoredToken(c.ConfigDir, profileName, st, c.Encryptor)
}

// userTokenFromOAuth2 validates an exchanged oauth2 token and binds the
// identity the validate endpoint reports.
func (c *Client) userTokenFromOAuth2(ctx context.Context, t *oauth2.Token) (*twitchapi.UserToken, error) {
	res, err := c.validate(ctx, t.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &twitchapi.UserToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ClientID:     res.ClientID,
		UserID:       res.UserID,
		Login:        res.Login,
		ExpiresAt:    t.Expiry,
	}, nil
}
