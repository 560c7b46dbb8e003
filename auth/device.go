package auth

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

// RunDeviceFlow requests a device code, reports the verification URI and user
// code through notify as soon as they exist, then polls the token endpoint at
// the provider's interval until the user authorizes elsewhere or the code
// expires.
func (c *Client) RunDeviceFlow(ctx context.Context, profileName string, notify func(verificationURI, userCode string)) (tok *twitchapi.UserToken, err error) {
	telemetry.AuthAttempts.Inc()
	ctx, span := telemetry.StartSpan(ctx, "auth", "device-login", attribute.String("profile", profileName))
	defer func() {
		if err != nil {
			telemetry.AuthFailures.Inc()
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	ocfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.scopes(),
		Endpoint:     c.endpoint(),
	}

	da, derr := ocfg.DeviceAuth(ctx)
	if derr != nil {
		return nil, fmt.Errorf("start device flow: %w", derr)
	}
	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	if notify != nil {
		notify(uri, da.UserCode)
	}

	ot, perr := ocfg.DeviceAccessToken(ctx, da)
	if perr != nil {
		switch {
		case strings.Contains(perr.Error(), "access_denied"):
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, perr)
		case strings.Contains(perr.Error(), "expired_token"):
			return nil, fmt.Errorf("%w: device code expired", ErrTimeout)
		default:
			return nil, fmt.Errorf("device flow: %w", perr)
		}
	}

	tok, err = c.userTokenFromOAuth2(ctx, ot)
	if err != nil {
		return nil, err
	}
	if err := c.SaveToken(profileName, tok); err != nil {
		return nil, err
	}
	return tok, nil
}
