package auth

import "errors"

// Sentinel errors classifying credential-acquisition failures. Background
// tasks convert these into event variants; nothing here ever reaches the
// reducer as a raw error.
var (
	// ErrNoActiveProfile: silent login requires an active profile selection.
	ErrNoActiveProfile = errors.New("no active profile")
	// ErrTokenNotFound: no stored token file exists for the profile.
	ErrTokenNotFound = errors.New("no stored token")
	// ErrInvalidToken: the stored or pasted token failed validation and could
	// not be refreshed.
	ErrInvalidToken = errors.New("token invalid or expired")
	// ErrPortInUse: the local callback listener could not bind; another
	// instance is likely running.
	ErrPortInUse = errors.New("callback port in use")
	// ErrStateMismatch: the redirect carried a wrong anti-forgery token.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrTimeout: the flow exceeded its wall-clock budget.
	ErrTimeout = errors.New("login timed out")
	// ErrExchangeFailed: the code-for-token exchange was rejected.
	ErrExchangeFailed = errors.New("code exchange failed")
	// ErrProviderRejected: the identity provider denied the authorization.
	ErrProviderRejected = errors.New("authorization rejected by provider")
)
