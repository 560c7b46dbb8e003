package twitchapi

import "time"

// UserToken is a validated user access token together with the identity the
// validate endpoint reported for it. Immutable once handed to the session;
// replacement happens only through a fresh login.
type UserToken struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	UserID       string
	Login        string
	ExpiresAt    time.Time
}

// ComputeExpiry returns absolute expiry time from seconds, defaulting to +60m when unknown.
func ComputeExpiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
