// Package common contains shared constants used across client components.
package common

const (
	// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// AccessTokenSlotKey is the durable storage key holding the raw access token.
	AccessTokenSlotKey = "auth_access_token"

	// RefreshCookieName is the HTTP-only cookie the backend uses for the
	// long-lived refresh credential.
	RefreshCookieName = "refresh_token"

	// TokenQueryParam carries the access token in the realtime socket URL.
	TokenQueryParam = "token"
)
