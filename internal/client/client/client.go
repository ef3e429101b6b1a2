package client

import (
	"context"
	"encoding/json"
	"strconv"
)

// Client is the backend API consumed by the session components.
type Client interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Refresh(ctx context.Context) (string, error)
	Me(ctx context.Context) (*Profile, error)
	Logout(ctx context.Context) error
	VerifyPin(ctx context.Context, pin string) (bool, error)
	ChangeUsername(ctx context.Context, newUsername string) error
	ChangeEmail(ctx context.Context, newEmail string) error
	CancelPendingEmail(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	ChangePin(ctx context.Context, oldPin, newPin string) error

	SetAccessToken(token string)
	ClearAccessToken()
	HasRefreshCredential() bool
}

var _ Client = (*HTTPClient)(nil)

// LoginResult is the body of a successful POST /auth/login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	PinVerified bool   `json:"pin_verified"`
}

// UserID accepts both numeric and string identifiers on the wire.
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string { return string(id) }

// Int returns the numeric form of the identifier, or 0.
func (id UserID) Int() int64 {
	n, _ := strconv.ParseInt(string(id), 10, 64)
	return n
}

// Profile is the body of GET /auth/me.
type Profile struct {
	ID           UserID `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PendingEmail string `json:"pending_email"`
	Role         string `json:"role"`
	Avatar       string `json:"avatar"`
	Verified     bool   `json:"verified"`
	PinVerified  bool   `json:"pin_verified"`
}
