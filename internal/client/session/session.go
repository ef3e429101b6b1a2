package session

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/mycocore/internal/client/client"
)

var (
	ErrInvalidToken = errors.New("access token is not a three-segment token")
	ErrNoSession    = errors.New("no active session")
)

type Profile struct {
	Email        string
	PendingEmail string
	Avatar       string
}

type Session struct {
	UserID                  string
	Username                string
	Role                    string
	AccessToken             string
	SecondaryFactorVerified bool
	Profile                 Profile
}

// ProfilePatch is a shallow update: nil fields are left alone.
type ProfilePatch struct {
	Username     *string
	Email        *string
	PendingEmail *string
	Avatar       *string
}

func (p ProfilePatch) empty() bool {
	return p.Username == nil && p.Email == nil && p.PendingEmail == nil && p.Avatar == nil
}

func (s *Session) apply(p ProfilePatch) {
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.Email != nil {
		s.Profile.Email = *p.Email
	}
	if p.PendingEmail != nil {
		s.Profile.PendingEmail = *p.PendingEmail
	}
	if p.Avatar != nil {
		s.Profile.Avatar = *p.Avatar
	}
}

// ApplyProfile copies identity and profile fields from a /auth/me answer.
// Empty identity fields keep their current value.
func (s *Session) ApplyProfile(p *client.Profile) {
	if p == nil {
		return
	}
	if id := p.ID.String(); id != "" {
		s.UserID = id
	}
	if p.Username != "" {
		s.Username = p.Username
	}
	if p.Role != "" {
		s.Role = p.Role
	}
	s.Profile = Profile{Email: p.Email, PendingEmail: p.PendingEmail, Avatar: p.Avatar}
}

// ValidateTokenShape accepts exactly three non-empty dot-separated segments.
func ValidateTokenShape(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrInvalidToken
	}
	for _, p := range parts {
		if p == "" {
			return ErrInvalidToken
		}
	}
	return nil
}
