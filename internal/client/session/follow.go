package session

import (
	"context"

	"github.com/dmitrijs2005/mycocore/internal/client/events"
)

// Subscriber is the part of events.Channel that Follow needs.
type Subscriber interface {
	Subscribe(fn events.Listener) func()
}

// Follow applies profile_field_changed events, including those broadcast by
// other client processes, to the local session. The returned func stops it.
func (s *Store) Follow(sub Subscriber) func() {
	return sub.Subscribe(func(e events.Event) {
		if e.Kind != events.KindProfileFieldChanged {
			return
		}
		var pc events.ProfileChange
		if err := e.DecodePayload(&pc); err != nil {
			s.log.Warn(context.Background(), "ignoring profile change without payload", "error", err)
			return
		}

		cur, ok := s.Current()
		if !ok || (pc.UserID != "" && pc.UserID != cur.UserID) {
			return
		}

		patch, ok := PatchFor(pc.Field, pc.Value)
		if !ok {
			s.log.Debug(context.Background(), "ignoring unknown profile field", "field", pc.Field)
			return
		}
		_ = s.UpdateProfile(patch)
	})
}

// PatchFor maps a broadcast field name to a ProfilePatch.
func PatchFor(field, value string) (ProfilePatch, bool) {
	v := value
	switch field {
	case "username":
		return ProfilePatch{Username: &v}, true
	case "email":
		return ProfilePatch{Email: &v}, true
	case "pending_email":
		return ProfilePatch{PendingEmail: &v}, true
	case "avatar":
		return ProfilePatch{Avatar: &v}, true
	}
	return ProfilePatch{}, false
}
