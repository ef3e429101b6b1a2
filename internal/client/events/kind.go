package events

import "fmt"

// Kind is the closed set of event types understood by the client.
type Kind string

const (
	KindConnect             Kind = "connect"
	KindConnected           Kind = "connected"
	KindDisconnect          Kind = "disconnect"
	KindLog                 Kind = "log"
	KindWarning             Kind = "warning"
	KindSystem              Kind = "system"
	KindEmail               Kind = "email"
	KindUsername            Kind = "username"
	KindPassword            Kind = "password"
	KindPin                 Kind = "pin"
	KindAlerts              Kind = "alerts"
	KindAlert               Kind = "alert"
	KindAuthSuccess         Kind = "auth_success"
	KindAuthError           Kind = "auth_error"
	KindUI                  Kind = "ui"
	KindPasswordUpdate      Kind = "password_update"
	KindPinUpdate           Kind = "pin_update"
	KindSnapshot            Kind = "snapshot"
	KindSafeMode            Kind = "safe_mode"
	KindEmailVerified       Kind = "email_verified"
	KindProfileFieldChanged Kind = "profile_field_changed"
)

var knownKinds = map[Kind]struct{}{
	KindConnect: {}, KindConnected: {}, KindDisconnect: {}, KindLog: {},
	KindWarning: {}, KindSystem: {}, KindEmail: {}, KindUsername: {},
	KindPassword: {}, KindPin: {}, KindAlerts: {}, KindAlert: {},
	KindAuthSuccess: {}, KindAuthError: {}, KindUI: {}, KindPasswordUpdate: {},
	KindPinUpdate: {}, KindSnapshot: {}, KindSafeMode: {}, KindEmailVerified: {},
	KindProfileFieldChanged: {},
}

func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// important kinds make it into the display log.
var importantKinds = map[Kind]struct{}{
	KindAuthSuccess: {}, KindAuthError: {}, KindEmail: {}, KindEmailVerified: {},
	KindWarning: {}, KindAlert: {}, KindLog: {}, KindUsername: {},
	KindProfileFieldChanged: {},
}

func (k Kind) Important() bool {
	_, ok := importantKinds[k]
	return ok
}
