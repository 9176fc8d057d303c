package model

import "time"

type SessionStatus string

const (
	SessionLoading              SessionStatus = "loading"
	SessionAnonymous            SessionStatus = "anonymous"
	SessionAuthenticating       SessionStatus = "authenticating"
	SessionAuthenticated        SessionStatus = "authenticated"
	SessionAuthenticationFailed SessionStatus = "authentication_failed"
)

// LoggedIn reports whether the status counts as logged in for routing.
// AuthenticationFailed routes like Anonymous.
func (s SessionStatus) LoggedIn() bool {
	return s == SessionAuthenticated
}

// SessionState is a point-in-time snapshot of the session controller.
type SessionState struct {
	Status     SessionStatus `json:"status"`
	LastError  string        `json:"last_error,omitempty"`
	Generation uint64        `json:"generation"`
	Since      time.Time     `json:"since"`
}
