package sessions

import "time"

// Session is a resource server's local record of a completed token exchange
// with the hub. It captures the raw tokens so the server can call the hub on
// the principal's behalf and refresh when the access token runs out.
type Session struct {
	ID string

	// Core identity
	UserID string
	Email  string
	Name   string

	// Tokens (refresh is essential, access is convenience)
	AccessToken  string
	RefreshToken string
	IDToken      string

	// Authorization
	Scopes []string

	// Session management
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
