package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record of an issued refresh token.
// The client holds the opaque random string; the hub persists only its
// storage hash plus the metadata needed to mint replacement tokens.
type StoredRefreshToken struct {
	TokenHash      string    // Storage hash of the opaque token
	UserID         string    // Principal the token was issued to
	ServerClientID string    // Resource server the token was issued for
	Scopes         []string  // Granted path scopes, wire format
	ExpiresAt      time.Time // Lazy expiry - rejected on lookup, not swept
}

// Repo manages stored refresh tokens keyed by token hash. Consume must be
// atomic: lookup and deletion happen as one operation so a token redeems at
// most once under concurrent access.
type Repo interface {
	Insert(token *StoredRefreshToken) error
	Consume(tokenHash string) (*StoredRefreshToken, error)
	DeleteByUserAndServer(userID, serverClientID string) error
}
