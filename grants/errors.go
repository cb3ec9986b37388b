package grants

import "errors"

var (
	ErrUnknownClient         = errors.New("unknown client")
	ErrClientInactive        = errors.New("client inactive")
	ErrClientBanned          = errors.New("client banned")
	ErrInvalidSecret         = errors.New("invalid client secret")
	ErrRedirectURINotAllowed = errors.New("redirect URI not allowlisted")
	ErrRedirectURIMismatch   = errors.New("redirect URI mismatch")
	ErrClientMismatch        = errors.New("client mismatch")
	ErrInvalidCode           = errors.New("invalid authorization code")
	ErrCodeExpired           = errors.New("authorization code expired")
)
