package federation

import "errors"

var (
	// ErrRemoteUnavailable wraps any non-2xx response or malformed payload
	// from the remote party; the wrap carries the upstream status and
	// message.
	ErrRemoteUnavailable = errors.New("remote party unavailable")

	// ErrAuthentication covers signature and claim-shape mismatches, and
	// attempts to refresh a session that holds no refresh token.
	ErrAuthentication = errors.New("authentication failed")
)
