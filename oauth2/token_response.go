package oauth2

// TokenResponse is the standard OAuth2 token endpoint response as defined in
// RFC 6749, returned for both grant types.
type TokenResponse struct {
	// AccessToken is the signed token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token,omitempty"`

	// IDToken is the identity token carrying the principal's claims
	// (sub, email, preferred_username, picture, nonce).
	IDToken string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "Bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token. The
	// authoritative expiry is the token's own "exp" claim.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Single-use: it is rotated on every redemption.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope lists the granted path scopes in wire format.
	Scope []string `json:"scope,omitempty"`
}
