package oauth2

// TokenRequest carries the form-encoded parameters of a token endpoint call.
type TokenRequest struct {
	GrantType    GrantType `json:"grant_type"`
	Code         string    `json:"code,omitempty"`          // authorization_code grant
	RefreshToken string    `json:"refresh_token,omitempty"` // refresh_token grant
	RedirectURI  string    `json:"redirect_uri,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
}
