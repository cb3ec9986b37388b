package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/C010UR/fangi-prototype-sub000/oauth2"
	"github.com/C010UR/fangi-prototype-sub000/token"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.Issuer()

		resp := map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteOAuthAuthorize,
			"token_endpoint":         baseURL + RouteOAuthToken,
			"userinfo_endpoint":      baseURL + RouteUserInfo,
			"jwks_uri":               baseURL + RouteWellKnownJWKS,

			"response_types_supported": []string{"code"},
			"response_modes_supported": []string{"query"},
			"subject_types_supported":  []string{"public"},

			"id_token_signing_alg_values_supported": []string{"RS256"},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_post", // Credentials in POST body
			},

			"grant_types_supported": []string{
				"authorization_code",
				"refresh_token",
			},

			// Claims returned by /userinfo
			"claims_supported": []string{
				"sub",
				"email",
				"preferred_username",
				"picture",
			},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.signer.GetJWKS()
		if err != nil {
			writeJSONError(w, "server_error", "failed to build key set", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

// Authorize issues an authorization code for an authenticated principal and
// redirects back to the requesting server's callback with code and state.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			writeJSONError(w, "access_denied", "principal authentication required", http.StatusUnauthorized)
			return
		}

		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse request parameters", http.StatusBadRequest)
			return
		}

		clientID := r.FormValue("client_id")
		redirectURI := r.FormValue("redirect_uri")
		state := r.FormValue("state")
		nonce := r.FormValue("nonce")
		scopeStrings := strings.Fields(r.FormValue("scope"))

		if clientID == "" || redirectURI == "" {
			writeJSONError(w, "invalid_request", "client_id and redirect_uri are required", http.StatusBadRequest)
			return
		}

		server, err := s.grants.ValidateRequestingClient(clientID, redirectURI)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		// The redirect URI must parse before a code row is created; a code
		// the caller can never receive would sit orphaned until lazy expiry.
		callbackURL, err := url.Parse(redirectURI)
		if err != nil {
			writeJSONError(w, "invalid_request", "invalid redirect URI", http.StatusBadRequest)
			return
		}

		code, err := s.grants.IssueCode(user, server, scopeStrings, state, nonce, redirectURI)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		callbackRedirect(w, r, callbackURL, code, state)
	}
}

// Token exchanges an authorization code or refresh token for a token triple
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := oauth2.TokenRequest{
			GrantType:    oauth2.GrantType(r.FormValue("grant_type")),
			Code:         r.FormValue("code"),
			RefreshToken: r.FormValue("refresh_token"),
			RedirectURI:  r.FormValue("redirect_uri"),
			ClientID:     r.FormValue("client_id"),
			ClientSecret: r.FormValue("client_secret"),
		}

		var tokenResponse *oauth2.TokenResponse
		var err error

		switch tokenReq.GrantType {
		case oauth2.AuthorizationCodeGrant:
			tokenResponse, err = s.redeemAuthorizationCode(tokenReq)
		case oauth2.RefreshTokenGrant:
			tokenResponse, err = s.redeemRefreshToken(tokenReq)
		default:
			writeJSONError(w, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

func (s *Server) redeemAuthorizationCode(req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	server, err := s.grants.ValidateConsumingClient(req.ClientID, req.ClientSecret, req.RedirectURI)
	if err != nil {
		return nil, err
	}

	code, err := s.grants.RedeemCode(req.Code)
	if err != nil {
		return nil, err
	}

	if err := s.grants.ValidateCodeBinding(code, server, req.RedirectURI); err != nil {
		return nil, err
	}

	return s.issuer.IssueFromCode(code)
}

func (s *Server) redeemRefreshToken(req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	server, err := s.grants.ValidateClientCredentials(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	return s.issuer.IssueFromRefreshToken(req.RefreshToken, server.ClientID)
}

// UserInfo returns claims about the bearer of a valid access token
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, "invalid_token", "missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := s.signer.Verify(accessToken)
		if err != nil {
			writeJSONError(w, "invalid_token", "token verification failed", http.StatusUnauthorized)
			return
		}
		if claims["type"] != token.TypeAccess {
			writeJSONError(w, "invalid_token", "not an access token", http.StatusUnauthorized)
			return
		}

		sub, _ := claims["sub"].(string)
		user, err := s.users.GetByID(sub)
		if err != nil {
			writeJSONError(w, "invalid_token", "unknown principal", http.StatusUnauthorized)
			return
		}

		resp := map[string]any{
			"sub":                user.ID,
			"email":              user.Email,
			"preferred_username": user.Username,
		}
		if user.Picture != "" {
			resp["picture"] = user.Picture
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Helper functions

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// callbackRedirect sends the authorization code to the server's redirect URI
// as query parameters.
func callbackRedirect(w http.ResponseWriter, r *http.Request, callbackURL *url.URL, authCode, state string) {
	q := callbackURL.Query()
	q.Set("code", authCode)
	if state != "" {
		q.Set("state", state)
	}
	callbackURL.RawQuery = q.Encode()
	http.Redirect(w, r, callbackURL.String(), http.StatusSeeOther)
}
