package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/C010UR/fangi-prototype-sub000/grants"
	fakecoderepo "github.com/C010UR/fangi-prototype-sub000/grants/repofake"
	"github.com/C010UR/fangi-prototype-sub000/internal/config"
	"github.com/C010UR/fangi-prototype-sub000/oauth2"
	"github.com/C010UR/fangi-prototype-sub000/secrets"
	"github.com/C010UR/fangi-prototype-sub000/server"
	"github.com/C010UR/fangi-prototype-sub000/servers"
	fakeserverrepo "github.com/C010UR/fangi-prototype-sub000/servers/fakerepo"
	"github.com/C010UR/fangi-prototype-sub000/token"
	refreshrepofake "github.com/C010UR/fangi-prototype-sub000/token/refresh/repofake"
	"github.com/C010UR/fangi-prototype-sub000/users"
	fakeuserrepo "github.com/C010UR/fangi-prototype-sub000/users/repofake"
)

const (
	testSessionHeader = "X-Session"
	testCallback      = "https://files.example.com/callback"
	testClientSecret  = "server-secret-value"
)

type hubFixture struct {
	baseURL string
	hub     http.Handler
	signer  *token.KeyPairSigner
	user    *users.User
	server  *servers.Server
	client  *http.Client
}

// setupHub stands up the full hub behind an httptest listener. The base URL
// is only known once the listener exists, so the handler is wired through a
// late-bound indirection.
func setupHub(t *testing.T) *hubFixture {
	t.Helper()

	f := &hubFixture{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hub.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	f.baseURL = ts.URL

	cfg := config.Config{
		Port:            "0",
		AppName:         "hub-test",
		BaseURL:         ts.URL,
		AppSecret:       "hub-e2e-test-app-secret",
		AuthCodeTTL:     10 * time.Minute,
		AccessTokenTTL:  time.Hour,
		IDTokenTTL:      time.Hour,
		RefreshTokenTTL: 720 * time.Hour,
		Environment:     "TEST",
	}

	secretsService, err := secrets.NewService(cfg.AppSecret)
	require.NoError(t, err)

	userRepo := fakeuserrepo.NewFakeUserRepo()
	f.user = &users.User{
		ID:       "user-1",
		Email:    "ops@example.com",
		Username: "ops",
	}
	require.NoError(t, userRepo.Upsert(f.user))

	serverRepo := fakeserverrepo.NewFakeServerRepo()
	f.server = &servers.Server{
		ClientID:     "file-server-1",
		SecretHash:   secretsService.HashForStorage(testClientSecret),
		Name:         "File Server",
		URL:          "https://files.example.com",
		RedirectURIs: []string{testCallback},
		Active:       true,
	}
	require.NoError(t, serverRepo.Upsert(f.server))

	grantManager, err := grants.NewManager(fakecoderepo.NewFakeCodeRepo(), serverRepo, secretsService)
	require.NoError(t, err)

	keyPair, err := token.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	f.signer = token.NewKeyPairSigner(keyPair)

	tokenIssuer := token.NewIssuer(f.signer, refreshrepofake.NewFakeRefreshTokenRepo(), userRepo, secretsService, cfg.Issuer())

	hub, err := server.New(cfg, server.Deps{
		Grants: grantManager,
		Issuer: tokenIssuer,
		Signer: f.signer,
		Users:  userRepo,
		Authenticate: func(r *http.Request) (*users.User, error) {
			if r.Header.Get(testSessionHeader) != "valid" {
				return nil, errors.New("no session")
			}
			return f.user, nil
		},
	})
	require.NoError(t, err)
	f.hub = hub

	f.client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

// authorize drives the authorize endpoint as a logged-in principal and
// returns the code delivered on the redirect.
func (f *hubFixture) authorize(t *testing.T, scope, state string) string {
	t.Helper()

	query := url.Values{}
	query.Set("client_id", f.server.ClientID)
	query.Set("redirect_uri", testCallback)
	query.Set("scope", scope)
	query.Set("state", state)

	req, err := http.NewRequest(http.MethodGet, f.baseURL+server.RouteOAuthAuthorize+"?"+query.Encode(), nil)
	require.NoError(t, err)
	req.Header.Set(testSessionHeader, "valid")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), testCallback))
	require.Equal(t, state, location.Query().Get("state"))

	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func (f *hubFixture) postToken(t *testing.T, form url.Values) (*http.Response, []byte) {
	t.Helper()

	resp, err := f.client.PostForm(f.baseURL+server.RouteOAuthToken, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func (f *hubFixture) codeGrantForm(code string) url.Values {
	return url.Values{
		"grant_type":    {string(oauth2.AuthorizationCodeGrant)},
		"code":          {code},
		"redirect_uri":  {testCallback},
		"client_id":     {f.server.ClientID},
		"client_secret": {testClientSecret},
	}
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := setupHub(t)

	code := f.authorize(t, "/docs:rw", "state-1")

	resp, body := f.postToken(t, f.codeGrantForm(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokenResponse oauth2.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tokenResponse))
	require.Equal(t, oauth2.TokenType, tokenResponse.TokenType)
	require.Equal(t, []string{"/docs:rw"}, tokenResponse.Scope)
	require.NotEmpty(t, tokenResponse.RefreshToken)

	claims, err := f.signer.Verify(tokenResponse.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, claims["sub"])
	require.Equal(t, f.server.ClientID, claims["aud"])
	require.Equal(t, []any{"/docs:rw"}, claims["scopes"])

	idClaims, err := f.signer.Verify(tokenResponse.IDToken)
	require.NoError(t, err)
	require.Equal(t, f.user.Email, idClaims["email"])
}

func TestAuthorizationCodeSingleUse(t *testing.T) {
	f := setupHub(t)

	code := f.authorize(t, "/docs:rw", "state-1")

	resp, _ := f.postToken(t, f.codeGrantForm(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.postToken(t, f.codeGrantForm(code))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "invalid_grant")
}

func TestRefreshGrantRolls(t *testing.T) {
	f := setupHub(t)

	code := f.authorize(t, "/docs:rw /pub:r", "state-1")

	resp, body := f.postToken(t, f.codeGrantForm(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first oauth2.TokenResponse
	require.NoError(t, json.Unmarshal(body, &first))

	refreshForm := url.Values{
		"grant_type":    {string(oauth2.RefreshTokenGrant)},
		"refresh_token": {first.RefreshToken},
		"client_id":     {f.server.ClientID},
		"client_secret": {testClientSecret},
	}
	resp, body = f.postToken(t, refreshForm)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second oauth2.TokenResponse
	require.NoError(t, json.Unmarshal(body, &second))
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, []string{"/docs:rw", "/pub:r"}, second.Scope)

	// The consumed refresh token no longer redeems.
	resp, body = f.postToken(t, refreshForm)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "invalid_grant")
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	f := setupHub(t)

	code := f.authorize(t, "/docs:rw", "state-1")

	form := f.codeGrantForm(code)
	form.Set("client_secret", "not-the-secret")
	resp, body := f.postToken(t, form)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, string(body), "invalid_client")
}

func TestTokenRejectsUnsupportedGrant(t *testing.T) {
	f := setupHub(t)

	resp, body := f.postToken(t, url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "unsupported_grant_type")
}

func TestAuthorizeRequiresPrincipal(t *testing.T) {
	f := setupHub(t)

	resp, err := f.client.Get(f.baseURL + server.RouteOAuthAuthorize + "?client_id=file-server-1&redirect_uri=" + url.QueryEscape(testCallback))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthorizeRejectsUnknownClient(t *testing.T) {
	f := setupHub(t)

	req, err := http.NewRequest(http.MethodGet, f.baseURL+server.RouteOAuthAuthorize+"?client_id=nobody&redirect_uri="+url.QueryEscape(testCallback), nil)
	require.NoError(t, err)
	req.Header.Set(testSessionHeader, "valid")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthorizeRejectsForeignRedirect(t *testing.T) {
	f := setupHub(t)

	req, err := http.NewRequest(http.MethodGet, f.baseURL+server.RouteOAuthAuthorize+"?client_id=file-server-1&redirect_uri="+url.QueryEscape("https://evil.example.com/steal"), nil)
	require.NoError(t, err)
	req.Header.Set(testSessionHeader, "valid")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthorizeRejectsMalformedRedirect(t *testing.T) {
	f := setupHub(t)
	// Empty allowlist is permissive, so the request reaches the URI parse.
	f.server.RedirectURIs = nil

	req, err := http.NewRequest(http.MethodGet, f.baseURL+server.RouteOAuthAuthorize+"?client_id=file-server-1&redirect_uri="+url.QueryEscape("https://evil.example.com/%zz"), nil)
	require.NoError(t, err)
	req.Header.Set(testSessionHeader, "valid")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_request", body["error"])
}

func TestUserInfo(t *testing.T) {
	f := setupHub(t)

	code := f.authorize(t, "/docs:rw", "state-1")
	resp, body := f.postToken(t, f.codeGrantForm(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokenResponse oauth2.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tokenResponse))

	req, err := http.NewRequest(http.MethodGet, f.baseURL+server.RouteUserInfo, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenResponse.AccessToken)

	infoResp, err := f.client.Do(req)
	require.NoError(t, err)
	defer infoResp.Body.Close()
	require.Equal(t, http.StatusOK, infoResp.StatusCode)

	var info map[string]any
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&info))
	require.Equal(t, f.user.ID, info["sub"])
	require.Equal(t, f.user.Email, info["email"])

	// ID tokens are not accepted as bearer credentials.
	req.Header.Set("Authorization", "Bearer "+tokenResponse.IDToken)
	idResp, err := f.client.Do(req)
	require.NoError(t, err)
	defer idResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, idResp.StatusCode)
}

func TestDiscoveryAndJWKS(t *testing.T) {
	f := setupHub(t)

	resp, err := f.client.Get(f.baseURL + server.RouteWellKnownOpenIDConfig)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var discovery map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&discovery))
	require.Equal(t, f.baseURL, discovery["issuer"])
	require.Equal(t, f.baseURL+server.RouteOAuthToken, discovery["token_endpoint"])
	require.Equal(t, f.baseURL+server.RouteWellKnownJWKS, discovery["jwks_uri"])

	keysResp, err := f.client.Get(f.baseURL + server.RouteWellKnownJWKS)
	require.NoError(t, err)
	defer keysResp.Body.Close()
	require.Equal(t, http.StatusOK, keysResp.StatusCode)

	var jwks token.JWKS
	require.NoError(t, json.NewDecoder(keysResp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
	require.NotEmpty(t, jwks.Keys[0].Kid)
}
