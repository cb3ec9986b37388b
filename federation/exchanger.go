// Package federation is the resource-server-side client of the hub: it
// redeems authorization codes and refresh tokens at the hub's token
// endpoint, verifies the returned tokens against the hub's published key
// set, and maintains a machine credential for service-to-service calls.
package federation

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/C010UR/fangi-prototype-sub000/federation/sessions"
	"github.com/C010UR/fangi-prototype-sub000/users"
)

const defaultTimeout = 10 * time.Second

// Config identifies this resource server to the hub.
type Config struct {
	HubURL       string // Hub base URL; must serve OIDC discovery
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration // Outbound call timeout; no automatic retries
}

// Exchanger performs the authorization-code and refresh-token grants against
// the hub and keeps local principal and session records in step.
type Exchanger struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	atVerifier  *oidc.IDTokenVerifier
	userRepo    users.Repo
	sessionRepo sessions.Repo
	httpClient  *http.Client
	nowFunc     func() time.Time
}

type ExchangerOption func(*Exchanger)

func WithNowFunc(now func() time.Time) ExchangerOption {
	return func(e *Exchanger) {
		e.nowFunc = now
	}
}

// NewExchanger discovers the hub's endpoints and key set. The discovery call
// itself is remote, so construction fails ErrRemoteUnavailable when the hub
// cannot be reached.
func NewExchanger(ctx context.Context, cfg Config, userRepo users.Repo, sessionRepo sessions.Repo, options ...ExchangerOption) (*Exchanger, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.HubURL)
	if err != nil {
		return nil, errors.Wrap(ErrRemoteUnavailable, "[NewExchanger] provider discovery: "+err.Error())
	}

	// The hub accepts client credentials in the POST body only.
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	e := &Exchanger{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     endpoint,
		},
		verifier:    provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		atVerifier:  provider.Verifier(&oidc.Config{ClientID: cfg.ClientID, SkipClientIDCheck: true}),
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		httpClient:  httpClient,
		nowFunc:     time.Now,
	}

	for _, opt := range options {
		opt(e)
	}

	return e, nil
}

// ExchangeAuthorizationCode redeems an authorization code at the hub's token
// endpoint, verifies the returned tokens, upserts the local principal keyed
// by the ID token's email claim, and persists a session record.
func (e *Exchanger) ExchangeAuthorizationCode(ctx context.Context, code string) (*sessions.Session, error) {
	oauth2Token, err := e.oauthConfig.Exchange(e.clientContext(ctx), code)
	if err != nil {
		return nil, remoteError("[ExchangeAuthorizationCode] token exchange", err)
	}

	return e.sessionFromToken(ctx, uuid.New().String(), oauth2Token)
}

// Refresh redeems the session's stored refresh token for a fresh token
// triple and persists the replacement session under the same ID. The old
// refresh token is single-use on the hub side.
func (e *Exchanger) Refresh(ctx context.Context, session *sessions.Session) (*sessions.Session, error) {
	if session.RefreshToken == "" {
		return nil, errors.Wrap(ErrAuthentication, "[Refresh] session has no refresh token")
	}

	source := e.oauthConfig.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: session.RefreshToken})
	oauth2Token, err := source.Token()
	if err != nil {
		return nil, remoteError("[Refresh] refresh grant", err)
	}

	return e.sessionFromToken(ctx, session.ID, oauth2Token)
}

func (e *Exchanger) sessionFromToken(ctx context.Context, sessionID string, oauth2Token *oauth2.Token) (*sessions.Session, error) {
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrap(ErrAuthentication, "[sessionFromToken] no ID token in response")
	}

	idToken, err := e.verifier.Verify(e.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, errors.Wrap(ErrAuthentication, "[sessionFromToken] ID token verification: "+err.Error())
	}

	accessToken, err := e.atVerifier.Verify(e.clientContext(ctx), oauth2Token.AccessToken)
	if err != nil {
		return nil, errors.Wrap(ErrAuthentication, "[sessionFromToken] access token verification: "+err.Error())
	}

	var claims struct {
		Email    string `json:"email"`
		Username string `json:"preferred_username"`
		Picture  string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(ErrAuthentication, "[sessionFromToken] extracting claims: "+err.Error())
	}

	// The granted scopes ride on the access token, not the ID token.
	var accessClaims struct {
		Scopes []string `json:"scopes"`
	}
	if err := accessToken.Claims(&accessClaims); err != nil {
		return nil, errors.Wrap(ErrAuthentication, "[sessionFromToken] extracting access claims: "+err.Error())
	}
	if claims.Email == "" {
		return nil, errors.Wrap(ErrAuthentication, "[sessionFromToken] ID token missing email claim")
	}

	user, err := e.upsertPrincipal(claims.Email, claims.Username, claims.Picture)
	if err != nil {
		return nil, errors.Wrap(err, "[sessionFromToken] upsertPrincipal")
	}

	session := sessions.Session{
		ID:           sessionID,
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Username,
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		IDToken:      rawIDToken,
		Scopes:       accessClaims.Scopes,
		ExpiresAt:    oauth2Token.Expiry,
		CreatedAt:    e.nowFunc(),
	}

	if err := e.sessionRepo.Upsert(session.ID, session); err != nil {
		return nil, errors.Wrap(err, "[sessionFromToken] sessionRepo.Upsert")
	}

	return &session, nil
}

// upsertPrincipal keys local principals by the hub-asserted email.
func (e *Exchanger) upsertPrincipal(email, username, picture string) (*users.User, error) {
	user, err := e.userRepo.GetByEmail(email)
	if err != nil {
		user = &users.User{Email: email, Created: e.nowFunc()}
	}
	user.Username = username
	user.Picture = picture

	if err := e.userRepo.Upsert(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, e.httpClient)
}

// remoteError classifies an oauth2 transport failure. A structured error
// response from the remote party still counts as RemoteUnavailable; the
// upstream status and body travel in the wrap.
func remoteError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return errors.Wrapf(ErrRemoteUnavailable, "%s: upstream status %d: %s", op, retrieveErr.Response.StatusCode, string(retrieveErr.Body))
	}
	return errors.Wrap(ErrRemoteUnavailable, op+": "+err.Error())
}
