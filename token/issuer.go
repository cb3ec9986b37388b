package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/C010UR/fangi-prototype-sub000/grants"
	"github.com/C010UR/fangi-prototype-sub000/oauth2"
	"github.com/C010UR/fangi-prototype-sub000/secrets"
	"github.com/C010UR/fangi-prototype-sub000/token/refresh"
	"github.com/C010UR/fangi-prototype-sub000/users"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Token type claim values. Access and ID tokens are self-contained and never
// persisted; refresh tokens are opaque and stored by hash.
const (
	TypeAccess = "access"
	TypeID     = "id"
)

// Issuer mints access, refresh, and identity tokens from a redeemed
// authorization code or a refresh token.
type Issuer struct {
	signer             Signer
	refreshRepo        refresh.Repo
	userRepo           users.Repo
	secrets            *secrets.Service
	issuer             string
	accessTokenExpiry  time.Duration
	idTokenExpiry      time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type IssuerOption func(*Issuer)

func WithTokenExpiry(accessTokenExpiry, idTokenExpiry, refreshTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.idTokenExpiry = idTokenExpiry
		i.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(signer Signer, refreshRepo refresh.Repo, userRepo users.Repo, secretsService *secrets.Service, issuer string, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:      signer,
		refreshRepo: refreshRepo,
		userRepo:    userRepo,
		secrets:     secretsService,
		issuer:      issuer,
	}

	for _, opt := range options {
		opt(i)
	}

	if i.accessTokenExpiry == 0 {
		i.accessTokenExpiry = time.Hour
	}
	if i.idTokenExpiry == 0 {
		i.idTokenExpiry = time.Hour
	}
	if i.refreshTokenExpiry == 0 {
		i.refreshTokenExpiry = 30 * 24 * time.Hour
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	return i
}

// IssueFromCode mints the token triple for a redeemed authorization code.
// The caller has already consumed the code row; issuance itself touches only
// the refresh token store.
func (i *Issuer) IssueFromCode(code *grants.AuthorizationCode) (*oauth2.TokenResponse, error) {
	user, err := i.userRepo.GetByID(code.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.IssueFromCode] userRepo.GetByID")
	}

	return i.issueTriple(user, code.ServerClientID, code.Scopes, code.Nonce)
}

// IssueFromRefreshToken atomically consumes a presented refresh token and
// mints a fresh triple in its place. The old token is single-use: a second
// redemption fails ErrInvalidRefreshToken, as does presenting a token that
// was issued to a different client.
func (i *Issuer) IssueFromRefreshToken(rawToken, serverClientID string) (*oauth2.TokenResponse, error) {
	stored, err := i.refreshRepo.Consume(i.secrets.HashForStorage(rawToken))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRefreshToken, "[Issuer.IssueFromRefreshToken] refreshRepo.Consume")
	}
	if stored.ServerClientID != serverClientID {
		return nil, errors.Wrapf(ErrInvalidRefreshToken, "[Issuer.IssueFromRefreshToken] client %s", serverClientID)
	}
	if i.nowFunc().After(stored.ExpiresAt) {
		return nil, errors.Wrap(ErrRefreshTokenExpired, "[Issuer.IssueFromRefreshToken]")
	}

	user, err := i.userRepo.GetByID(stored.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.IssueFromRefreshToken] userRepo.GetByID")
	}

	return i.issueTriple(user, stored.ServerClientID, stored.Scopes, "")
}

func (i *Issuer) issueTriple(user *users.User, serverClientID string, scopeStrings []string, nonce string) (*oauth2.TokenResponse, error) {
	accessToken, err := i.createAccessToken(user, serverClientID, scopeStrings)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.issueTriple] createAccessToken")
	}

	idToken, err := i.createIDToken(user, serverClientID, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.issueTriple] createIDToken")
	}

	refreshToken, err := i.createRefreshToken(user, serverClientID, scopeStrings)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.issueTriple] createRefreshToken")
	}

	return &oauth2.TokenResponse{
		AccessToken:  accessToken,
		IDToken:      idToken,
		TokenType:    oauth2.TokenType,
		ExpiresIn:    int(i.accessTokenExpiry.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scopeStrings,
	}, nil
}

func (i *Issuer) createAccessToken(user *users.User, serverClientID string, scopeStrings []string) (string, error) {
	now := i.nowFunc()
	return i.signer.Sign(jwt.MapClaims{
		"iss":    i.issuer,
		"sub":    user.ID,
		"aud":    serverClientID,
		"iat":    now.Unix(),
		"exp":    now.Add(i.accessTokenExpiry).Unix(),
		"jti":    uuid.New().String(),
		"type":   TypeAccess,
		"scopes": scopeStrings,
	})
}

func (i *Issuer) createIDToken(user *users.User, serverClientID, nonce string) (string, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":                i.issuer,
		"sub":                user.ID,
		"aud":                serverClientID,
		"iat":                now.Unix(),
		"exp":                now.Add(i.idTokenExpiry).Unix(),
		"jti":                uuid.New().String(),
		"type":               TypeID,
		"email":              user.Email,
		"preferred_username": user.Username,
	}
	if user.Picture != "" {
		claims["picture"] = user.Picture
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	return i.signer.Sign(claims)
}

// createRefreshToken generates an opaque token and persists only its hash.
// Any previous refresh token for the same principal and server is dropped so
// that at most one chain exists per pair.
func (i *Issuer) createRefreshToken(user *users.User, serverClientID string, scopeStrings []string) (string, error) {
	if err := i.refreshRepo.DeleteByUserAndServer(user.ID, serverClientID); err != nil {
		return "", errors.Wrap(err, "[Issuer.createRefreshToken] DeleteByUserAndServer")
	}

	rawToken := i.secrets.GenerateToken()
	if err := i.refreshRepo.Insert(&refresh.StoredRefreshToken{
		TokenHash:      i.secrets.HashForStorage(rawToken),
		UserID:         user.ID,
		ServerClientID: serverClientID,
		Scopes:         scopeStrings,
		ExpiresAt:      i.nowFunc().Add(i.refreshTokenExpiry),
	}); err != nil {
		return "", errors.Wrap(err, "[Issuer.createRefreshToken] Insert")
	}

	return rawToken, nil
}
