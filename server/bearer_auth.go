package server

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/C010UR/fangi-prototype-sub000/token"
	"github.com/C010UR/fangi-prototype-sub000/users"
)

// BearerAuthenticator authenticates the authorize endpoint with a hub-issued
// access token. A principal that already holds a valid token can mint codes
// for further servers without a browser login, which is how service
// principals chain access across the federation.
func BearerAuthenticator(signer token.Signer, userRepo users.Repo) Authenticator {
	return func(r *http.Request) (*users.User, error) {
		rawToken, ok := bearerToken(r)
		if !ok {
			return nil, errors.New("[BearerAuthenticator] missing bearer token")
		}

		claims, err := signer.Verify(rawToken)
		if err != nil {
			return nil, errors.Wrap(err, "[BearerAuthenticator] signer.Verify")
		}
		if claims["type"] != token.TypeAccess {
			return nil, errors.New("[BearerAuthenticator] not an access token")
		}

		sub, _ := claims["sub"].(string)
		user, err := userRepo.GetByID(sub)
		if err != nil {
			return nil, errors.Wrap(err, "[BearerAuthenticator] userRepo.GetByID")
		}
		return user, nil
	}
}
