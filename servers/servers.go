// Package servers models the resource servers registered with the hub. A
// resource server authenticates to the token endpoint with a client ID and a
// secret that is stored only as a one-way hash.
package servers

import (
	"time"

	"github.com/google/uuid"

	"github.com/C010UR/fangi-prototype-sub000/secrets"
)

type Server struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"clientId"` // Opaque unique identifier presented on token requests
	SecretHash   string    `json:"-"`        // Storage hash of the client secret - never serialize
	Name         string    `json:"name"`
	URL          string    `json:"url,omitempty"`          // Base URL of the server's own API
	RedirectURIs []string  `json:"redirectURIs,omitempty"` // Allowlist; empty means any URI is accepted
	Active       bool      `json:"active"`
	Banned       bool      `json:"banned"`
	Created      time.Time `json:"created,omitempty"`
}

// AllowsRedirectURI checks the redirect URI against the registered allowlist.
// An empty allowlist accepts any URI; this permissive default exists so that
// a freshly registered server can complete its first bootstrap before an
// operator pins its URIs.
func (s *Server) AllowsRedirectURI(uri string) bool {
	if len(s.RedirectURIs) == 0 {
		return true
	}
	for _, registered := range s.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// GenerateCredentials assigns a fresh client ID and secret to the server,
// storing only the secret's hash. The plaintext secret is returned exactly
// once for the operator to hand to the server.
func (s *Server) GenerateCredentials(secretsService *secrets.Service) string {
	s.ClientID = uuid.New().String()
	secret := secretsService.GenerateToken()
	s.SecretHash = secretsService.HashForStorage(secret)
	return secret
}
