package server

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/C010UR/fangi-prototype-sub000/grants"
	"github.com/C010UR/fangi-prototype-sub000/internal/config"
	"github.com/C010UR/fangi-prototype-sub000/token"
	"github.com/C010UR/fangi-prototype-sub000/users"
)

// Authenticator resolves the principal behind a request to the authorize
// endpoint. The hub wires its session layer here; tests inject a stub.
type Authenticator func(r *http.Request) (*users.User, error)

// Deps carries the domain services the server fronts.
type Deps struct {
	Grants       *grants.Manager
	Issuer       *token.Issuer
	Signer       *token.KeyPairSigner
	Users        users.Repo
	Authenticate Authenticator
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config

	grants       *grants.Manager
	issuer       *token.Issuer
	signer       *token.KeyPairSigner
	users        users.Repo
	authenticate Authenticator
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Grants == nil || deps.Issuer == nil || deps.Signer == nil || deps.Users == nil {
		return nil, errors.New("[Server New] missing dependencies")
	}
	if deps.Authenticate == nil {
		return nil, errors.New("[Server New] missing authenticator")
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       cfg,
		grants:       deps.Grants,
		issuer:       deps.Issuer,
		signer:       deps.Signer,
		users:        deps.Users,
		authenticate: deps.Authenticate,
	}
	s.env = cfg.Environment

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	// OAuth2 / OIDC API routes
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOAuthAuthorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuthAuthorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...)) // For form-posted authorization requests
	s.RegisterRouteHandler("POST "+RouteOAuthToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))

	// Protected endpoints (require a valid access token)
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware()...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Str("method", method).Str("path", path).Msg("route registered")
}
