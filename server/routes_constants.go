package server

// Route path constants
// All hub routes are defined here to ensure consistency and prevent typos
const (
	// OAuth2 / OIDC Routes
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteOAuthAuthorize        = "/oauth/authorize"
	RouteOAuthToken            = "/oauth/token"
	RouteUserInfo              = "/userinfo"
)
