// Package grants implements issuance and redemption of single-use
// authorization codes. A code moves from issued to either redeemed (the row
// is atomically consumed) or expired (rejected on lookup, lazily swept).
package grants

import (
	"time"

	"github.com/pkg/errors"

	"github.com/C010UR/fangi-prototype-sub000/scopes"
	"github.com/C010UR/fangi-prototype-sub000/secrets"
	"github.com/C010UR/fangi-prototype-sub000/servers"
	"github.com/C010UR/fangi-prototype-sub000/users"
)

const defaultCodeTTL = 10 * time.Minute

// AuthorizationCode is the stored form of an issued code. Only the hash of
// the opaque token is persisted; the plaintext exists transiently at
// issuance.
type AuthorizationCode struct {
	CodeHash       string
	UserID         string
	ServerClientID string
	Scopes         []string
	State          string
	Nonce          string
	RedirectURI    string
	ExpiresAt      time.Time
}

// Manager validates clients and drives the authorization-code lifecycle.
type Manager struct {
	codes   Repo
	servers servers.Repo
	secrets *secrets.Service
	codeTTL time.Duration
	nowTime func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithCodeTTL overrides the authorization code lifetime.
func WithCodeTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.codeTTL = ttl
	}
}

// NewManager initializes a new Manager with required dependencies.
func NewManager(codes Repo, serverRepo servers.Repo, secretsService *secrets.Service, options ...ManagerOption) (*Manager, error) {
	if codes == nil {
		return nil, errors.New("[NewManager] codes repo is required")
	}
	if serverRepo == nil {
		return nil, errors.New("[NewManager] servers repo is required")
	}
	if secretsService == nil {
		return nil, errors.New("[NewManager] secrets service is required")
	}

	m := &Manager{
		codes:   codes,
		servers: serverRepo,
		secrets: secretsService,
		codeTTL: defaultCodeTTL,
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// lookupActiveClient resolves a client ID to a registered resource server
// that is active and not banned.
func (m *Manager) lookupActiveClient(clientID string) (*servers.Server, error) {
	server, err := m.servers.GetByClientID(clientID)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownClient, "[lookupActiveClient] %s", clientID)
	}
	if server.Banned {
		return nil, errors.Wrapf(ErrClientBanned, "[lookupActiveClient] %s", clientID)
	}
	if !server.Active {
		return nil, errors.Wrapf(ErrClientInactive, "[lookupActiveClient] %s", clientID)
	}
	return server, nil
}

// ValidateRequestingClient checks the resource server a principal wants to
// authorize against: it must exist, be active, not be banned, and the
// redirect URI must sit on its allowlist (an empty allowlist accepts any).
func (m *Manager) ValidateRequestingClient(clientID, redirectURI string) (*servers.Server, error) {
	server, err := m.lookupActiveClient(clientID)
	if err != nil {
		return nil, err
	}
	if !server.AllowsRedirectURI(redirectURI) {
		return nil, errors.Wrapf(ErrRedirectURINotAllowed, "[ValidateRequestingClient] %s", redirectURI)
	}
	return server, nil
}

// ValidateClientCredentials checks client identity and secret without a
// redirect binding; the refresh grant presents no redirect URI. Secret
// comparison is hash-equality only.
func (m *Manager) ValidateClientCredentials(clientID, secret string) (*servers.Server, error) {
	server, err := m.lookupActiveClient(clientID)
	if err != nil {
		return nil, err
	}
	if m.secrets.HashForStorage(secret) != server.SecretHash {
		return nil, errors.Wrapf(ErrInvalidSecret, "[ValidateClientCredentials] %s", clientID)
	}
	return server, nil
}

// ValidateConsumingClient performs the requesting-client checks plus secret
// verification for the party presenting a code at the token endpoint.
func (m *Manager) ValidateConsumingClient(clientID, secret, redirectURI string) (*servers.Server, error) {
	server, err := m.ValidateClientCredentials(clientID, secret)
	if err != nil {
		return nil, err
	}
	if !server.AllowsRedirectURI(redirectURI) {
		return nil, errors.Wrapf(ErrRedirectURINotAllowed, "[ValidateConsumingClient] %s", redirectURI)
	}
	return server, nil
}

// IssueCode validates the requested scope strings, generates an opaque code
// and stores its hash with the grant metadata. The plaintext code is
// returned exactly once.
func (m *Manager) IssueCode(user *users.User, server *servers.Server, scopeStrings []string, state, nonce, redirectURI string) (string, error) {
	scopeSet, err := scopes.Parse(scopeStrings)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.IssueCode] scopes.Parse")
	}

	code := m.secrets.GenerateToken()
	if err := m.codes.Insert(&AuthorizationCode{
		CodeHash:       m.secrets.HashForStorage(code),
		UserID:         user.ID,
		ServerClientID: server.ClientID,
		Scopes:         scopeSet.Strings(),
		State:          state,
		Nonce:          nonce,
		RedirectURI:    redirectURI,
		ExpiresAt:      m.nowTime().Add(m.codeTTL),
	}); err != nil {
		return "", errors.Wrap(err, "[Manager.IssueCode] codes.Insert")
	}
	return code, nil
}

// RedeemCode atomically consumes the stored row for a presented code. A
// second redemption, or a code never issued, fails ErrInvalidCode; a row
// past its expiry is removed by the consume and fails ErrCodeExpired.
func (m *Manager) RedeemCode(rawCode string) (*AuthorizationCode, error) {
	code, err := m.codes.Consume(m.secrets.HashForStorage(rawCode))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCode, "[Manager.RedeemCode] codes.Consume")
	}
	if m.nowTime().After(code.ExpiresAt) {
		return nil, errors.Wrap(ErrCodeExpired, "[Manager.RedeemCode]")
	}
	return code, nil
}

// ValidateCodeBinding checks that a redeemed code was issued to the server
// now consuming it and for the redirect URI now presented.
func (m *Manager) ValidateCodeBinding(code *AuthorizationCode, server *servers.Server, redirectURI string) error {
	if code.ServerClientID != server.ClientID {
		return errors.Wrapf(ErrClientMismatch, "[ValidateCodeBinding] %s", server.ClientID)
	}
	if code.RedirectURI != redirectURI {
		return errors.Wrapf(ErrRedirectURIMismatch, "[ValidateCodeBinding] %s", redirectURI)
	}
	return nil
}
