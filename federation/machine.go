package federation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/C010UR/fangi-prototype-sub000/oauth2"
	"github.com/C010UR/fangi-prototype-sub000/secrets"
)

// MachineScope is the blanket grant a machine account bootstraps with.
const MachineScope = "/:rw"

// Target is a remote party the machine account needs a bearer for.
type Target struct {
	Name         string // Cache key
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// CodeIssuerFunc produces a fresh authorization code for the machine
// account, scoped to full read-write, bound to the target.
type CodeIssuerFunc func(ctx context.Context, target Target) (string, error)

// CredentialCache stores cached machine bearers. Values are encrypted
// before they reach the cache and decrypted on the way out.
type CredentialCache interface {
	Get(key string) (string, error)
	Put(key, value string) error
}

// MachineAuthenticator maintains the machine credential used for
// service-to-service calls: it probes the cached bearer and re-runs the
// self-service authorization bootstrap when the bearer is missing, expired,
// or rejected with a 401.
type MachineAuthenticator struct {
	issueCode  CodeIssuerFunc
	cache      CredentialCache
	secrets    *secrets.Service
	httpClient *http.Client
}

func NewMachineAuthenticator(issueCode CodeIssuerFunc, cache CredentialCache, secretsService *secrets.Service, timeout time.Duration) *MachineAuthenticator {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &MachineAuthenticator{
		issueCode:  issueCode,
		cache:      cache,
		secrets:    secretsService,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureAuthenticated returns a bearer token accepted by the target. A
// cached bearer is probed with a cheap identity-check call first; a 401
// means "not authenticated" and triggers a fresh bootstrap.
func (m *MachineAuthenticator) EnsureAuthenticated(ctx context.Context, target Target) (string, error) {
	if encrypted, err := m.cache.Get(target.Name); err == nil {
		bearer, err := m.secrets.Decrypt(encrypted)
		if err == nil && m.probe(ctx, target, bearer) {
			return bearer, nil
		}
		log.Debug().Str("target", target.Name).Msg("cached machine bearer rejected, re-authenticating")
	}

	bearer, err := m.authenticate(ctx, target)
	if err != nil {
		return "", err
	}

	encrypted, err := m.secrets.Encrypt(bearer)
	if err != nil {
		return "", errors.Wrap(err, "[EnsureAuthenticated] encrypting bearer")
	}
	if err := m.cache.Put(target.Name, encrypted); err != nil {
		return "", errors.Wrap(err, "[EnsureAuthenticated] caching bearer")
	}

	return bearer, nil
}

// probe performs the identity-check call. Any 2xx means the bearer is live;
// a 401 or any other failure means it is not.
func (m *MachineAuthenticator) probe(ctx context.Context, target Target, bearer string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(target.BaseURL, "/")+"/userinfo", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// authenticate runs the bootstrap: self-grant an authorization code for the
// machine account and redeem it at the target's token endpoint.
func (m *MachineAuthenticator) authenticate(ctx context.Context, target Target) (string, error) {
	code, err := m.issueCode(ctx, target)
	if err != nil {
		return "", errors.Wrap(err, "[authenticate] issueCode")
	}

	form := url.Values{
		"grant_type":    {string(oauth2.AuthorizationCodeGrant)},
		"code":          {code},
		"client_id":     {target.ClientID},
		"client_secret": {target.ClientSecret},
		"redirect_uri":  {target.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(target.BaseURL, "/")+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "[authenticate] building token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(ErrRemoteUnavailable, "[authenticate] token request: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(ErrRemoteUnavailable, "[authenticate] reading response: "+err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Wrapf(ErrRemoteUnavailable, "[authenticate] upstream status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResponse oauth2.TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return "", errors.Wrap(ErrRemoteUnavailable, "[authenticate] malformed token response: "+err.Error())
	}
	if tokenResponse.AccessToken == "" {
		return "", errors.Wrap(ErrAuthentication, "[authenticate] token response missing access token")
	}

	return tokenResponse.AccessToken, nil
}

// InMemoryCredentialCache is the default CredentialCache implementation.
type InMemoryCredentialCache struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewInMemoryCredentialCache() *InMemoryCredentialCache {
	return &InMemoryCredentialCache{values: make(map[string]string)}
}

func (c *InMemoryCredentialCache) Get(key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[key]
	if !ok {
		return "", errors.New("not found")
	}
	return value, nil
}

func (c *InMemoryCredentialCache) Put(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
	return nil
}
