package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)

// Signer is an interface for signing and verifying self-contained tokens
type Signer interface {
	// Sign creates a signed token from claims
	Sign(claims jwt.MapClaims) (string, error)

	// Verify parses and validates a token, returning its claims
	Verify(rawToken string) (jwt.MapClaims, error)
}

// KeyPairSigner implements Signer using the hub's RSA key pair (RS256)
type KeyPairSigner struct {
	keyPair *KeyPair
}

// NewKeyPairSigner creates a new key pair signer with the given key pair
func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{
		keyPair: keyPair,
	}
}

func (a *KeyPairSigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = a.keyPair.KeyID

	signedToken, err := token.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with asymmetric key")
	}
	return signedToken, nil
}

func (a *KeyPairSigner) Verify(rawToken string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.keyPair.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(ErrTokenExpired, "[KeyPairSigner.Verify]")
		}
		return nil, errors.Wrap(ErrInvalidSignature, "[KeyPairSigner.Verify]")
	}
	if !parsed.Valid {
		return nil, errors.Wrap(ErrInvalidSignature, "[KeyPairSigner.Verify] token not valid")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrInvalidSignature, "[KeyPairSigner.Verify] error extracting claims")
	}
	return claims, nil
}

// GetJWKS returns the JSON Web Key Set for the signer's public key
func (a *KeyPairSigner) GetJWKS() (*JWKS, error) {
	jwk, err := a.keyPair.ToJWK()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert key to JWK")
	}

	return &JWKS{
		Keys: []JWK{*jwk},
	}, nil
}
