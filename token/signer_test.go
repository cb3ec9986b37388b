package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/C010UR/fangi-prototype-sub000/token"
)

func newSigner(t *testing.T) *token.KeyPairSigner {
	t.Helper()
	keyPair, err := token.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	return token.NewKeyPairSigner(keyPair)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := newSigner(t)

	signed, err := signer.Sign(jwt.MapClaims{
		"sub":    "user-1",
		"iss":    "https://hub.example.com",
		"aud":    "client-1",
		"exp":    time.Now().Add(time.Minute).Unix(),
		"scopes": []string{"/docs:rw"},
	})
	require.NoError(t, err)

	claims, err := signer.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "https://hub.example.com", claims["iss"])
	require.Equal(t, "client-1", claims["aud"])
	require.Equal(t, []any{"/docs:rw"}, claims["scopes"])
}

func TestVerifyRejectsForeignKeyPair(t *testing.T) {
	signer := newSigner(t)
	other := newSigner(t)

	signed, err := signer.Sign(jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = other.Verify(signed)
	require.ErrorIs(t, err, token.ErrInvalidSignature)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := newSigner(t)

	_, err := signer.Verify("not.a.token")
	require.ErrorIs(t, err, token.ErrInvalidSignature)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	signer := newSigner(t)

	expired, err := signer.Sign(jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Second).Unix()})
	require.NoError(t, err)
	_, err = signer.Verify(expired)
	require.ErrorIs(t, err, token.ErrTokenExpired)

	alive, err := signer.Sign(jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Second).Unix()})
	require.NoError(t, err)
	_, err = signer.Verify(alive)
	require.NoError(t, err)
}

func TestGetJWKS(t *testing.T) {
	keyPair, err := token.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	signer := token.NewKeyPairSigner(keyPair)

	jwks, err := signer.GetJWKS()
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	require.Equal(t, "RSA", key.Kty)
	require.Equal(t, "RS256", key.Alg)
	require.Equal(t, "sig", key.Use)
	require.Equal(t, keyPair.KeyID, key.Kid)
	require.NotEmpty(t, key.N)
	require.NotEmpty(t, key.E)
}

func TestKeyIDStableAcrossPEMRoundTrip(t *testing.T) {
	keyPair, err := token.GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	pemData, err := keyPair.ExportPrivateKeyPEM()
	require.NoError(t, err)

	loaded, err := token.LoadKeyPairFromPEM(pemData)
	require.NoError(t, err)
	require.Equal(t, keyPair.KeyID, loaded.KeyID)
}
