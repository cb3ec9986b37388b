// Package secrets provides the cryptographic primitives backing credential
// integrity: opaque token generation, iterated keyed hashing for at-rest
// storage of codes, refresh tokens and client secrets, and symmetric
// encryption for secrets the hub must later present in plaintext.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	tokenLength    = 32 // 256 bits of entropy for opaque tokens
	hashIterations = 4096
	hashKeyLength  = 32
	minSecretLen   = 16
)

var (
	ErrSecretTooShort      = errors.New("application secret too short")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Service holds the process-wide application secret. It is constructed once
// at startup and treated as immutable for the process lifetime.
type Service struct {
	appSecret []byte
	aesKey    []byte
	iv        []byte
}

// NewService validates the application secret and derives the symmetric key
// material from it. The IV is fixed per process so that encryption of the
// same plaintext is deterministic.
func NewService(appSecret string) (*Service, error) {
	if len(appSecret) < minSecretLen {
		return nil, errors.Wrapf(ErrSecretTooShort, "[NewService] need at least %d bytes", minSecretLen)
	}

	key := sha256.Sum256([]byte(appSecret))
	ivSource := sha256.Sum256([]byte("iv" + appSecret))

	return &Service{
		appSecret: []byte(appSecret),
		aesKey:    key[:],
		iv:        ivSource[:aes.BlockSize],
	}, nil
}

// GenerateToken returns a cryptographically random opaque token. The
// plaintext is returned exactly once; callers persist only its storage hash.
func (s *Service) GenerateToken() string {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand never fails on supported platforms
		panic(errors.Wrap(err, "[Service.GenerateToken] rand.Read"))
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// HashForStorage derives a deterministic keyed digest of a secret for
// at-rest storage. Comparison is always hash-to-hash; the digest is never
// reversed.
func (s *Service) HashForStorage(secret string) string {
	digest := pbkdf2.Key([]byte(secret), s.appSecret, hashIterations, hashKeyLength, sha256.New)
	return hex.EncodeToString(digest)
}

// Encrypt encrypts a plaintext secret with AES-256-CBC keyed by the
// application secret. Used only for secrets the hub must later present in
// plaintext to a third party, such as a cached machine bearer credential.
func (s *Service) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.aesKey)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Encrypt] aes.NewCipher")
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, s.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (s *Service) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(ErrMalformedCiphertext, "[Service.Decrypt] base64 decode")
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.Wrap(ErrMalformedCiphertext, "[Service.Decrypt] invalid length")
	}

	block, err := aes.NewCipher(s.aesKey)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Decrypt] aes.NewCipher")
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", errors.Wrap(ErrMalformedCiphertext, "[Service.Decrypt] padding")
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
