package refreshrepofake

import (
	"errors"
	"sync"

	"github.com/C010UR/fangi-prototype-sub000/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
	}
}

func (tr *FakeRefreshTokenRepo) Insert(token *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[token.TokenHash]; ok {
		return errors.New("duplicate token")
	}
	tr.tokens[token.TokenHash] = token
	return nil
}

// Consume removes and returns the stored token under one lock, giving
// at-most-once redemption under concurrent access.
func (tr *FakeRefreshTokenRepo) Consume(tokenHash string) (*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	token, ok := tr.tokens[tokenHash]
	if !ok {
		return nil, errors.New("not found")
	}
	delete(tr.tokens, tokenHash)
	return token, nil
}

func (tr *FakeRefreshTokenRepo) DeleteByUserAndServer(userID, serverClientID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for hash, token := range tr.tokens {
		if token.UserID == userID && token.ServerClientID == serverClientID {
			delete(tr.tokens, hash)
		}
	}
	return nil
}
