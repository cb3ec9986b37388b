package fakecoderepo

import (
	"errors"
	"sync"

	"github.com/C010UR/fangi-prototype-sub000/grants"
)

var _ grants.Repo = (*FakeCodeRepo)(nil)

type FakeCodeRepo struct {
	codes map[string]*grants.AuthorizationCode
	lock  sync.Mutex
}

func NewFakeCodeRepo() grants.Repo {
	return &FakeCodeRepo{
		codes: make(map[string]*grants.AuthorizationCode),
	}
}

func (cr *FakeCodeRepo) Insert(code *grants.AuthorizationCode) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	if _, ok := cr.codes[code.CodeHash]; ok {
		return errors.New("duplicate code")
	}
	cr.codes[code.CodeHash] = code
	return nil
}

// Consume removes and returns the stored code under one lock, mirroring a
// delete-returning statement in a relational store.
func (cr *FakeCodeRepo) Consume(codeHash string) (*grants.AuthorizationCode, error) {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	code, ok := cr.codes[codeHash]
	if !ok {
		return nil, errors.New("not found")
	}
	delete(cr.codes, codeHash)
	return code, nil
}
