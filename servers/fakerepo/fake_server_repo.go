package fakeserverrepo

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/C010UR/fangi-prototype-sub000/servers"
)

var _ servers.Repo = (*FakeServerRepo)(nil)

type FakeServerRepo struct {
	servers map[string]*servers.Server // keyed by client ID
	lock    sync.RWMutex
}

func NewFakeServerRepo() servers.Repo {
	return &FakeServerRepo{
		servers: make(map[string]*servers.Server),
	}
}

func (sr *FakeServerRepo) Upsert(server *servers.Server) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	if server.ClientID == "" {
		return errors.New("server has no client ID")
	}
	sr.servers[server.ClientID] = server
	return nil
}

func (sr *FakeServerRepo) Delete(clientID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.servers[clientID]; !ok {
		return errors.New("not found")
	}
	delete(sr.servers, clientID)
	return nil
}

func (sr *FakeServerRepo) GetByClientID(clientID string) (*servers.Server, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	server, ok := sr.servers[clientID]
	if !ok {
		return nil, errors.New("not found")
	}
	return server, nil
}

func (sr *FakeServerRepo) List(offset, limit int) ([]*servers.Server, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	serverList := make([]*servers.Server, 0, len(sr.servers))
	for _, v := range sr.servers {
		serverList = append(serverList, v)
	}

	sort.Slice(serverList, func(i, j int) bool {
		return serverList[i].ClientID < serverList[j].ClientID
	})

	if offset > len(serverList) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(serverList) {
		end = len(serverList)
	}
	return serverList[offset:end], nil
}
