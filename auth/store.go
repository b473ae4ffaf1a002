// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"sync"
	"time"
)

// pendingLogin is an authorization request waiting for the user to log in.
type pendingLogin struct {
	clientID      string
	redirectURI   string
	clientState   string
	codeChallenge string
	scopes        []string
	expires       time.Time
}

type authCode struct {
	clientID      string
	redirectURI   string
	codeChallenge string
	scopes        []string
	subject       string
	expires       time.Time
}

type refreshGrant struct {
	clientID string
	scopes   []string
	subject  string
	expires  time.Time
}

// store holds all provider state in memory. Expired entries are dropped
// lazily when new ones are added.
type store struct {
	mu      sync.Mutex
	clients map[string]*ClientInformation
	pending map[string]*pendingLogin
	codes   map[string]*authCode
	refresh map[string]*refreshGrant
}

func newStore() *store {
	return &store{
		clients: make(map[string]*ClientInformation),
		pending: make(map[string]*pendingLogin),
		codes:   make(map[string]*authCode),
		refresh: make(map[string]*refreshGrant),
	}
}

// addClient stores c unless the registry already holds limit clients.
func (s *store) addClient(c *ClientInformation, limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= limit {
		return false
	}
	s.clients[c.ClientID] = c
	return true
}

func (s *store) client(id string) (*ClientInformation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

func (s *store) addPending(id string, pl *pendingLogin, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.pending {
		if now.After(v.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[id] = pl
}

// peekPending returns the pending login without consuming it.
func (s *store) peekPending(id string, now time.Time) (*pendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.pending[id]
	if !ok || now.After(pl.expires) {
		return nil, false
	}
	return pl, true
}

// takePending removes and returns the pending login.
func (s *store) takePending(id string, now time.Time) (*pendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.pending[id]
	if !ok {
		return nil, false
	}
	delete(s.pending, id)
	if now.After(pl.expires) {
		return nil, false
	}
	return pl, true
}

func (s *store) addCode(code string, ac *authCode, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.codes {
		if now.After(v.expires) {
			delete(s.codes, k)
		}
	}
	s.codes[code] = ac
}

// takeCode removes and returns the code; codes are single use.
func (s *store) takeCode(code string) (*authCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.codes[code]
	delete(s.codes, code)
	return ac, ok
}

func (s *store) addRefresh(token string, g *refreshGrant, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.refresh {
		if now.After(v.expires) {
			delete(s.refresh, k)
		}
	}
	s.refresh[token] = g
}

// takeRefresh removes and returns the grant; refresh tokens are single use.
func (s *store) takeRefresh(token string, now time.Time) (*refreshGrant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.refresh[token]
	delete(s.refresh, token)
	if !ok || now.After(g.expires) {
		return nil, false
	}
	return g, true
}

func (s *store) counts() (clients, refresh int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients), len(s.refresh)
}
