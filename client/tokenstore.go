// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"errors"
	"sync"

	"github.com/basicmcp/basic-mcp-server/auth"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by an empty TokenStore.
var ErrNoToken = errors.New("no token available; log in first")

// TokenStore keeps the current token and client registration in memory.
// It is an oauth2.TokenSource that never refreshes.
type TokenStore struct {
	mu     sync.Mutex
	token  *oauth2.Token
	client *auth.ClientInformation
}

// Token implements oauth2.TokenSource.
func (s *TokenStore) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, ErrNoToken
	}
	return s.token, nil
}

func (s *TokenStore) SetToken(t *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
}

// ClientInfo returns the stored registration, or nil.
func (s *TokenStore) ClientInfo() *auth.ClientInformation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *TokenStore) SetClientInfo(c *auth.ClientInformation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
}
