// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/basicmcp/basic-mcp-server/internal/util"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

const maxRegistrationBody = 64 << 10

var supportedGrantTypes = []string{"authorization_code", "refresh_token"}

// handleRegister implements dynamic client registration (RFC 7591).
func (p *Provider) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !p.cfg.RegisterLimit.Allow() {
		writeOAuthError(w, http.StatusTooManyRequests, errInvalidRequest, "too many registrations")
		return
	}
	var meta ClientMetadata
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBody)).Decode(&meta); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidClientMetadata, "malformed registration request")
		return
	}
	info, code, err := p.registerClient(&meta)
	if errors.Is(err, ErrTooManyClients) {
		p.logger.Warn("client registration refused", "err", err)
		writeOAuthError(w, http.StatusServiceUnavailable, code, err.Error())
		return
	}
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, code, err.Error())
		return
	}
	p.logger.Info("client registered", "client_id", info.ClientID, "client_name", info.ClientName)
	writeJSON(w, http.StatusCreated, info)
}

// registerClient validates meta and stores a new client. On failure it
// returns the OAuth error code to report.
func (p *Provider) registerClient(meta *ClientMetadata) (*ClientInformation, string, error) {
	if len(meta.RedirectURIs) == 0 {
		return nil, errInvalidRedirectURI, fmt.Errorf("redirect_uris is required")
	}
	for _, uri := range meta.RedirectURIs {
		if !util.IsSafeRedirect(uri) {
			return nil, errInvalidRedirectURI, fmt.Errorf("redirect URI %q must be https or loopback http", uri)
		}
	}
	if len(meta.GrantTypes) == 0 {
		meta.GrantTypes = supportedGrantTypes
	}
	for _, g := range meta.GrantTypes {
		if !slices.Contains(supportedGrantTypes, g) {
			return nil, errInvalidClientMetadata, fmt.Errorf("unsupported grant type %q", g)
		}
	}
	if len(meta.ResponseTypes) == 0 {
		meta.ResponseTypes = []string{"code"}
	}
	if !slices.Equal(meta.ResponseTypes, []string{"code"}) {
		return nil, errInvalidClientMetadata, fmt.Errorf("only the code response type is supported")
	}
	switch meta.TokenEndpointAuthMethod {
	case "":
		meta.TokenEndpointAuthMethod = "client_secret_post"
	case "client_secret_post", "client_secret_basic", "none":
	default:
		return nil, errInvalidClientMetadata, fmt.Errorf("unsupported token endpoint auth method %q", meta.TokenEndpointAuthMethod)
	}
	if meta.Scope == "" {
		meta.Scope = p.cfg.Scope
	}
	if !p.scopesAllowed(strings.Fields(meta.Scope)) {
		return nil, errInvalidClientMetadata, fmt.Errorf("scope %q is not supported", meta.Scope)
	}

	info := &ClientInformation{
		ClientMetadata:   *meta,
		ClientID:         uuid.NewString(),
		ClientIDIssuedAt: p.cfg.Now().Unix(),
	}
	if meta.TokenEndpointAuthMethod != "none" {
		info.ClientSecret = rand.Text()
	}
	if !p.store.addClient(info, p.cfg.MaxClients) {
		return nil, errServerError, ErrTooManyClients
	}
	return info, "", nil
}
