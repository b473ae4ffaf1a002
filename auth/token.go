// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	mcpauth "github.com/modelcontextprotocol/go-sdk/auth"
	"golang.org/x/oauth2"
)

// accessClaims are the claims of an issued access token.
type accessClaims struct {
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// handleToken serves the authorization_code and refresh_token grants.
func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed form")
		return
	}
	client, ok := p.authenticateClient(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "client authentication failed")
		return
	}
	switch gt := r.PostForm.Get("grant_type"); gt {
	case "authorization_code":
		p.exchangeCode(w, r, client)
	case "refresh_token":
		p.refreshToken(w, r, client)
	default:
		writeOAuthError(w, http.StatusBadRequest, errUnsupportedGrantType, fmt.Sprintf("grant type %q is not supported", gt))
	}
}

// authenticateClient identifies the client from client_secret_basic,
// client_secret_post or, for public clients, a bare client_id.
func (p *Provider) authenticateClient(r *http.Request) (*ClientInformation, bool) {
	id, secret, basic := r.BasicAuth()
	if !basic {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	client, ok := p.store.client(id)
	if !ok {
		return nil, false
	}
	if client.TokenEndpointAuthMethod == "none" {
		return client, true
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(client.ClientSecret)) != 1 {
		return nil, false
	}
	return client, true
}

func (p *Provider) exchangeCode(w http.ResponseWriter, r *http.Request, client *ClientInformation) {
	ac, ok := p.store.takeCode(r.PostForm.Get("code"))
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "unknown authorization code")
		return
	}
	switch {
	case p.cfg.Now().After(ac.expires):
		writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "authorization code expired")
		return
	case ac.clientID != client.ClientID:
		writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "authorization code was issued to another client")
		return
	case ac.redirectURI != r.PostForm.Get("redirect_uri"):
		writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "redirect_uri mismatch")
		return
	}
	verifier := r.PostForm.Get("code_verifier")
	if verifier == "" || oauth2.S256ChallengeFromVerifier(verifier) != ac.codeChallenge {
		writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "PKCE verification failed")
		return
	}
	p.issue(w, client, ac.subject, ac.scopes)
}

func (p *Provider) refreshToken(w http.ResponseWriter, r *http.Request, client *ClientInformation) {
	g, ok := p.store.takeRefresh(r.PostForm.Get("refresh_token"), p.cfg.Now())
	if !ok || g.clientID != client.ClientID {
		writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "unknown refresh token")
		return
	}
	scopes := g.scopes
	if req := strings.Fields(r.PostForm.Get("scope")); len(req) > 0 {
		for _, s := range req {
			if !slices.Contains(g.scopes, s) {
				writeOAuthError(w, http.StatusBadRequest, errInvalidScope, "scope exceeds the original grant")
				return
			}
		}
		scopes = req
	}
	p.issue(w, client, g.subject, scopes)
}

// issue writes a token response with a fresh access token and a rotated
// refresh token.
func (p *Provider) issue(w http.ResponseWriter, client *ClientInformation, subject string, scopes []string) {
	access, err := p.IssueAccessToken(subject, client.ClientID, scopes)
	if err != nil {
		p.logger.Error("signing access token", "err", err)
		writeOAuthError(w, http.StatusInternalServerError, errServerError, "could not issue token")
		return
	}
	resp := &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(p.cfg.TokenTTL / time.Second),
		Scope:       strings.Join(scopes, " "),
	}
	if slices.Contains(client.GrantTypes, "refresh_token") {
		resp.RefreshToken = rand.Text()
		now := p.cfg.Now()
		p.store.addRefresh(resp.RefreshToken, &refreshGrant{
			clientID: client.ClientID,
			scopes:   scopes,
			subject:  subject,
			expires:  now.Add(p.cfg.RefreshTTL),
		}, now)
	}
	p.logger.Info("token issued", "client_id", client.ClientID, "sub", subject, "scope", resp.Scope)
	writeJSON(w, http.StatusOK, resp)
}

// IssueAccessToken signs an access token for subject.
func (p *Provider) IssueAccessToken(subject, clientID string, scopes []string) (string, error) {
	now := p.cfg.Now()
	claims := &accessClaims{
		Scope:    strings.Join(scopes, " "),
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{p.cfg.Resource},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.SigningKey)
}

// Verify checks an access token issued by p. It has the signature of the
// SDK's auth.TokenVerifier and is meant for auth.RequireBearerToken.
func (p *Provider) Verify(_ context.Context, token string, _ *http.Request) (*mcpauth.TokenInfo, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return p.cfg.SigningKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(p.cfg.Resource),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.cfg.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mcpauth.ErrInvalidToken, err)
	}
	return &mcpauth.TokenInfo{
		Scopes:     strings.Fields(claims.Scope),
		Expiration: claims.ExpiresAt.Time,
		Extra: map[string]any{
			"sub":       claims.Subject,
			"client_id": claims.ClientID,
		},
	}, nil
}
