// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth is a small in-memory OAuth 2.1 authorization server guarding
// the MCP endpoint with a single demo username and password.
//
// The MCP SDK supplies the resource-server half (bearer token middleware);
// this package supplies the endpoints a client needs to obtain a token:
// metadata discovery, dynamic client registration, the authorization code
// flow with PKCE, a login form and the token endpoint. Access tokens are
// HS256 JWTs that [Provider.Verify] checks for the SDK middleware.
//
// Nothing is persisted: restarting the server invalidates every client,
// code and token.
package auth

import (
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DemoUsername and DemoPassword are the only accepted credentials.
	DemoUsername = "demo_user"
	DemoPassword = "demo_password"

	// DefaultScope is required to call the MCP endpoint.
	DefaultScope = "user"
)

// Config configures a Provider.
type Config struct {
	// Issuer is the base URL of the server, e.g. http://localhost:8000.
	Issuer string
	// Resource is the URL of the protected MCP endpoint; it becomes the
	// audience of issued tokens.
	Resource string
	// Scope is the scope granted to and required from clients.
	Scope string

	Username string
	Password string

	// SigningKey is the HS256 key for access tokens. If empty, a random key
	// is generated, so tokens do not survive a restart.
	SigningKey []byte

	TokenTTL time.Duration // access token lifetime; default 1h
	CodeTTL  time.Duration // authorization code lifetime; default 5m
	LoginTTL time.Duration // how long a login form stays valid; default 10m
	// RefreshTTL is how long an unused refresh token stays valid; default 24h.
	RefreshTTL time.Duration

	// MaxClients caps dynamic registrations; default 1000.
	MaxClients int
	// RegisterLimit bounds registrations across all callers.
	// If nil, 1 per second with a burst of 20 is allowed.
	RegisterLimit *rate.Limiter

	// LoginLimit bounds credential checks across all clients.
	// If nil, 5 attempts per second with a burst of 10 are allowed.
	LoginLimit *rate.Limiter

	Logger *slog.Logger
	// Now is the clock; if nil, time.Now is used.
	Now func() time.Time
}

// Provider serves the authorization endpoints and verifies the tokens it issues.
type Provider struct {
	cfg    Config
	store  *store
	logger *slog.Logger
}

// New returns a Provider for cfg, filling in defaults.
func New(cfg Config) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	if _, err := url.Parse(cfg.Issuer); err != nil {
		return nil, err
	}
	cfg.Issuer = strings.TrimSuffix(cfg.Issuer, "/")
	if cfg.Resource == "" {
		cfg.Resource = cfg.Issuer
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	switch {
	case cfg.Username == "" && cfg.Password == "":
		cfg.Username, cfg.Password = DemoUsername, DemoPassword
	case cfg.Username == "" || cfg.Password == "":
		return nil, errors.New("auth: username and password must be set together")
	}
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = make([]byte, 32)
		if _, err := rand.Read(cfg.SigningKey); err != nil {
			return nil, err
		}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.LoginTTL <= 0 {
		cfg.LoginTTL = 10 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 1000
	}
	if cfg.RegisterLimit == nil {
		cfg.RegisterLimit = rate.NewLimiter(rate.Limit(1), 20)
	}
	if cfg.LoginLimit == nil {
		cfg.LoginLimit = rate.NewLimiter(rate.Limit(5), 10)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:    cfg,
		store:  newStore(),
		logger: logger.With("component", "auth"),
	}, nil
}

// Register mounts the authorization endpoints on mux.
func (p *Provider) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+WellKnownAuthServer, p.handleAuthServerMetadata)
	mux.HandleFunc("GET "+WellKnownProtectedResource, p.handleResourceMetadata)
	mux.HandleFunc("GET "+WellKnownProtectedResource+"/", p.handleResourceMetadata)
	mux.HandleFunc("POST /register", p.handleRegister)
	mux.HandleFunc("GET /authorize", p.handleAuthorize)
	mux.HandleFunc("GET /login", p.handleLoginPage)
	mux.HandleFunc("POST /login/callback", p.handleLoginCallback)
	mux.HandleFunc("POST /token", p.handleToken)
}

// Scopes returns the scopes required by the MCP endpoint.
func (p *Provider) Scopes() []string {
	return []string{p.cfg.Scope}
}

// ResourceMetadataURL is the RFC 9728 metadata location for the protected
// resource, advertised in WWW-Authenticate challenges.
func (p *Provider) ResourceMetadataURL() string {
	u, err := url.Parse(p.cfg.Resource)
	if err != nil || u.Path == "" || u.Path == "/" {
		return p.cfg.Issuer + WellKnownProtectedResource
	}
	return p.cfg.Issuer + WellKnownProtectedResource + u.Path
}

// Metadata returns the authorization server metadata.
func (p *Provider) Metadata() *AuthServerMetadata {
	return &AuthServerMetadata{
		Issuer:                            p.cfg.Issuer,
		AuthorizationEndpoint:             p.cfg.Issuer + "/authorize",
		TokenEndpoint:                     p.cfg.Issuer + "/token",
		RegistrationEndpoint:              p.cfg.Issuer + "/register",
		ScopesSupported:                   p.Scopes(),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic", "none"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	}
}

func (p *Provider) handleAuthServerMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.Metadata())
}

func (p *Provider) handleResourceMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &ProtectedResourceMetadata{
		Resource:               p.cfg.Resource,
		AuthorizationServers:   []string{p.cfg.Issuer},
		ScopesSupported:        p.Scopes(),
		BearerMethodsSupported: []string{"header"},
		ResourceName:           "Basic MCP Server",
	})
}

// scopesAllowed reports whether every scope in requested is one we grant.
func (p *Provider) scopesAllowed(requested []string) bool {
	for _, s := range requested {
		if !slices.Contains(p.Scopes(), s) {
			return false
		}
	}
	return true
}
