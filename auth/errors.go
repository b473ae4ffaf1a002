// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/segmentio/encoding/json"
)

var (
	// ErrInvalidCredentials is reported when the login form is submitted
	// with anything but the demo username and password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnknownState is reported when a login references no pending authorization.
	ErrUnknownState = errors.New("unknown or expired login state")

	// ErrRateLimited is reported when login attempts arrive too quickly.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrTooManyClients is reported when the client registry is full.
	ErrTooManyClients = errors.New("too many registered clients")
)

// OAuth 2.0 error codes used by the endpoints.
const (
	errInvalidRequest        = "invalid_request"
	errInvalidClient         = "invalid_client"
	errInvalidGrant          = "invalid_grant"
	errInvalidScope          = "invalid_scope"
	errInvalidTarget         = "invalid_target"
	errUnsupportedGrantType  = "unsupported_grant_type"
	errUnsupportedRespType   = "unsupported_response_type"
	errInvalidRedirectURI    = "invalid_redirect_uri"
	errInvalidClientMetadata = "invalid_client_metadata"
	errServerError           = "server_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("writing response", "err", err)
	}
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, &ErrorResponse{Error: code, ErrorDescription: description})
}
