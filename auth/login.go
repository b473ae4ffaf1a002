// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// handleAuthorize validates an authorization request and parks it until the
// user logs in. The user agent is sent to the login page.
func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	client, ok := p.store.client(q.Get("client_id"))
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, errInvalidClient, "unknown client_id")
		return
	}
	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" && len(client.RedirectURIs) == 1 {
		redirectURI = client.RedirectURIs[0]
	}
	if !slices.Contains(client.RedirectURIs, redirectURI) {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRedirectURI, "redirect_uri is not registered for this client")
		return
	}
	// From here on errors go back to the client through the redirect.
	state := q.Get("state")
	fail := func(code, desc string) {
		redirectWith(w, r, redirectURI, url.Values{
			"error":             {code},
			"error_description": {desc},
			"state":             {state},
		})
	}
	if q.Get("response_type") != "code" {
		fail(errUnsupportedRespType, "response_type must be code")
		return
	}
	challenge := q.Get("code_challenge")
	if challenge == "" || q.Get("code_challenge_method") != "S256" {
		fail(errInvalidRequest, "PKCE with S256 is required")
		return
	}
	scopes := strings.Fields(q.Get("scope"))
	if len(scopes) == 0 {
		scopes = strings.Fields(client.Scope)
	}
	if !p.scopesAllowed(scopes) {
		fail(errInvalidScope, "requested scope is not supported")
		return
	}
	if res := q.Get("resource"); res != "" && res != p.cfg.Resource && strings.TrimSuffix(res, "/") != p.cfg.Issuer {
		fail(errInvalidTarget, "unknown resource")
		return
	}

	id := uuid.NewString()
	now := p.cfg.Now()
	p.store.addPending(id, &pendingLogin{
		clientID:      client.ClientID,
		redirectURI:   redirectURI,
		clientState:   state,
		codeChallenge: challenge,
		scopes:        scopes,
		expires:       now.Add(p.cfg.LoginTTL),
	}, now)
	http.Redirect(w, r, p.cfg.Issuer+"/login?"+url.Values{"state": {id}}.Encode(), http.StatusFound)
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>MCP Demo Authentication</title></head>
<body>
	<h2>MCP Demo Authentication</h2>
	<p>This is a simplified authentication demo. Use the demo credentials below:</p>
	<p><strong>Username:</strong> {{.Username}}<br>
	<strong>Password:</strong> {{.Password}}</p>
	<form action="{{.Action}}" method="post">
		<input type="hidden" name="state" value="{{.State}}">
		<p><label>Username: <input type="text" name="username" value="{{.Username}}" required></label></p>
		<p><label>Password: <input type="password" name="password" required></label></p>
		<p><button type="submit">Sign In</button></p>
	</form>
</body>
</html>
`))

// handleLoginPage shows the username/password form for a pending authorization.
func (p *Provider) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "Missing state parameter", http.StatusBadRequest)
		return
	}
	if _, ok := p.store.peekPending(state, p.cfg.Now()); !ok {
		http.Error(w, ErrUnknownState.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := loginPage.Execute(w, map[string]string{
		"Action":   p.cfg.Issuer + "/login/callback",
		"State":    state,
		"Username": p.cfg.Username,
		"Password": p.cfg.Password,
	})
	if err != nil {
		p.logger.Error("rendering login page", "err", err)
	}
}

// handleLoginCallback checks the submitted credentials. On success the user
// agent is redirected to the client with an authorization code.
func (p *Provider) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	if !p.cfg.LoginLimit.Allow() {
		http.Error(w, ErrRateLimited.Error(), http.StatusTooManyRequests)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	state := r.PostForm.Get("state")
	now := p.cfg.Now()
	if _, ok := p.store.peekPending(state, now); !ok {
		http.Error(w, ErrUnknownState.Error(), http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")
	if !p.CheckCredentials(username, r.PostForm.Get("password")) {
		p.logger.Warn("login rejected", "username", username, "remote", r.RemoteAddr)
		http.Error(w, ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}
	pl, ok := p.store.takePending(state, now)
	if !ok {
		// Lost a race with a concurrent submission of the same form.
		http.Error(w, ErrUnknownState.Error(), http.StatusBadRequest)
		return
	}
	code := rand.Text()
	p.store.addCode(code, &authCode{
		clientID:      pl.clientID,
		redirectURI:   pl.redirectURI,
		codeChallenge: pl.codeChallenge,
		scopes:        pl.scopes,
		subject:       username,
		expires:       now.Add(p.cfg.CodeTTL),
	}, now)
	p.logger.Info("login accepted", "username", username, "client_id", pl.clientID)

	params := url.Values{"code": {code}}
	if pl.clientState != "" {
		params.Set("state", pl.clientState)
	}
	redirectWith(w, r, pl.redirectURI, params)
}

// CheckCredentials reports whether username and password are the configured pair.
func (p *Provider) CheckCredentials(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(p.cfg.Username))
	pw := subtle.ConstantTimeCompare([]byte(password), []byte(p.cfg.Password))
	return u&pw == 1
}

// redirectWith redirects to target with params merged into its query.
func redirectWith(w http.ResponseWriter, r *http.Request, target string, params url.Values) {
	u, err := url.Parse(target)
	if err != nil {
		http.Error(w, "invalid redirect", http.StatusBadRequest)
		return
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
