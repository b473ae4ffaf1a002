// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/basicmcp/basic-mcp-server/auth"
	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/basicmcp/basic-mcp-server/internal/util"
	"github.com/segmentio/encoding/json"
	"golang.org/x/oauth2"
)

// ErrNoAuthServer is returned by Login when the server does not advertise
// OAuth metadata, i.e. it runs without authentication.
var ErrNoAuthServer = errors.New("server does not advertise an authorization server")

// callbackTimeout bounds how long browser login waits for the redirect.
const callbackTimeout = 5 * time.Minute

// Authenticator obtains an access token for an MCP server using the
// authorization code flow with PKCE.
type Authenticator struct {
	Settings *config.ClientSettings
	// Prompter collects credentials in terminal mode. Username and
	// password from Settings take precedence.
	Prompter Prompter
	// Out receives progress messages. If nil, they are discarded.
	Out io.Writer
	// Store holds the token and client registration. If nil, a new one is used.
	Store *TokenStore
	// HTTPClient is used for every request. If nil, http.DefaultClient.
	HTTPClient *http.Client
	// OpenBrowser opens a URL in browser mode. If nil, the platform opener is used.
	OpenBrowser func(string) error
	Logger      *slog.Logger

	oauth *oauth2.Config
}

// Login is a convenience for (&Authenticator{...}).Login.
func Login(ctx context.Context, settings *config.ClientSettings, p Prompter) (*oauth2.Token, error) {
	a := &Authenticator{Settings: settings, Prompter: p}
	return a.Login(ctx)
}

func (a *Authenticator) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Authenticator) printf(format string, args ...any) {
	if a.Out != nil {
		fmt.Fprintf(a.Out, format, args...)
	}
}

// Login discovers the authorization server, registers a client, runs the
// configured login mode and exchanges the code for a token.
func (a *Authenticator) Login(ctx context.Context) (*oauth2.Token, error) {
	if a.Store == nil {
		a.Store = &TokenStore{}
	}
	s := a.Settings

	prm, err := a.discoverResource(ctx)
	if err != nil {
		return nil, err
	}
	issuer := strings.TrimSuffix(s.BaseURL(), "/")
	if len(prm.AuthorizationServers) > 0 {
		issuer = prm.AuthorizationServers[0]
	}
	var asm auth.AuthServerMetadata
	if err := a.getJSON(ctx, issuer+auth.WellKnownAuthServer, &asm); err != nil {
		return nil, fmt.Errorf("authorization server metadata: %w", err)
	}
	a.logger().Debug("discovered authorization server", "issuer", asm.Issuer, "resource", prm.Resource)

	info, err := a.register(ctx, &asm)
	if err != nil {
		return nil, err
	}
	a.oauth = &oauth2.Config{
		ClientID:     info.ClientID,
		ClientSecret: info.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   asm.AuthorizationEndpoint,
			TokenURL:  asm.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: s.RedirectURL(),
		Scopes:      strings.Fields(info.Scope),
	}

	verifier := oauth2.GenerateVerifier()
	state := rand.Text()
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if prm.Resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", prm.Resource))
	}
	authURL := a.oauth.AuthCodeURL(state, opts...)

	var code, gotState string
	switch s.Login {
	case config.LoginBrowser:
		code, gotState, err = a.browserLogin(ctx, authURL)
	default:
		code, gotState, err = a.terminalLogin(ctx, authURL)
	}
	if err != nil {
		return nil, err
	}
	if gotState != state {
		return nil, fmt.Errorf("state mismatch: expected %q, got %q", state, gotState)
	}

	xctx := context.WithValue(ctx, oauth2.HTTPClient, a.httpClient())
	tok, err := a.oauth.Exchange(xctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	a.Store.SetToken(tok)
	a.printf("Access token obtained (expires %s)\n", tok.Expiry.Format(time.RFC3339))
	return tok, nil
}

// TokenSource returns a source that refreshes the token obtained by Login.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if a.oauth == nil || a.Store == nil {
		return nil, ErrNoToken
	}
	tok, err := a.Store.Token()
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient())
	return a.oauth.TokenSource(ctx, tok), nil
}

// discoverResource fetches the protected resource metadata, trying the
// path-specific location first.
func (a *Authenticator) discoverResource(ctx context.Context) (*auth.ProtectedResourceMetadata, error) {
	base := strings.TrimSuffix(a.Settings.BaseURL(), "/")
	var prm auth.ProtectedResourceMetadata
	var err error
	for _, u := range []string{
		base + auth.WellKnownProtectedResource + a.Settings.Transport.Endpoint(),
		base + auth.WellKnownProtectedResource,
	} {
		if err = a.getJSON(ctx, u, &prm); err == nil {
			return &prm, nil
		}
		var se *statusError
		if !errors.As(err, &se) || se.code != http.StatusNotFound {
			return nil, fmt.Errorf("protected resource metadata: %w", err)
		}
	}
	return nil, fmt.Errorf("%w (%v)", ErrNoAuthServer, err)
}

// register reuses a stored registration for the same redirect URI or
// performs dynamic client registration.
func (a *Authenticator) register(ctx context.Context, asm *auth.AuthServerMetadata) (_ *auth.ClientInformation, err error) {
	defer util.Wrapf(&err, "client registration")
	redirect := a.Settings.RedirectURL()
	if info := a.Store.ClientInfo(); info != nil && len(info.RedirectURIs) == 1 && info.RedirectURIs[0] == redirect {
		return info, nil
	}
	if asm.RegistrationEndpoint == "" {
		return nil, errors.New("authorization server does not support dynamic client registration")
	}
	meta := &auth.ClientMetadata{
		ClientName:              "Basic MCP Client",
		RedirectURIs:            []string{redirect},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "client_secret_post",
		Scope:                   strings.Join(asm.ScopesSupported, " "),
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, asm.RegistrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}
	var info auth.ClientInformation
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	a.Store.SetClientInfo(&info)
	a.logger().Debug("client registered", "client_id", info.ClientID)
	return &info, nil
}

// terminalLogin follows the authorization redirect to the login form and
// submits the credentials directly, capturing the code from the final redirect.
func (a *Authenticator) terminalLogin(ctx context.Context, authURL string) (code, state string, err error) {
	hc := *a.httpClient()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("authorize: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return "", "", fmt.Errorf("authorize: %w", newStatusError(resp))
	}
	loginURL, err := resp.Location()
	if err != nil {
		return "", "", fmt.Errorf("authorize: %w", err)
	}
	if err := redirectError(loginURL); err != nil {
		return "", "", err
	}

	username, password := a.Settings.Username, a.Settings.Password
	if username == "" || password == "" {
		if a.Prompter == nil {
			return "", "", errors.New("no credentials configured and no prompter available")
		}
		a.printf("Log in to %s\n", loginURL.Host)
	}
	if username == "" {
		if username, err = a.Prompter.Prompt("Username: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = a.Prompter.PromptSecret("Password: "); err != nil {
			return "", "", err
		}
	}

	form := url.Values{
		"state":    {loginURL.Query().Get("state")},
		"username": {username},
		"password": {password},
	}
	action := loginURL.ResolveReference(&url.URL{Path: "/login/callback"})
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = hc.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusFound:
	case http.StatusUnauthorized:
		return "", "", fmt.Errorf("login as %q: %w", username, auth.ErrInvalidCredentials)
	case http.StatusTooManyRequests:
		return "", "", fmt.Errorf("login: %w", auth.ErrRateLimited)
	default:
		return "", "", fmt.Errorf("login: %w", newStatusError(resp))
	}
	cb, err := resp.Location()
	if err != nil {
		return "", "", fmt.Errorf("login: %w", err)
	}
	if err := redirectError(cb); err != nil {
		return "", "", err
	}
	return cb.Query().Get("code"), cb.Query().Get("state"), nil
}

// browserLogin opens the authorization URL and waits for the redirect on
// the local callback server.
func (a *Authenticator) browserLogin(ctx context.Context, authURL string) (code, state string, err error) {
	s := a.Settings
	cb := NewCallbackServer(net.JoinHostPort(s.CallbackHost, strconv.Itoa(s.CallbackPort)), a.logger())
	if err := cb.Start(); err != nil {
		return "", "", err
	}
	defer cb.Stop()

	a.printf("Opening browser for authorization...\nURL: %s\n", authURL)
	open := a.OpenBrowser
	if open == nil {
		open = openBrowser
	}
	if err := open(authURL); err != nil {
		a.printf("Could not open browser automatically. Please visit the URL above.\n")
	}
	a.printf("Waiting for authorization callback...\n")
	return cb.Wait(ctx, callbackTimeout)
}

func openBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "linux":
		cmd = exec.Command("xdg-open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// redirectError reports an OAuth error carried by a redirect.
func redirectError(u *url.URL) error {
	q := u.Query()
	if e := q.Get("error"); e != "" {
		if d := q.Get("error_description"); d != "" {
			return fmt.Errorf("authorization failed: %s: %s", e, d)
		}
		return fmt.Errorf("authorization failed: %s", e)
	}
	return nil
}

func (a *Authenticator) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// statusError is an unexpected HTTP response.
type statusError struct {
	code int
	body string
}

func newStatusError(resp *http.Response) *statusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("HTTP %d", e.code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}
