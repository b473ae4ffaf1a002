// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/basicmcp/basic-mcp-server/auth"
	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/basicmcp/basic-mcp-server/internal/server"
)

// serve runs a server on a loopback port and returns matching client settings.
func serve(t *testing.T, tr config.Transport, authOn bool) *config.ClientSettings {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	s, err := server.New(&config.ServerSettings{
		Host:           "127.0.0.1",
		Port:           port,
		Transport:      tr,
		Stateless:      tr == config.TransportStreamable,
		Auth:           authOn,
		AllowedOrigins: []string{"*"},
	}, discard)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return &config.ClientSettings{
		Host:         "127.0.0.1",
		Port:         port,
		Transport:    tr,
		CallbackHost: "127.0.0.1",
		CallbackPort: freePort(t),
		Login:        config.LoginTerminal,
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

type fakePrompter struct {
	username, password string
	calls              []string
}

func (p *fakePrompter) Prompt(label string) (string, error) {
	p.calls = append(p.calls, label)
	return p.username, nil
}

func (p *fakePrompter) PromptSecret(label string) (string, error) {
	p.calls = append(p.calls, label)
	return p.password, nil
}

func TestTerminalLogin(t *testing.T) {
	for _, tr := range []config.Transport{config.TransportStreamable, config.TransportSSE, config.TransportWebSocket} {
		t.Run(string(tr), func(t *testing.T) {
			settings := serve(t, tr, true)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			p := &fakePrompter{username: auth.DemoUsername, password: auth.DemoPassword}
			a := &Authenticator{Settings: settings, Prompter: p, Logger: discard}
			tok, err := a.Login(ctx)
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if tok.AccessToken == "" || tok.RefreshToken == "" {
				t.Errorf("incomplete token %+v", tok)
			}
			if len(p.calls) != 2 {
				t.Errorf("prompted %v, want username and password", p.calls)
			}

			ts, err := a.TokenSource(ctx)
			if err != nil {
				t.Fatal(err)
			}
			c := New(settings, ts, discard)
			if err := c.Connect(ctx); err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			res, err := c.GetTime(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if res.Timezone != "UTC" || res.Formatted == "" {
				t.Errorf("GetTime = %+v", res)
			}
		})
	}
}

func TestTerminalLoginRejected(t *testing.T) {
	settings := serve(t, config.TransportStreamable, true)
	for _, tt := range []struct{ user, pass string }{
		{auth.DemoUsername, "wrong"},
		{"someone", auth.DemoPassword},
	} {
		s := *settings
		s.Username, s.Password = tt.user, tt.pass
		_, err := Login(context.Background(), &s, nil)
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q): got %v, want ErrInvalidCredentials", tt.user, tt.pass, err)
		}
	}
}

func TestConnectWithoutToken(t *testing.T) {
	settings := serve(t, config.TransportStreamable, true)
	c := New(settings, nil, discard)
	if err := c.Connect(context.Background()); err == nil {
		c.Close()
		t.Fatal("Connect without a token succeeded")
	}
}

func TestLoginNoAuthServer(t *testing.T) {
	settings := serve(t, config.TransportStreamable, false)
	_, err := Login(context.Background(), settings, &fakePrompter{})
	if !errors.Is(err, ErrNoAuthServer) {
		t.Fatalf("got %v, want ErrNoAuthServer", err)
	}
	c := New(settings, nil, discard)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.GetTime(context.Background()); err != nil {
		t.Error(err)
	}
}

// TestBrowserLogin plays the browser: it follows the authorization URL,
// submits the login form and delivers the redirect to the callback server.
func TestBrowserLogin(t *testing.T) {
	settings := serve(t, config.TransportStreamable, true)
	settings.Login = config.LoginBrowser
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	browser := func(authURL string) error {
		go func() {
			resp, err := noRedirect.Get(authURL)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			login, _ := resp.Location()
			resp, err = noRedirect.PostForm(login.Scheme+"://"+login.Host+"/login/callback", url.Values{
				"state":    {login.Query().Get("state")},
				"username": {auth.DemoUsername},
				"password": {auth.DemoPassword},
			})
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			cb := resp.Header.Get("Location")
			if !strings.HasPrefix(cb, settings.RedirectURL()) {
				t.Errorf("redirect %q does not target %s", cb, settings.RedirectURL())
				return
			}
			resp, err = http.Get(cb)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
	a := &Authenticator{Settings: settings, OpenBrowser: browser, Logger: discard}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := a.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestCallbackServer(t *testing.T) {
	for _, tt := range []struct {
		query     string
		wantCode  string
		wantState string
		wantErr   bool
	}{
		{"code=abc&state=xyz", "abc", "xyz", false},
		{"error=access_denied&state=xyz", "", "xyz", true},
	} {
		cb := NewCallbackServer("127.0.0.1:0", discard)
		if err := cb.Start(); err != nil {
			t.Fatal(err)
		}
		resp, err := http.Get("http://" + cb.Addr() + "/callback?" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		code, state, err := cb.Wait(context.Background(), time.Second)
		if (err != nil) != tt.wantErr || code != tt.wantCode || state != tt.wantState {
			t.Errorf("%s: got (%q, %q, %v)", tt.query, code, state, err)
		}
		cb.Stop()
	}

	cb := NewCallbackServer("127.0.0.1:0", discard)
	if err := cb.Start(); err != nil {
		t.Fatal(err)
	}
	defer cb.Stop()
	if _, _, err := cb.Wait(context.Background(), 10*time.Millisecond); err == nil {
		t.Error("Wait without a callback: got nil error")
	}
}

func TestReadLine(t *testing.T) {
	r := strings.NewReader("demo_user\r\nrest")
	got, err := readLine(r)
	if err != nil || got != "demo_user" {
		t.Fatalf("readLine = %q, %v", got, err)
	}
	if got, err := readLine(r); err != nil || got != "rest" {
		t.Errorf("second readLine = %q, %v", got, err)
	}
	if _, err := readLine(r); err == nil {
		t.Error("readLine at EOF: got nil error")
	}
}

func TestTokenStore(t *testing.T) {
	var s TokenStore
	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty store: got %v, want ErrNoToken", err)
	}
	if s.ClientInfo() != nil {
		t.Error("empty store has client info")
	}
	s.SetClientInfo(&auth.ClientInformation{ClientID: "c"})
	if got := s.ClientInfo().ClientID; got != "c" {
		t.Errorf("ClientID = %q", got)
	}
}
