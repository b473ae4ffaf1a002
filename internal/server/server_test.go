// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/basicmcp/basic-mcp-server/auth"
	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/basicmcp/basic-mcp-server/internal/timetool"
	"github.com/basicmcp/basic-mcp-server/internal/wstransport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func settings(tr config.Transport, authOn bool) *config.ServerSettings {
	return &config.ServerSettings{
		Host:           "127.0.0.1",
		Port:           8000,
		Transport:      tr,
		Stateless:      tr == config.TransportStreamable,
		Auth:           authOn,
		AllowedOrigins: []string{"*"},
	}
}

func TestNewEachTransport(t *testing.T) {
	for _, name := range config.Transports() {
		t.Run(name, func(t *testing.T) {
			tr, err := config.ParseTransport(name)
			if err != nil {
				t.Fatal(err)
			}
			s, err := New(settings(tr, true), discard)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := s.Provider() != nil, tr.IsHTTP(); got != want {
				t.Errorf("has provider = %t, want %t", got, want)
			}
			if tr.IsHTTP() && s.Handler() == nil {
				t.Error("nil handler")
			}
		})
	}
}

func TestServeRejectsStdio(t *testing.T) {
	s, err := New(settings(config.TransportStdio, false), discard)
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Serve(context.Background(), ln); err == nil {
		t.Error("Serve on stdio settings: got nil error")
	}
}

func TestUnauthorized(t *testing.T) {
	for _, tr := range []config.Transport{config.TransportStreamable, config.TransportSSE, config.TransportWebSocket} {
		t.Run(string(tr), func(t *testing.T) {
			s, err := New(settings(tr, true), discard)
			if err != nil {
				t.Fatal(err)
			}
			srv := httptest.NewServer(s.Handler())
			defer srv.Close()

			resp, err := http.Get(srv.URL + tr.Endpoint())
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("got %d, want 401", resp.StatusCode)
			}
			if got := resp.Header.Get("WWW-Authenticate"); !strings.Contains(got, auth.WellKnownProtectedResource) {
				t.Errorf("WWW-Authenticate = %q", got)
			}

			// Discovery stays public.
			resp, err = http.Get(srv.URL + auth.WellKnownAuthServer)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("metadata: got %d, want 200", resp.StatusCode)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	st := settings(config.TransportStreamable, true)
	st.AllowedOrigins = []string{"http://app.example"}
	s, err := New(st, discard)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

// start serves s on a fresh loopback port and returns the settings used.
func start(t *testing.T, tr config.Transport, authOn bool) (*Server, *config.ServerSettings) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	st := settings(tr, authOn)
	st.Port = ln.Addr().(*net.TCPAddr).Port
	s, err := New(st, discard)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return s, st
}

func TestEndToEnd(t *testing.T) {
	for _, tt := range []struct {
		tr     config.Transport
		authOn bool
	}{
		{config.TransportStreamable, true},
		{config.TransportStreamable, false},
		{config.TransportSSE, true},
		{config.TransportWebSocket, true},
	} {
		name := string(tt.tr)
		if !tt.authOn {
			name += "-noauth"
		}
		t.Run(name, func(t *testing.T) {
			s, st := start(t, tt.tr, tt.authOn)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var ts oauth2.TokenSource
			httpClient := http.DefaultClient
			if tt.authOn {
				tok, err := s.Provider().IssueAccessToken(auth.DemoUsername, "test-client", s.Provider().Scopes())
				if err != nil {
					t.Fatal(err)
				}
				ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
				httpClient = oauth2.NewClient(ctx, ts)
			}

			var transport mcp.Transport
			endpoint := st.ServerURL() + tt.tr.Endpoint()
			switch tt.tr {
			case config.TransportStreamable:
				transport = &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: httpClient}
			case config.TransportSSE:
				transport = &mcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: httpClient}
			case config.TransportWebSocket:
				transport = &wstransport.ClientTransport{
					URL:         "ws" + strings.TrimPrefix(endpoint, "http"),
					TokenSource: ts,
				}
			}

			client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
			cs, err := client.Connect(ctx, transport, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer cs.Close()

			if got := cs.InitializeResult().ServerInfo.Name; got != Name {
				t.Errorf("server name = %q, want %q", got, Name)
			}
			res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: timetool.Name})
			if err != nil {
				t.Fatal(err)
			}
			if res.IsError {
				t.Fatalf("tool error: %v", res.Content)
			}
			text := res.Content[0].(*mcp.TextContent).Text
			got, err := time.Parse(timetool.Layout, text)
			if err != nil {
				t.Fatalf("%q: %v", text, err)
			}
			if d := time.Since(got); d < -2*time.Second || d > time.Minute {
				t.Errorf("time %s is %s away from now", text, d)
			}
		})
	}
}
