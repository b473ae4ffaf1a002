// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package server assembles the MCP server: the get_time tool, the selected
// transport and, for HTTP transports, the OAuth endpoints guarding it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/basicmcp/basic-mcp-server/auth"
	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/basicmcp/basic-mcp-server/internal/timetool"
	"github.com/basicmcp/basic-mcp-server/internal/util"
	"github.com/basicmcp/basic-mcp-server/internal/wstransport"
	mcpauth "github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
)

const (
	// Name is reported to clients during initialization.
	Name    = "Basic MCP Server"
	Version = "1.0.0"

	shutdownTimeout = 5 * time.Second
)

// Server is a configured MCP server.
type Server struct {
	settings *config.ServerSettings
	logger   *slog.Logger
	mcp      *mcp.Server
	provider *auth.Provider // nil unless an HTTP transport runs with auth
}

// New builds a Server for settings.
func New(settings *config.ServerSettings, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	ms := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, &mcp.ServerOptions{
		Instructions: "Call get_time to read the server clock.",
	})
	ms.AddReceivingMiddleware(loggingMiddleware(logger))
	if err := timetool.Register(ms, &timetool.Tool{Logger: logger}); err != nil {
		return nil, err
	}
	s := &Server{settings: settings, logger: logger, mcp: ms}

	if settings.Transport.IsHTTP() && settings.Auth {
		p, err := auth.New(auth.Config{
			Issuer:     settings.ServerURL(),
			Resource:   settings.ResourceURL(),
			SigningKey: []byte(settings.JWTSecret),
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("auth provider: %w", err)
		}
		s.provider = p
	}
	return s, nil
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Provider returns the authorization provider, or nil if auth is off.
func (s *Server) Provider() *auth.Provider { return s.provider }

// Handler returns the HTTP handler for the configured transport.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.provider != nil {
		s.provider.Register(mux)
	}

	getServer := func(*http.Request) *mcp.Server { return s.mcp }
	var h http.Handler
	switch s.settings.Transport {
	case config.TransportStreamable:
		h = mcp.NewStreamableHTTPHandler(getServer, &mcp.StreamableHTTPOptions{
			Stateless: s.settings.Stateless,
		})
	case config.TransportSSE:
		h = mcp.NewSSEHandler(getServer, nil)
	case config.TransportWebSocket:
		h = wstransport.NewHandler(getServer, &wstransport.HandlerOptions{
			CheckOrigin: s.checkOrigin,
			Logger:      s.logger,
		})
	}
	if h != nil {
		if s.provider != nil {
			h = mcpauth.RequireBearerToken(s.provider.Verify, &mcpauth.RequireBearerTokenOptions{
				ResourceMetadataURL: s.provider.ResourceMetadataURL(),
				Scopes:              s.provider.Scopes(),
			})(h)
		}
		mux.Handle(s.settings.Transport.Endpoint(), h)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.settings.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version", "Last-Event-ID"},
		ExposedHeaders: []string{"Mcp-Session-Id", "WWW-Authenticate"},
	})
	return requestLogger(s.logger, c.Handler(mux))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.settings.AllowedOrigins, "*") || slices.Contains(s.settings.AllowedOrigins, origin)
}

// Run serves until ctx is done or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	if s.settings.Transport == config.TransportStdio {
		s.logger.Info("serving MCP on stdio")
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	}
	ln, err := net.Listen("tcp", s.settings.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.settings.Transport.IsHTTP() {
		ln.Close()
		return fmt.Errorf("transport %s does not serve HTTP", s.settings.Transport)
	}
	if !s.settings.Auth && !util.IsLoopback(s.settings.Host) {
		s.logger.Warn("serving without authentication on a non-loopback address", "host", s.settings.Host)
	}
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			s.logger.Warn("shutdown", "err", err)
		}
	}()

	attrs := []any{"addr", ln.Addr().String(), "transport", s.settings.Transport, "endpoint", s.settings.ServerURL() + s.settings.Transport.Endpoint()}
	if s.provider != nil {
		attrs = append(attrs, "auth", "oauth", "demo_user", auth.DemoUsername)
	}
	s.logger.Info("serving MCP", attrs...)

	err := hs.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
