// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package client connects to the Basic MCP Server: it logs in through the
// server's OAuth endpoints, opens an MCP session over the configured
// transport and offers a small interactive loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/basicmcp/basic-mcp-server/internal/timetool"
	"github.com/basicmcp/basic-mcp-server/internal/wstransport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/oauth2"
)

const (
	Name    = "Basic MCP Client"
	Version = "1.0.0"
)

// ErrNotConnected is returned by operations that need a session.
var ErrNotConnected = errors.New("not connected to server")

// Client is an MCP client session manager.
type Client struct {
	settings *config.ClientSettings
	tokens   oauth2.TokenSource
	logger   *slog.Logger

	mu      sync.Mutex
	session *mcp.ClientSession
}

// New returns a Client. tokens may be nil for servers without auth and for stdio.
func New(settings *config.ClientSettings, tokens oauth2.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{settings: settings, tokens: tokens, logger: logger}
}

// Transport builds the MCP transport for the configured settings.
func (c *Client) Transport(ctx context.Context) (mcp.Transport, error) {
	s := c.settings
	switch s.Transport {
	case config.TransportStdio:
		args := s.Command
		if len(args) == 0 {
			return nil, errors.New("stdio transport needs a server command")
		}
		return &mcp.CommandTransport{Command: exec.Command(args[0], args[1:]...)}, nil
	case config.TransportWebSocket:
		return &wstransport.ClientTransport{URL: s.ServerURL(), TokenSource: c.tokens}, nil
	case config.TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: s.ServerURL(), HTTPClient: c.httpClient(ctx)}, nil
	case config.TransportStreamable:
		return &mcp.StreamableClientTransport{Endpoint: s.ServerURL(), HTTPClient: c.httpClient(ctx)}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, s.Transport)
}

func (c *Client) httpClient(ctx context.Context) *http.Client {
	if c.tokens == nil {
		return http.DefaultClient
	}
	return oauth2.NewClient(ctx, c.tokens)
}

// Connect opens a session over the configured transport.
func (c *Client) Connect(ctx context.Context) error {
	t, err := c.Transport(ctx)
	if err != nil {
		return err
	}
	return c.ConnectTransport(ctx, t)
}

// ConnectTransport opens a session over t.
func (c *Client) ConnectTransport(ctx context.Context, t mcp.Transport) error {
	mc := mcp.NewClient(&mcp.Implementation{Name: Name, Version: Version}, nil)
	cs, err := mc.Connect(ctx, t, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.mu.Lock()
	old := c.session
	c.session = cs
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.logger.Info("connected", "transport", c.settings.Transport, "session_id", cs.ID())
	return nil
}

func (c *Client) current() (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// SessionID returns the session ID, or "" if there is none. Stateless
// HTTP sessions have no ID.
func (c *Client) SessionID() string {
	cs, err := c.current()
	if err != nil {
		return ""
	}
	return cs.ID()
}

// ListTools returns every tool the server offers.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	cs, err := c.current()
	if err != nil {
		return nil, err
	}
	var tools []*mcp.Tool
	for tool, err := range cs.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// CallTool calls the named tool.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	cs, err := c.current()
	if err != nil {
		return nil, err
	}
	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %q: %w", name, err)
	}
	return res, nil
}

// GetTime calls get_time and decodes its structured result.
func (c *Client) GetTime(ctx context.Context) (*timetool.Result, error) {
	res, err := c.CallTool(ctx, timetool.Name, nil)
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, fmt.Errorf("%s: %s", timetool.Name, contentText(res))
	}
	var out timetool.Result
	if res.StructuredContent != nil {
		b, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("decoding %s result: %w", timetool.Name, err)
		}
		return &out, nil
	}
	out.Formatted = contentText(res)
	return &out, nil
}

// Close ends the session.
func (c *Client) Close() error {
	c.mu.Lock()
	cs := c.session
	c.session = nil
	c.mu.Unlock()
	if cs == nil {
		return nil
	}
	return cs.Close()
}

// contentText joins the text content of res, one item per line.
func contentText(res *mcp.CallToolResult) string {
	var lines []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			lines = append(lines, tc.Text)
		} else {
			lines = append(lines, fmt.Sprintf("%+v", content))
		}
	}
	return strings.Join(lines, "\n")
}
