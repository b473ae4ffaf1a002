// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wstransport carries MCP JSON-RPC messages over WebSocket text
// frames, one message per frame, using the "mcp" subprotocol.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"
)

// Subprotocol is negotiated during the WebSocket handshake.
const Subprotocol = "mcp"

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// CheckOrigin reports whether the handshake Origin is acceptable.
	// If nil, all origins are accepted.
	CheckOrigin func(r *http.Request) bool
	Logger      *slog.Logger
}

// Handler upgrades requests to WebSocket and runs an MCP session on each.
type Handler struct {
	getServer func(*http.Request) *mcp.Server
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler returns a Handler serving the server returned by getServer.
// If getServer returns nil, the request fails with 400.
func NewHandler(getServer func(*http.Request) *mcp.Server, opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		getServer: getServer,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  checkOrigin,
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server := h.getServer(r)
	if server == nil {
		http.Error(w, "no server available", http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn := newConn(ws)
	h.logger.Info("websocket client connected", "remote", r.RemoteAddr, "session_id", conn.id)
	if err := server.Run(r.Context(), &connTransport{conn}); err != nil && !isClosed(err) {
		h.logger.Warn("websocket session ended", "session_id", conn.id, "err", err)
	}
	h.logger.Info("websocket client disconnected", "session_id", conn.id)
}

// connTransport hands an accepted connection to the MCP server.
type connTransport struct{ conn *Conn }

func (t *connTransport) Connect(context.Context) (mcp.Connection, error) { return t.conn, nil }

// ClientTransport dials an MCP server over WebSocket.
type ClientTransport struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Header is sent with the handshake request.
	Header http.Header
	// TokenSource, if set, supplies a bearer token for the handshake.
	TokenSource oauth2.TokenSource
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Connect implements mcp.Transport.
func (t *ClientTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	header := t.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if t.TokenSource != nil {
		tok, err := t.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("websocket token: %w", err)
		}
		tok.SetAuthHeader(&http.Request{Header: header})
	}
	dialer := websocket.DefaultDialer
	if t.Dialer != nil {
		dialer = t.Dialer
	}
	d := *dialer
	d.Subprotocols = []string{Subprotocol}
	ws, resp, err := d.DialContext(ctx, t.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (HTTP %s)", t.URL, err, resp.Status)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", t.URL, err)
	}
	return newConn(ws), nil
}

// Conn is an mcp.Connection over a WebSocket.
type Conn struct {
	ws        *websocket.Conn
	id        string
	writeMu   sync.Mutex // gorilla allows one concurrent writer
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, id: uuid.NewString()}
}

// Read implements mcp.Connection.
func (c *Conn) Read(ctx context.Context) (jsonrpc.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.TextMessage {
		return nil, fmt.Errorf("expected text message, got type %d", typ)
	}
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("decoding JSON-RPC message: %w", err)
	}
	return msg, nil
}

// Write implements mcp.Connection.
func (c *Conn) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encoding JSON-RPC message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket. It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// SessionID implements mcp.Connection.
func (c *Conn) SessionID() string { return c.id }

func isClosed(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, websocket.ErrCloseSent)
}
