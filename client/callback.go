// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackServer receives the OAuth redirect on a local HTTP server.
type CallbackServer struct {
	addr   string
	logger *slog.Logger
	server *http.Server
	ln     net.Listener

	once   sync.Once
	result chan callbackResult
}

type callbackResult struct {
	code, state string
	err         error
}

// NewCallbackServer returns a server that will listen on addr (host:port)
// and accept the redirect at /callback.
func NewCallbackServer(addr string, logger *slog.Logger) *CallbackServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackServer{
		addr:   addr,
		logger: logger,
		result: make(chan callbackResult, 1),
	}
}

// Start begins listening. The listener is bound before Start returns.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("callback server: %w", err)
	}
	s.ln = ln
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", s.handleCallback)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deliver(callbackResult{err: fmt.Errorf("callback server: %w", err)})
		}
	}()
	s.logger.Debug("callback server started", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address; valid after Start.
func (s *CallbackServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
	<h1>{{.Title}}</h1>
	{{if .Error}}<p>Error: {{.Error}}</p>{{end}}
	<p>You can close this window and return to the terminal.</p>
</body>
</html>
`))

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case q.Get("code") != "":
		s.deliver(callbackResult{code: q.Get("code"), state: q.Get("state")})
		_ = callbackPage.Execute(w, map[string]string{"Title": "Authorization Successful"})
	case q.Get("error") != "":
		err := fmt.Errorf("authorization error: %s", q.Get("error"))
		if d := q.Get("error_description"); d != "" {
			err = fmt.Errorf("authorization error: %s: %s", q.Get("error"), d)
		}
		s.deliver(callbackResult{state: q.Get("state"), err: err})
		w.WriteHeader(http.StatusBadRequest)
		_ = callbackPage.Execute(w, map[string]string{"Title": "Authorization Failed", "Error": q.Get("error")})
	default:
		http.NotFound(w, r)
	}
}

// deliver records the first result only.
func (s *CallbackServer) deliver(res callbackResult) {
	s.once.Do(func() { s.result <- res })
}

// Wait blocks until the redirect arrives, the timeout passes or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (code, state string, err error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case res := <-s.result:
		return res.code, res.state, res.err
	case <-t.C:
		return "", "", errors.New("timeout waiting for OAuth callback")
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// Stop shuts the server down.
func (s *CallbackServer) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
