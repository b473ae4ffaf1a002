// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"strings"

	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/basicmcp/basic-mcp-server/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the Basic MCP Server.

HTTP transports are protected by OAuth: clients register, log in with the
demo credentials (demo_user / demo_password) and present a bearer token.
The stdio transport runs without authentication.

Transports: ` + strings.Join(config.Transports(), ", "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readConfig(cmd, v); err != nil {
				return err
			}
			settings, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), settings.LogLevel)
			s, err := server.New(settings, logger)
			if err != nil {
				return err
			}
			return s.Run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("host", "localhost", "host to bind")
	f.Int("port", 8000, "port to listen on")
	f.String("transport", string(config.TransportStreamable), "transport: "+strings.Join(config.Transports(), ", "))
	f.Bool("stateless", false, "serve streamable HTTP without sessions (default true for streamable-http)")
	f.Bool("auth", true, "require OAuth bearer tokens on HTTP transports")
	f.StringSlice("allowed-origin", []string{"*"}, "CORS and WebSocket origins to accept")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	if err := bindFlags(cmd, v, map[string]string{
		"host":           config.KeyHost,
		"port":           config.KeyPort,
		"transport":      config.KeyTransport,
		"stateless":      config.KeyStateless,
		"auth":           config.KeyAuth,
		"allowed-origin": config.KeyAllowedOrigins,
		"log-level":      config.KeyLogLevel,
	}); err != nil {
		panic(err)
	}
	return cmd
}
