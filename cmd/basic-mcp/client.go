// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/basicmcp/basic-mcp-server/client"
	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newClientCmd() *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Log in and run an interactive MCP session",
		Long: `Connect to a Basic MCP Server and run an interactive loop.

For HTTP transports the client first logs in. In terminal mode it asks for
the username and password and submits the server's login form itself; in
browser mode it opens the login page and waits for the redirect on
http://<cbhost>:<cbport>/callback.

With --transport stdio the client starts the server itself, by default
"<this binary> serve --transport stdio".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := readConfig(cmd, v); err != nil {
				return err
			}
			settings, err := config.LoadClient(v)
			if err != nil {
				return err
			}
			if settings.Transport == config.TransportStdio && len(settings.Command) == 0 {
				settings.Command = defaultServerCommand()
			}
			return runClient(cmd, settings)
		},
	}
	f := cmd.Flags()
	f.String("host", "localhost", "server host")
	f.Int("port", 8000, "server port")
	f.String("transport", string(config.TransportStreamable), "transport: "+strings.Join(config.Transports(), ", "))
	f.String("cbhost", "localhost", "OAuth callback host")
	f.Int("cbport", 3030, "OAuth callback port")
	f.String("login", string(config.LoginTerminal), "login mode: terminal or browser")
	f.String("username", "", "login username (prompted if empty)")
	f.String("password", "", "login password (prompted if empty)")
	f.String("command", "", "server command line for the stdio transport")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	if err := bindFlags(cmd, v, map[string]string{
		"host":      config.KeyHost,
		"port":      config.KeyPort,
		"transport": config.KeyTransport,
		"cbhost":    config.KeyCallbackHost,
		"cbport":    config.KeyCallbackPort,
		"login":     config.KeyLogin,
		"username":  config.KeyUsername,
		"password":  config.KeyPassword,
		"command":   config.KeyCommand,
		"log-level": config.KeyLogLevel,
	}); err != nil {
		panic(err)
	}
	return cmd
}

func runClient(cmd *cobra.Command, settings *config.ClientSettings) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr(), settings.LogLevel)

	fmt.Fprintf(out, "%s\nTransport: %s\n", client.Name, settings.Transport)
	var tokens oauth2.TokenSource
	if settings.Transport.IsHTTP() {
		fmt.Fprintf(out, "Connecting to: %s\n", settings.ServerURL())
		a := &client.Authenticator{
			Settings: settings,
			Prompter: client.NewTerminalPrompter(),
			Out:      out,
			Logger:   logger,
		}
		_, err := a.Login(ctx)
		switch {
		case errors.Is(err, client.ErrNoAuthServer):
			logger.Info("server does not require authentication")
		case err != nil:
			return err
		default:
			if tokens, err = a.TokenSource(ctx); err != nil {
				return err
			}
		}
	}

	c := client.New(settings, tokens, logger)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()
	if id := c.SessionID(); id != "" {
		fmt.Fprintf(out, "Connected. Session ID: %s\n", id)
	} else {
		fmt.Fprintln(out, "Connected (stateless).")
	}
	return c.REPL(ctx, cmd.InOrStdin(), out)
}

// defaultServerCommand runs this binary as a stdio server. The path is kept
// as a single argument so it may contain spaces.
func defaultServerCommand() []string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return []string{exe, "serve", "--transport", "stdio"}
}
