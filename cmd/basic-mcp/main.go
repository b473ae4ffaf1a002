// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// basic-mcp runs the Basic MCP Server, a demo server exposing a get_time
// tool behind a username/password OAuth login, and its interactive client.
//
// Usage:
//
//	basic-mcp serve [--transport streamable-http|sse|websocket|stdio] [--port 8000]
//	basic-mcp client [--transport ...] [--login terminal|browser]
//
// The demo credentials are demo_user / demo_password.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/basicmcp/basic-mcp-server/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "basic-mcp",
		Short:         "A minimal MCP server with OAuth login, and its client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	root.AddCommand(newServeCmd(), newClientCmd())
	return root
}

// bindFlags maps flag names onto viper keys.
func bindFlags(cmd *cobra.Command, v *viper.Viper, keys map[string]string) error {
	for flag, key := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// readConfig merges the --config file, if any, into v.
func readConfig(cmd *cobra.Command, v *viper.Viper) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	return config.ReadFile(v, path)
}

// newLogger logs text records to w; stdout belongs to the stdio transport
// and the REPL.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
