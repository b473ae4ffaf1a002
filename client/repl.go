// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/encoding/json"
)

const replHelp = `Commands:
  list                     List available tools
  call <tool_name> [args]  Call a tool; args is a JSON object
  time                     Show the server time
  help                     Show this help
  quit                     Exit the client
`

// REPL reads commands from in and writes results to out until quit, end of
// input or ctx is done. Command failures are printed, not returned.
func (c *Client) REPL(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "\nInteractive MCP Client\n%s\n", replHelp)
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "mcp> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "quit", "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			fmt.Fprint(out, replHelp)
		case "list":
			c.printTools(ctx, out)
		case "time":
			res, err := c.GetTime(ctx)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Server time: %s\n", res.Formatted)
		case "call":
			name, argText, _ := strings.Cut(strings.TrimSpace(rest), " ")
			if name == "" {
				fmt.Fprintln(out, "Please specify a tool name")
				continue
			}
			var args map[string]any
			if argText = strings.TrimSpace(argText); argText != "" {
				if err := json.Unmarshal([]byte(argText), &args); err != nil {
					fmt.Fprintf(out, "Invalid arguments format (expected JSON): %v\n", err)
					continue
				}
			}
			res, err := c.CallTool(ctx, name, args)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if res.IsError {
				fmt.Fprintf(out, "Tool '%s' failed:\n%s\n", name, contentText(res))
				continue
			}
			fmt.Fprintf(out, "Tool '%s' result:\n%s\n", name, contentText(res))
		default:
			fmt.Fprintln(out, "Unknown command. Try 'list', 'call <tool_name>', 'time', 'help' or 'quit'")
		}
	}
}

func (c *Client) printTools(ctx context.Context, out io.Writer) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if len(tools) == 0 {
		fmt.Fprintln(out, "No tools available")
		return
	}
	fmt.Fprintln(out, "Available tools:")
	for i, tool := range tools {
		fmt.Fprintf(out, "%d. %s\n", i+1, tool.Name)
		if tool.Description != "" {
			desc, _, _ := strings.Cut(tool.Description, "\n")
			fmt.Fprintf(out, "   Description: %s\n", desc)
		}
	}
}
