// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timetool implements the get_time tool: a stateless reading of the
// server clock, returned both as text and as structured content.
package timetool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// Name is the tool name clients call.
	Name = "get_time"

	// Layout is the human-readable format of [Result.Formatted] and of the
	// text content returned by the tool.
	Layout = "2006-01-02 15:04:05"

	description = `Get the current server time.

This tool demonstrates that system information can be protected
by OAuth authentication. User must be authenticated to access it.`
)

// Input is the (empty) argument object of get_time.
type Input struct{}

// Result is the structured output of get_time.
type Result struct {
	CurrentTime string  `json:"current_time" jsonschema:"the time in RFC 3339 format with fractional seconds"`
	Timezone    string  `json:"timezone" jsonschema:"the zone the time is reported in"`
	Timestamp   float64 `json:"timestamp" jsonschema:"seconds since the Unix epoch"`
	Formatted   string  `json:"formatted" jsonschema:"the time as YYYY-MM-DD HH:MM:SS"`
}

// Now converts a clock reading into a Result. The reading is reported in UTC.
func Now(t time.Time) Result {
	t = t.UTC()
	return Result{
		CurrentTime: t.Format(time.RFC3339Nano),
		Timezone:    "UTC",
		Timestamp:   float64(t.Unix()) + float64(t.Nanosecond())/1e9,
		Formatted:   t.Format(Layout),
	}
}

// Tool serves get_time. The zero value reads the system clock.
type Tool struct {
	// Clock returns the current time. If nil, time.Now is used.
	Clock func() time.Time
	// Logger, if set, receives a debug record per call.
	Logger *slog.Logger
}

func (t *Tool) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

// Handle is the tool handler.
func (t *Tool) Handle(ctx context.Context, req *mcp.CallToolRequest, _ Input) (*mcp.CallToolResult, Result, error) {
	res := Now(t.now())
	if t.Logger != nil {
		attrs := []any{"formatted", res.Formatted}
		if req != nil && req.Extra != nil && req.Extra.TokenInfo != nil {
			if sub, ok := req.Extra.TokenInfo.Extra["sub"].(string); ok {
				attrs = append(attrs, "user", sub)
			}
		}
		t.Logger.DebugContext(ctx, "get_time", attrs...)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Formatted}},
	}, res, nil
}

// Definition returns the tool metadata, with an output schema derived from Result.
func Definition() (*mcp.Tool, error) {
	out, err := jsonschema.For[Result](nil)
	if err != nil {
		return nil, fmt.Errorf("output schema: %w", err)
	}
	return &mcp.Tool{
		Name:         Name,
		Title:        "Current time",
		Description:  description,
		OutputSchema: out,
	}, nil
}

// Register adds get_time to server.
func Register(server *mcp.Server, tool *Tool) error {
	def, err := Definition()
	if err != nil {
		return err
	}
	if tool == nil {
		tool = &Tool{}
	}
	mcp.AddTool(server, def, tool.Handle)
	return nil
}
