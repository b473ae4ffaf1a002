// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads server and client settings from flags, environment
// variables and an optional config file, using viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Transport selects the channel MCP messages travel over.
type Transport string

const (
	TransportStdio      Transport = "stdio"
	TransportSSE        Transport = "sse"
	TransportStreamable Transport = "streamable-http"
	TransportWebSocket  Transport = "websocket"
)

// ErrUnknownTransport is returned by [ParseTransport] for unsupported selectors.
var ErrUnknownTransport = errors.New("unknown transport")

// Transports lists the accepted transport selectors.
func Transports() []string {
	return []string{string(TransportStdio), string(TransportSSE), string(TransportStreamable), string(TransportWebSocket)}
}

// ParseTransport parses a transport selector. Matching is case-insensitive and
// "streamable" is accepted as an alias of "streamable-http".
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stdio":
		return TransportStdio, nil
	case "sse":
		return TransportSSE, nil
	case "streamable-http", "streamable", "streamable_http":
		return TransportStreamable, nil
	case "websocket", "ws":
		return TransportWebSocket, nil
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownTransport, s, strings.Join(Transports(), ", "))
}

// IsHTTP reports whether the transport is served over HTTP.
func (t Transport) IsHTTP() bool {
	return t != TransportStdio
}

// Endpoint returns the HTTP path the transport is mounted on, or "" for stdio.
func (t Transport) Endpoint() string {
	switch t {
	case TransportSSE:
		return "/sse"
	case TransportStreamable:
		return "/mcp"
	case TransportWebSocket:
		return "/ws"
	}
	return ""
}

// Keys used in viper, config files and flags.
const (
	KeyHost           = "host"
	KeyPort           = "port"
	KeyTransport      = "transport"
	KeyStateless      = "stateless"
	KeyAuth           = "auth"
	KeyAllowedOrigins = "allowed_origins"
	KeyLogLevel       = "log_level"
	KeyJWTSecret      = "jwt_secret"
	KeyCallbackHost   = "cb_host"
	KeyCallbackPort   = "cb_port"
	KeyLogin          = "login"
	KeyUsername       = "username"
	KeyPassword       = "password"
	KeyCommand        = "command"
)

// New returns a viper instance with the defaults and environment bindings
// shared by both commands.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyHost, "localhost")
	v.SetDefault(KeyPort, 8000)
	v.SetDefault(KeyTransport, string(TransportStreamable))
	v.SetDefault(KeyAuth, true)
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCallbackHost, "localhost")
	v.SetDefault(KeyCallbackPort, 3030)
	v.SetDefault(KeyLogin, string(LoginTerminal))

	// Unprefixed names are kept for existing deployment scripts.
	_ = v.BindEnv(KeyHost, "HOST")
	_ = v.BindEnv(KeyPort, "PORT")
	_ = v.BindEnv(KeyTransport, "TRANSPORT")
	_ = v.BindEnv(KeyCallbackPort, "CB_PORT")
	_ = v.BindEnv(KeyLogLevel, "LOG_LEVEL")
	_ = v.BindEnv(KeyJWTSecret, "BASIC_MCP_JWT_SECRET")
	return v
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// ParseLevel parses a slog level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// ServerSettings configures the serve command.
type ServerSettings struct {
	Host           string
	Port           int
	Transport      Transport
	Stateless      bool
	Auth           bool
	AllowedOrigins []string
	LogLevel       slog.Level
	// JWTSecret signs access tokens. Empty means a random per-process key.
	JWTSecret string
}

// LoadServer reads ServerSettings from v.
func LoadServer(v *viper.Viper) (*ServerSettings, error) {
	tr, err := ParseTransport(v.GetString(KeyTransport))
	if err != nil {
		return nil, err
	}
	level, err := ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}
	s := &ServerSettings{
		Host:           v.GetString(KeyHost),
		Port:           v.GetInt(KeyPort),
		Transport:      tr,
		Auth:           v.GetBool(KeyAuth),
		AllowedOrigins: v.GetStringSlice(KeyAllowedOrigins),
		LogLevel:       level,
		JWTSecret:      v.GetString(KeyJWTSecret),
	}
	// Streamable HTTP runs stateless unless told otherwise.
	if v.IsSet(KeyStateless) {
		s.Stateless = v.GetBool(KeyStateless)
	} else {
		s.Stateless = tr == TransportStreamable
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings for consistency.
func (s *ServerSettings) Validate() error {
	if s.Transport.IsHTTP() {
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("invalid port %d", s.Port)
		}
		if s.Host == "" {
			return errors.New("host is required for HTTP transports")
		}
	}
	return nil
}

// Addr is the listen address.
func (s *ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServerURL is the public base URL of the server, used as OAuth issuer.
func (s *ServerSettings) ServerURL() string {
	return "http://" + net.JoinHostPort(publicHost(s.Host), strconv.Itoa(s.Port))
}

// ResourceURL is the protected MCP endpoint.
func (s *ServerSettings) ResourceURL() string {
	return s.ServerURL() + s.Transport.Endpoint()
}

func publicHost(h string) string {
	switch h {
	case "", "0.0.0.0", "::", "[::]":
		return "localhost"
	}
	return h
}

// LoginMode selects how the client collects credentials.
type LoginMode string

const (
	// LoginTerminal prompts for the username and password on the terminal
	// and submits the server's login form directly.
	LoginTerminal LoginMode = "terminal"
	// LoginBrowser opens the login page in a browser and waits for the
	// redirect on a local callback server.
	LoginBrowser LoginMode = "browser"
)

// ClientSettings configures the client command.
type ClientSettings struct {
	Host         string
	Port         int
	Transport    Transport
	CallbackHost string
	CallbackPort int
	Login        LoginMode
	Username     string
	Password     string
	// Command is the server argv used with the stdio transport.
	Command  []string
	LogLevel slog.Level
}

// LoadClient reads ClientSettings from v.
func LoadClient(v *viper.Viper) (*ClientSettings, error) {
	tr, err := ParseTransport(v.GetString(KeyTransport))
	if err != nil {
		return nil, err
	}
	level, err := ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}
	s := &ClientSettings{
		Host:         v.GetString(KeyHost),
		Port:         v.GetInt(KeyPort),
		Transport:    tr,
		CallbackHost: v.GetString(KeyCallbackHost),
		CallbackPort: v.GetInt(KeyCallbackPort),
		Login:        LoginMode(strings.ToLower(v.GetString(KeyLogin))),
		Username:     v.GetString(KeyUsername),
		Password:     v.GetString(KeyPassword),
		Command:      strings.Fields(v.GetString(KeyCommand)),
		LogLevel:     level,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings for consistency.
func (s *ClientSettings) Validate() error {
	switch s.Login {
	case LoginTerminal, LoginBrowser:
	default:
		return fmt.Errorf("invalid login mode %q (want terminal or browser)", s.Login)
	}
	if s.Transport.IsHTTP() && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.CallbackPort <= 0 || s.CallbackPort > 65535 {
		return fmt.Errorf("invalid callback port %d", s.CallbackPort)
	}
	return nil
}

// BaseURL is the server origin.
func (s *ClientSettings) BaseURL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServerURL is the MCP endpoint for the selected transport.
func (s *ClientSettings) ServerURL() string {
	switch s.Transport {
	case TransportWebSocket:
		return "ws://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.Transport.Endpoint()
	case TransportStdio:
		return ""
	}
	return s.BaseURL() + s.Transport.Endpoint()
}

// RedirectURL is the OAuth redirect URI served by the local callback server.
func (s *ClientSettings) RedirectURL() string {
	return "http://" + net.JoinHostPort(s.CallbackHost, strconv.Itoa(s.CallbackPort)) + "/callback"
}
