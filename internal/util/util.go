// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package util holds small helpers shared by the server and client.
package util

import "fmt"

// Wrapf wraps *errp with the given formatted message if *errp is not nil.
// It is meant to be deferred:
//
//	defer util.Wrapf(&err, "Login(%q)", url)
func Wrapf(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), *errp)
	}
}
