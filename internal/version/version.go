// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package version carries the build version, set at link time with
// -ldflags "-X github.com/staranto/docsite/internal/version.Version=...".
package version

// Version is the program version.
var Version = "0.1.0-dev"

// UserAgent identifies docsite to the origin.
func UserAgent() string {
	return "docsite/" + Version
}
