// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package server is the page side of docsite: an http.Handler that turns
// browser requests into container fetches so a real browser can be pointed
// at the cached site.
package server
