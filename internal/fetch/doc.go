// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package fetch holds the request/response model shared by the cache
// generations, the worker container and the network, along with the
// Fetcher implementations that talk to the origin.
package fetch
