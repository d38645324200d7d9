// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package store defines cache storage: a set of named, versioned cache
// generations, each mapping request identity to a stored response. The
// in-memory implementation lives here; file and s3 live in subpackages.
package store
