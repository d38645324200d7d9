// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package driller extracts values from listing documents by dotted path so
// filters and columns can reach into nested entry metadata.
package driller
