// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package offline is the worker script of the documentation site. It
// precaches the site's resources into a generation named by the cache
// version, drops every other generation when it activates, and answers page
// requests from that generation, falling back to the network and, when the
// network is gone, to an offline response.
package offline
