// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// docsite is the main package for the docsite command line tool. It keeps an
// offline copy of a documentation site, wires the CLI, delegates to internal
// packages, and serves as the entry point.
package main
