// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/docsite/internal/cacheutil"
	"github.com/staranto/docsite/internal/command"
	"github.com/staranto/docsite/internal/config"
	mylog "github.com/staranto/docsite/internal/log"
	"github.com/staranto/docsite/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	// Best-effort: pre-create cache directory when caching is enabled.
	if _, ok, err := cacheutil.EnsureBaseDir(); err != nil && ok {
		// Non-fatal: print to stderr and continue.
		fmt.Fprintln(os.Stderr, err)
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands an @set argument into the argument list stored
// under <command>.<set> in the config file. Without an @set, the
// <command>.defaults set is inserted right after the command.
func mangleArguments(args []string) []string {
	// We know the first two args are going to be the executable and command.
	preamble := make([]string, 2)
	copy(preamble, args[:2])

	// Short-circuit for --help/-h. If help is requested, just keep the preamble
	// and add --help flag.
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return append(preamble, "--help")
		}
	}

	// The command itself may be a flag (--version) in which case there are no
	// sets to expand.
	if strings.HasPrefix(args[1], "-") {
		return args
	}

	idx := 2
	set := "defaults"
	rest := make([]string, 0, len(args)-2)
	// See if there is a @set specified. If so, that becomes the insertion point
	// and the @set entry is removed from args.
	found := false
	for i, a := range args[2:] {
		if !found && len(a) > 1 && strings.HasPrefix(a, "@") {
			set, idx, found = a[1:], 2+i, true
			continue
		}
		rest = append(rest, a)
	}

	setArgs, _ := config.GetStringSlice(args[1] + "." + set)

	var expanded []string
	for _, arg := range setArgs {
		expanded = append(expanded, strings.Fields(arg)...)
	}

	out := append(preamble, rest[:idx-2]...) //nolint:gocritic
	out = append(out, expanded...)
	out = append(out, rest[idx-2:]...)

	log.Debugf("idx=%d, set=%s, args=%v", idx, set, out)
	return out
}
