// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
	"github.com/staranto/docsite/internal/server"
)

// ServeCommandAction installs the worker and serves the site through it
// until interrupted.
func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "serve") {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}

	inst, err := rt.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "serving %s (%s %s) on %s\n",
		rt.Scope, inst.Version, inst.State(), cmd.String("listen"))

	if err := server.ListenAndServe(ctx, cmd.String("listen"), server.New(rt.Container, rt.Scope)); err != nil {
		return err
	}
	return rt.Close(context.WithoutCancel(ctx))
}

// ServeCommandBuilder constructs the cli.Command for "serve".
func ServeCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "serve",
		Usage:     "serve the site through the cache worker",
		UsageText: "docsite serve [options]",
		Flags: []cli.Flag{
			NameSpacedValueChainFlagFromConfigFile("serve", meta.Config.Source, &cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "address to listen on",
				Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_LISTEN")),
				Value:   "127.0.0.1:8080",
			}),
		},
		Action: ServeCommandAction,
		Meta:   meta,
	}).Build()
}
