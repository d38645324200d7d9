// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
)

// InstallCommandAction registers the configured worker. A version already
// installed is restored; a new one is precached and activated.
func InstallCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "install") {
		return nil
	}

	rt, err := NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx) //nolint:errcheck

	inst, err := rt.Start(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "%s %s (%d resources)\n",
		inst.Version, inst.State(), len(rt.Manager.Resources()))
	return nil
}

// InstallCommandBuilder constructs the cli.Command for "install".
func InstallCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "install",
		Usage:     "install and activate the cache worker",
		UsageText: "docsite install [options]",
		Action:    InstallCommandAction,
		Meta:      meta,
	}).Build()
}
