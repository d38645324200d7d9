// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"reflect"

	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
)

// StatusCommandAction lists the persisted registration: the active instance
// and the one waiting to replace it.
func StatusCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &ListActionRunner[InstanceRow]{
		CommandName:  "status",
		SchemaType:   reflect.TypeOf(InstanceRow{}),
		DefaultAttrs: []string{"role", "version", "state", "activated-at:activated:a", ".id"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]*InstanceRow, error) {
			reg, err := registrations(cmd).Load(ctx)
			if err != nil {
				return nil, err
			}
			return newInstanceRows(reg), nil
		},
	}
	return runner.Run(ctx, cmd)
}

// StatusCommandBuilder constructs the cli.Command for "status".
func StatusCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "status",
		Usage:     "show the worker registration",
		UsageText: "docsite status [options]",
		Action:    StatusCommandAction,
		Meta:      meta,
		Listing:   true,
	}).Build()
}
