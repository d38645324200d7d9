// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"reflect"

	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
)

// LsCommandAction lists the cache generations in creation order.
func LsCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &ListActionRunner[GenerationRow]{
		CommandName:  "ls",
		SchemaType:   reflect.TypeOf(GenerationRow{}),
		DefaultAttrs: []string{".id:name", "entries", "size::b", "created::a", "current"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]*GenerationRow, error) {
			storage, err := NewStorage(ctx, cmd)
			if err != nil {
				return nil, err
			}
			names, err := storage.Keys(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]*GenerationRow, 0, len(names))
			for _, name := range names {
				gen, err := storage.Open(ctx, name)
				if err != nil {
					return nil, err
				}
				row, err := newGenerationRow(ctx, gen, cmd.String("cache-version"))
				if err != nil {
					return nil, err
				}
				rows = append(rows, row)
			}
			return rows, nil
		},
	}
	return runner.Run(ctx, cmd)
}

// LsCommandBuilder constructs the cli.Command for "ls".
func LsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "ls",
		Usage:     "list cache generations",
		UsageText: "docsite ls [options]",
		Action:    LsCommandAction,
		Meta:      meta,
		Listing:   true,
	}).Build()
}
