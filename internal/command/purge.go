// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
	"github.com/staranto/docsite/internal/store"
)

// PurgeCommandAction deletes generations: the named ones, every one with
// --all, or every one but the current generation when none are named.
func PurgeCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &ListActionRunner[PurgeRow]{
		CommandName:  "purge",
		SchemaType:   reflect.TypeOf(PurgeRow{}),
		DefaultAttrs: []string{".id:name", "entries", "size::b"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]*PurgeRow, error) {
			if cmd.Bool("all") && cmd.Args().Len() > 0 {
				return nil, errors.New("--all does not take generation names")
			}
			storage, err := NewStorage(ctx, cmd)
			if err != nil {
				return nil, err
			}
			names, err := purgeTargets(ctx, cmd, storage)
			if err != nil {
				return nil, err
			}

			rows := []*PurgeRow{}
			for _, name := range names {
				gen, err := storage.Lookup(ctx, name)
				if err != nil {
					return nil, err
				}
				summary, err := newGenerationRow(ctx, gen, "")
				if err != nil {
					return nil, err
				}
				if _, err := storage.Delete(ctx, name); err != nil {
					return nil, fmt.Errorf("failed to delete %s: %w", name, err)
				}
				rows = append(rows, &PurgeRow{Name: name, Entries: summary.Entries, Size: summary.Size})
			}
			return rows, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func purgeTargets(ctx context.Context, cmd *cli.Command, storage store.Storage) ([]string, error) {
	if cmd.Args().Len() > 0 {
		return cmd.Args().Slice(), nil
	}
	keys, err := storage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	if cmd.Bool("all") {
		return keys, nil
	}
	current := cmd.String("cache-version")
	var names []string
	for _, k := range keys {
		if k != current {
			names = append(names, k)
		}
	}
	return names, nil
}

// PurgeCommandBuilder constructs the cli.Command for "purge".
func PurgeCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "purge",
		Usage:     "delete cache generations",
		UsageText: "docsite purge [GENERATION...] [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "delete every generation, the current one included",
				Value: false,
			},
		},
		Action:  PurgeCommandAction,
		Meta:    meta,
		Listing: true,
	}).Build()
}
