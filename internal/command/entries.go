// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"reflect"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
)

// EntriesCommandAction lists the stored responses of one generation, the
// current one unless named.
func EntriesCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := &ListActionRunner[EntryRow]{
		CommandName:  "entries",
		SchemaType:   reflect.TypeOf(EntryRow{}),
		DefaultAttrs: []string{"method", "url", "status", "size::b", "stored-at:stored:a"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]*EntryRow, error) {
			name := cmd.String("cache-version")
			if cmd.Args().Len() > 0 {
				name = cmd.Args().First()
			}
			storage, err := NewStorage(ctx, cmd)
			if err != nil {
				return nil, err
			}
			gen, err := storage.Lookup(ctx, name)
			if err != nil {
				return nil, err
			}
			entries, err := gen.Entries(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]*EntryRow, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, newEntryRow(e))
			}
			if cmd.Bool("chop") {
				urls := make([]string, len(rows))
				for i, r := range rows {
					urls[i] = r.URL
				}
				chopPrefix(urls)
				for i, r := range rows {
					r.URL = urls[i]
				}
			}
			return rows, nil
		},
	}
	return runner.Run(ctx, cmd)
}

// EntriesCommandBuilder constructs the cli.Command for "entries".
func EntriesCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "entries",
		Usage:     "list the entries of a generation",
		UsageText: "docsite entries [GENERATION] [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "chop",
				Usage: "chop the common URL prefix",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("entries.chop", altsrc.StringSourcer(meta.Config.Source)),
				),
				Value: false,
			},
		},
		Action:  EntriesCommandAction,
		Meta:    meta,
		Listing: true,
	}).Build()
}
