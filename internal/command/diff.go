// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/differ"
	"github.com/staranto/docsite/internal/meta"
)

// DiffCommandAction compares two generations. By default it lists the
// changed request keys; --patch prints the manifest delta instead.
func DiffCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "diff") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(ChangeRow{})) {
		return nil
	}

	if cmd.Args().Len() != 2 { //nolint:mnd
		return errors.New("diff needs exactly two generations")
	}
	left, right := cmd.Args().Get(0), cmd.Args().Get(1)

	storage, err := NewStorage(ctx, cmd)
	if err != nil {
		return err
	}
	a, err := storage.Lookup(ctx, left)
	if err != nil {
		return err
	}
	b, err := storage.Lookup(ctx, right)
	if err != nil {
		return err
	}

	result, err := differ.Diff(ctx, a, b, cmd.Bool("color"))
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if cmd.Bool("patch") {
		if !result.Changed {
			fmt.Fprintf(w, "%s and %s are identical\n", left, right)
			return nil
		}
		fmt.Fprint(w, result.Text)
		return nil
	}

	var rows []*ChangeRow
	for _, k := range result.Added {
		rows = append(rows, &ChangeRow{Key: k, Change: "added"})
	}
	for _, k := range result.Removed {
		rows = append(rows, &ChangeRow{Key: k, Change: "removed"})
	}
	for _, k := range result.Modified {
		rows = append(rows, &ChangeRow{Key: k, Change: "modified"})
	}

	attrs := BuildAttrs(cmd, "change", ".id:key")
	if rows == nil {
		rows = []*ChangeRow{}
	}
	return EmitJSONAPISlice(rows, attrs, cmd, w)
}

// DiffCommandBuilder constructs the cli.Command for "diff".
func DiffCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "diff",
		Usage:     "compare two cache generations",
		UsageText: "docsite diff OLD NEW [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "patch",
				Usage: "print the manifest delta",
				Value: false,
			},
		},
		Action:  DiffCommandAction,
		Meta:    meta,
		Listing: true,
	}).Build()
}
