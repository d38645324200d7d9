// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/meta"
)

// fetchClientID is the page the CLI pretends to be.
const fetchClientID = "docsite-cli"

// FetchCommandAction requests each URL through the worker the way a page of
// the site would and prints the body, or the status and headers with --head.
func FetchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "fetch") {
		return nil
	}
	if cmd.Args().Len() == 0 {
		return errors.New("fetch needs at least one URL")
	}

	rt, err := NewRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx) //nolint:errcheck

	if _, err := rt.Start(ctx); err != nil {
		return err
	}
	if !cmd.Bool("navigate") {
		rt.Container.Connect(fetchClientID)
	}

	w := cmd.Root().Writer
	for _, raw := range cmd.Args().Slice() {
		req, err := fetch.NewRequest(http.MethodGet, rt.Scope, raw)
		if err != nil {
			return err
		}
		req.ClientID = fetchClientID
		if cmd.Bool("navigate") {
			req.Mode = fetch.ModeNavigate
		}

		resp, err := rt.Container.Fetch(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", req.URL, err)
		}
		if err := printResponse(w, resp, cmd.Bool("head")); err != nil {
			return err
		}
	}
	return nil
}

func printResponse(w io.Writer, resp *fetch.Response, head bool) error {
	if head {
		fmt.Fprintf(w, "%d %s\n", resp.Status, http.StatusText(resp.Status))
		keys := make([]string, 0, len(resp.Header))
		for k := range resp.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, strings.Join(resp.Header.Values(k), ", "))
		}
		return nil
	}
	body, err := resp.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// FetchCommandBuilder constructs the cli.Command for "fetch".
func FetchCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "fetch",
		Usage:     "fetch URLs through the cache worker",
		UsageText: "docsite fetch URL... [options]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "head",
				Usage: "print status and headers instead of the body",
			},
			&cli.BoolFlag{
				Name:    "navigate",
				Aliases: []string{"n"},
				Usage:   "request as a page navigation",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "simulate a lost network connection",
			},
		},
		Action: FetchCommandAction,
		Meta:   meta,
	}).Build()
}
