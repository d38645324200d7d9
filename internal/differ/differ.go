// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package differ compares the content of two cache generations.
package differ

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/staranto/docsite/internal/store"
)

// Result is the outcome of a comparison. Each list holds request keys.
type Result struct {
	Changed  bool
	Added    []string
	Removed  []string
	Modified []string
	// Text is an ASCII rendering of the manifest delta, empty when nothing
	// changed.
	Text string
}

// Manifest maps every request key of gen to the digest of its body.
func Manifest(ctx context.Context, gen store.Generation) (map[string]string, error) {
	entries, err := gen.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", gen.Name(), err)
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Digest
	}
	return m, nil
}

// Diff compares a (old) with b (new). color enables ANSI colouring of Text.
func Diff(ctx context.Context, a, b store.Generation, color bool) (Result, error) {
	left, err := Manifest(ctx, a)
	if err != nil {
		return Result{}, err
	}
	right, err := Manifest(ctx, b)
	if err != nil {
		return Result{}, err
	}

	var r Result
	for k, digest := range right {
		old, ok := left[k]
		switch {
		case !ok:
			r.Added = append(r.Added, k)
		case old != digest:
			r.Modified = append(r.Modified, k)
		}
	}
	for k := range left {
		if _, ok := right[k]; !ok {
			r.Removed = append(r.Removed, k)
		}
	}
	sort.Strings(r.Added)
	sort.Strings(r.Removed)
	sort.Strings(r.Modified)

	lj, err := json.Marshal(left)
	if err != nil {
		return Result{}, err
	}
	rj, err := json.Marshal(right)
	if err != nil {
		return Result{}, err
	}

	delta, err := gojsondiff.New().Compare(lj, rj)
	if err != nil {
		return Result{}, fmt.Errorf("failed to compare manifests: %w", err)
	}
	if !delta.Modified() {
		return r, nil
	}
	r.Changed = true

	var leftObj map[string]interface{}
	if err := json.Unmarshal(lj, &leftObj); err != nil {
		return Result{}, err
	}
	f := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{Coloring: color})
	if r.Text, err = f.Format(delta); err != nil {
		return Result{}, fmt.Errorf("failed to format delta: %w", err)
	}
	return r, nil
}
