// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/staranto/docsite/internal/container"
	"github.com/staranto/docsite/internal/store"
)

// GenerationRow is one cache generation in a listing.
type GenerationRow struct {
	Name    string    `jsonapi:"primary,generations"`
	Entries int       `jsonapi:"attr,entries"`
	Size    int64     `jsonapi:"attr,size"`
	Created time.Time `jsonapi:"attr,created,iso8601,omitempty"`
	Current bool      `jsonapi:"attr,current"`
}

// EntryRow is one stored response in a listing.
type EntryRow struct {
	Key         string    `jsonapi:"primary,entries"`
	Method      string    `jsonapi:"attr,method"`
	URL         string    `jsonapi:"attr,url"`
	Status      int       `jsonapi:"attr,status"`
	ContentType string    `jsonapi:"attr,content-type,omitempty"`
	Size        int64     `jsonapi:"attr,size"`
	Digest      string    `jsonapi:"attr,digest"`
	StoredAt    time.Time `jsonapi:"attr,stored-at,iso8601"`
}

// InstanceRow is one registered worker instance.
type InstanceRow struct {
	ID          string    `jsonapi:"primary,instances"`
	Role        string    `jsonapi:"attr,role"`
	Version     string    `jsonapi:"attr,version"`
	State       string    `jsonapi:"attr,state"`
	InstalledAt time.Time `jsonapi:"attr,installed-at,iso8601,omitempty"`
	ActivatedAt time.Time `jsonapi:"attr,activated-at,iso8601,omitempty"`
}

// ChangeRow is one request key that differs between two generations.
type ChangeRow struct {
	Key    string `jsonapi:"primary,changes"`
	Change string `jsonapi:"attr,change"`
}

// PurgeRow reports a deleted generation.
type PurgeRow struct {
	Name    string `jsonapi:"primary,generations"`
	Entries int    `jsonapi:"attr,entries"`
	Size    int64  `jsonapi:"attr,size"`
}

func newEntryRow(e store.Entry) *EntryRow {
	return &EntryRow{
		Key:         e.Key,
		Method:      e.Method,
		URL:         e.URL,
		Status:      e.Status,
		ContentType: e.ContentType,
		Size:        e.Size,
		Digest:      e.Digest,
		StoredAt:    e.StoredAt,
	}
}

// newGenerationRow summarizes gen. The oldest entry stands in for the
// creation time.
func newGenerationRow(ctx context.Context, gen store.Generation, current string) (*GenerationRow, error) {
	entries, err := gen.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", gen.Name(), err)
	}
	row := &GenerationRow{
		Name:    gen.Name(),
		Entries: len(entries),
		Size:    store.Size(entries),
		Current: gen.Name() == current,
	}
	for _, e := range entries {
		if row.Created.IsZero() || e.StoredAt.Before(row.Created) {
			row.Created = e.StoredAt
		}
	}
	return row, nil
}

func newInstanceRows(reg container.Registration) []*InstanceRow {
	var rows []*InstanceRow
	add := func(role string, rec *container.InstanceRecord) {
		if rec == nil {
			return
		}
		rows = append(rows, &InstanceRow{
			ID:          rec.ID,
			Role:        role,
			Version:     rec.Version,
			State:       rec.State.String(),
			InstalledAt: rec.InstalledAt,
			ActivatedAt: rec.ActivatedAt,
		})
	}
	add("active", reg.Active)
	add("waiting", reg.Waiting)
	return rows
}
