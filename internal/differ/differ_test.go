// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// no-cloc
package differ

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
)

var base, _ = url.Parse("https://docs.example.com/")

func fill(t *testing.T, s store.Storage, name string, pages map[string]string) store.Generation {
	t.Helper()
	ctx := context.Background()
	g, err := s.Open(ctx, name)
	require.NoError(t, err)
	for path, body := range pages {
		req := fetch.MustRequest(http.MethodGet, base, path)
		require.NoError(t, g.Put(ctx, req, fetch.NewResponse(http.StatusOK, nil, []byte(body))))
	}
	return g
}

func TestDiff(t *testing.T) {
	s := store.NewMemory()
	a := fill(t, s, "v1", map[string]string{"/": "home", "/old.html": "old", "/main.css": "a{}"})
	b := fill(t, s, "v2", map[string]string{"/": "home", "/new.html": "new", "/main.css": "b{}"})

	r, err := Diff(context.Background(), a, b, false)
	require.NoError(t, err)
	assert.True(t, r.Changed)
	assert.Equal(t, []string{"GET https://docs.example.com/new.html"}, r.Added)
	assert.Equal(t, []string{"GET https://docs.example.com/old.html"}, r.Removed)
	assert.Equal(t, []string{"GET https://docs.example.com/main.css"}, r.Modified)
	assert.Contains(t, r.Text, "new.html")
	assert.Contains(t, r.Text, "old.html")
}

func TestDiffIdentical(t *testing.T) {
	s := store.NewMemory()
	pages := map[string]string{"/": "home", "/index.html": "home"}
	a := fill(t, s, "v1", pages)
	b := fill(t, s, "v2", pages)

	r, err := Diff(context.Background(), a, b, false)
	require.NoError(t, err)
	assert.False(t, r.Changed)
	assert.Empty(t, r.Text)
	assert.Empty(t, r.Added)
}

func TestManifest(t *testing.T) {
	s := store.NewMemory()
	g := fill(t, s, "v1", map[string]string{"/": "home"})

	m, err := Manifest(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GET https://docs.example.com/": store.Digest([]byte("home"))}, m)
}
