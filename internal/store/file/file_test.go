// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package file

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
	"github.com/staranto/docsite/internal/store/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Storage {
		s, err := New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestStorage_SurvivesReopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	base, _ := url.Parse("http://docs.test/")
	req := fetch.MustRequest(http.MethodGet, base, "/assets/css/main.css")

	s1, err := New(root)
	require.NoError(t, err)
	g, err := s1.Open(ctx, "v1.8")
	require.NoError(t, err)
	require.NoError(t, g.Put(ctx, req, fetch.NewResponse(200, nil, []byte("body{}"))))

	s2, err := New(root)
	require.NoError(t, err)
	keys, err := s2.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.8"}, keys)

	g2, err := s2.Open(ctx, "v1.8")
	require.NoError(t, err)
	r, ok, err := g2.Match(ctx, req)
	require.NoError(t, err)
	require.True(t, ok)
	b, _ := r.Bytes()
	assert.Equal(t, "body{}", string(b))
}

func TestStorage_SkipsForeignDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-generation"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "registration.yaml"), []byte("x"), 0o600))

	s, err := New(root)
	require.NoError(t, err)
	keys, err := s.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStorage_GenerationNamesAreHashed(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "../../escape")
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Name(), 32)
}
