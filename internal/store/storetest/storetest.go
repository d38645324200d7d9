// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package storetest is the behavioural contract every store.Storage
// implementation is tested against.
package storetest

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
)

var base, _ = url.Parse("http://docs.test/")

func req(path string) *fetch.Request {
	return fetch.MustRequest(http.MethodGet, base, path)
}

func resp(body string) *fetch.Response {
	h := http.Header{}
	h.Set("Content-Type", "text/plain")
	return fetch.NewResponse(http.StatusOK, h, []byte(body))
}

// Run exercises s, which must start empty.
func Run(t *testing.T, newStorage func(t *testing.T) store.Storage) {
	t.Run("open creates and keys keep creation order", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		for _, name := range []string{"v1", "v3", "v2"} {
			g, err := s.Open(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, name, g.Name())
		}

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "v3", "v2"}, keys)

		ok, err := s.Has(ctx, "v3")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Has(ctx, "v9")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lookup never creates", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		_, err := s.Lookup(ctx, "v1")
		require.ErrorIs(t, err, store.ErrNotFound)
		ok, err := s.Has(ctx, "v1")
		require.NoError(t, err)
		assert.False(t, ok)

		g, err := s.Open(ctx, "v1")
		require.NoError(t, err)
		require.NoError(t, g.Put(ctx, req("/a"), resp("A")))

		g, err = s.Lookup(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, "v1", g.Name())
		_, ok, err = g.Match(ctx, req("/a"))
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = s.Delete(ctx, "v1")
		require.NoError(t, err)
		_, err = s.Lookup(ctx, "v1")
		require.ErrorIs(t, err, store.ErrNotFound)
		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("reopen keeps entries", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		g, err := s.Open(ctx, "v1")
		require.NoError(t, err)
		require.NoError(t, g.Put(ctx, req("/a"), resp("A")))

		g, err = s.Open(ctx, "v1")
		require.NoError(t, err)
		r, ok, err := g.Match(ctx, req("/a"))
		require.NoError(t, err)
		require.True(t, ok)
		b, _ := r.Bytes()
		assert.Equal(t, "A", string(b))

		keys, _ := s.Keys(ctx)
		assert.Equal(t, []string{"v1"}, keys)
	})

	t.Run("put match overwrite", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, err := s.Open(ctx, "v1")
		require.NoError(t, err)

		_, ok, err := g.Match(ctx, req("/index.html"))
		require.NoError(t, err)
		assert.False(t, ok)

		first := resp("one")
		require.NoError(t, g.Put(ctx, req("/index.html"), first))
		assert.True(t, first.BodyUsed(), "put consumes the response")
		require.NoError(t, g.Put(ctx, req("/index.html"), resp("two")))

		r, ok, err := g.Match(ctx, req("/index.html"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, http.StatusOK, r.Status)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		b, _ := r.Bytes()
		assert.Equal(t, "two", string(b))

		entries, err := g.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "GET http://docs.test/index.html", entries[0].Key)
		assert.Equal(t, int64(3), entries[0].Size)
		assert.Equal(t, store.Digest([]byte("two")), entries[0].Digest)
	})

	t.Run("match returns independent copies", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, _ := s.Open(ctx, "v1")
		require.NoError(t, g.Put(ctx, req("/a"), resp("A")))

		r1, _, _ := g.Match(ctx, req("/a"))
		_, _ = r1.Bytes()
		r2, ok, err := g.Match(ctx, req("/a"))
		require.NoError(t, err)
		require.True(t, ok)
		b, err := r2.Bytes()
		require.NoError(t, err)
		assert.Equal(t, "A", string(b))
	})

	t.Run("identity includes method", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, _ := s.Open(ctx, "v1")
		require.NoError(t, g.Put(ctx, req("/a"), resp("A")))

		_, ok, err := g.Match(ctx, fetch.MustRequest(http.MethodHead, base, "/a"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put rejects consumed response", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, _ := s.Open(ctx, "v1")
		r := resp("x")
		_, _ = r.Bytes()
		assert.ErrorIs(t, g.Put(ctx, req("/x"), r), fetch.ErrBodyUsed)
	})

	t.Run("delete entry", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, _ := s.Open(ctx, "v1")
		require.NoError(t, g.Put(ctx, req("/a"), resp("A")))

		ok, err := g.Delete(ctx, req("/a"))
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = g.Delete(ctx, req("/a"))
		require.NoError(t, err)
		assert.False(t, ok)

		entries, _ := g.Entries(ctx)
		assert.Empty(t, entries)
	})

	t.Run("delete generation", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, _ := s.Open(ctx, "old")
		require.NoError(t, g.Put(ctx, req("/a"), resp("A")))
		_, _ = s.Open(ctx, "new")

		ok, err := s.Delete(ctx, "old")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.Delete(ctx, "old")
		require.NoError(t, err)
		assert.False(t, ok)

		keys, _ := s.Keys(ctx)
		assert.Equal(t, []string{"new"}, keys)

		g, _ = s.Open(ctx, "old")
		_, found, err := g.Match(ctx, req("/a"))
		require.NoError(t, err)
		assert.False(t, found, "a recreated generation starts empty")
	})

	t.Run("concurrent puts", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		g, _ := s.Open(ctx, "v1")

		paths := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h"}
		var wg sync.WaitGroup
		for _, p := range paths {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				assert.NoError(t, g.Put(ctx, req(p), resp(p)))
			}(p)
		}
		wg.Wait()

		entries, err := g.Entries(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, len(paths))
	})
}
