// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// no-cloc
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/docsite/internal/container"
	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
	"github.com/staranto/docsite/internal/store/file"
)

var scope, _ = url.Parse("https://docs.example.com/")

// origin is a fake site. Paths it does not know answer 404.
type origin struct {
	mu      sync.Mutex
	pages   map[string]string
	down    bool
	calls   map[string]int
	failing string
}

func newOrigin(release string) *origin {
	o := &origin{pages: map[string]string{}, calls: map[string]int{}}
	for _, p := range DefaultResources {
		o.pages[p] = release + ":" + p
	}
	o.pages["/topics/go.html"] = release + ":go"
	return o
}

func (o *origin) Fetch(_ context.Context, req *fetch.Request) (*fetch.Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[req.URL.Path]++
	if o.down || req.URL.Path == o.failing {
		return nil, fmt.Errorf("%w: %s: connection refused", fetch.ErrNetwork, req.URL)
	}
	body, ok := o.pages[req.URL.Path]
	if !ok {
		return fetch.NewResponse(http.StatusNotFound, nil, []byte("not found")), nil
	}
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	return fetch.NewResponse(http.StatusOK, h, []byte(body)), nil
}

func (o *origin) setDown(down bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.down = down
}

func (o *origin) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		n += c
	}
	return n
}

type site struct {
	origin  *origin
	storage *store.Memory
	host    *container.Container
}

func newSite(t *testing.T) *site {
	t.Helper()
	o := newOrigin("r1")
	return &site{origin: o, storage: store.NewMemory(), host: container.New(o)}
}

func (s *site) install(t *testing.T, version string) *Manager {
	t.Helper()
	m, err := New(Config{Version: version, Scope: scope}, s.storage, s.origin)
	require.NoError(t, err)
	_, err = s.host.Register(context.Background(), m)
	require.NoError(t, err)
	return m
}

func (s *site) get(t *testing.T, path string, navigate bool) *fetch.Response {
	t.Helper()
	req := fetch.MustRequest(http.MethodGet, scope, path)
	req.ClientID = "page-1"
	if navigate {
		req.Mode = fetch.ModeNavigate
	} else {
		s.host.Connect("page-1")
	}
	resp, err := s.host.Fetch(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func text(t *testing.T, resp *fetch.Response) string {
	t.Helper()
	b, err := resp.Bytes()
	require.NoError(t, err)
	return string(b)
}

func TestInstallCachesResourceList(t *testing.T) {
	s := newSite(t)
	m := s.install(t, "v1")

	s.origin.setDown(true)
	before := s.origin.total()
	for _, u := range m.Resources() {
		resp := s.get(t, u.Path, false)
		assert.Equal(t, http.StatusOK, resp.Status, u)
		assert.Equal(t, SourceHit, resp.Header.Get(HeaderSource), u)
		assert.Equal(t, "r1:"+u.Path, text(t, resp))
	}
	assert.Equal(t, before, s.origin.total(), "hits must not touch the network")
}

func TestActivateLeavesOneGeneration(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	for _, stale := range []string{"v0.9", "scratch"} {
		_, err := s.storage.Open(ctx, stale)
		require.NoError(t, err)
	}

	s.install(t, "v1")

	keys, err := s.storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, keys)
}

func TestMissThenHitIsByteIdentical(t *testing.T) {
	s := newSite(t)
	s.install(t, "v1")

	first := s.get(t, "/topics/go.html", false)
	assert.Equal(t, SourceMiss, first.Header.Get(HeaderSource))
	firstBody := text(t, first)

	s.origin.pages["/topics/go.html"] = "changed upstream"
	second := s.get(t, "/topics/go.html", false)
	assert.Equal(t, SourceHit, second.Header.Get(HeaderSource))
	assert.Equal(t, firstBody, text(t, second))
	assert.Equal(t, 1, s.origin.calls["/topics/go.html"])
}

func TestMissWithErrorStatusIsNotCached(t *testing.T) {
	s := newSite(t)
	s.install(t, "v1")

	resp := s.get(t, "/missing.html", false)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	s.get(t, "/missing.html", false)
	assert.Equal(t, 2, s.origin.calls["/missing.html"])
}

func TestOfflineNavigationGetsRootDocument(t *testing.T) {
	s := newSite(t)
	s.install(t, "v1")
	s.origin.setDown(true)

	resp := s.get(t, "/topics/unknown.html", true)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, SourceOffline, resp.Header.Get(HeaderSource))
	assert.Equal(t, "r1:/", text(t, resp))
}

func TestOfflineResourceGetsFallbackText(t *testing.T) {
	s := newSite(t)
	s.install(t, "v1")
	s.origin.setDown(true)

	resp := s.get(t, "/assets/fonts/mono.woff2", false)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "Offline page goes here", text(t, resp))

	gen, err := s.storage.Open(context.Background(), "v1")
	require.NoError(t, err)
	_, ok, err := gen.Match(context.Background(), fetch.MustRequest(http.MethodGet, scope, "/assets/fonts/mono.woff2"))
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := gen.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, len(DefaultResources))
}

func TestOfflineNavigationWithoutRootGetsFallbackText(t *testing.T) {
	o := newOrigin("r1")
	o.down = true
	m, err := New(Config{Version: "v1", Scope: scope, FallbackBody: "offline"}, store.NewMemory(), o)
	require.NoError(t, err)

	req := fetch.MustRequest(http.MethodGet, scope, "/")
	req.Mode = fetch.ModeNavigate
	resp, err := m.Respond(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, "offline", text(t, resp))
}

func TestVersionBumpRemovesPreviousEntries(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	s.install(t, "v1")
	s.get(t, "/topics/go.html", false)

	s.origin = newOrigin("r2")
	m, err := New(Config{Version: "v2", Scope: scope}, s.storage, s.origin)
	require.NoError(t, err)
	inst, err := s.host.Register(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, container.StateActivated, inst.State())

	keys, err := s.storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, keys)

	has, err := s.storage.Has(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, has)

	resp := s.get(t, "/", false)
	assert.Equal(t, "r2:/", text(t, resp))
}

func TestInstallFailureIsAtomic(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	s.install(t, "v1")

	s.origin.failing = "/assets/images/goofy512x512.png"
	m, err := New(Config{Version: "v2", Scope: scope}, s.storage, s.origin)
	require.NoError(t, err)
	_, err = s.host.Register(ctx, m)
	require.ErrorIs(t, err, container.ErrInstall)
	require.ErrorIs(t, err, fetch.ErrNetwork)

	var ie *InstallError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "https://docs.example.com/assets/images/goofy512x512.png", ie.URL)

	keys, err := s.storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, keys)
	assert.Equal(t, "v1", s.host.Active().Version)
}

func TestInstallRejectsErrorStatus(t *testing.T) {
	o := newOrigin("r1")
	storage := store.NewMemory()
	m, err := New(Config{Version: "v1", Scope: scope, Resources: []string{"/", "/nope"}}, storage, o)
	require.NoError(t, err)

	err = m.Precache(context.Background())
	require.ErrorIs(t, err, ErrBadStatus)
	has, err := storage.Has(context.Background(), "v1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestNonGetIsNotIntercepted(t *testing.T) {
	s := newSite(t)
	s.install(t, "v1")
	s.host.Connect("page-1")

	req := fetch.MustRequest(http.MethodPost, scope, "/")
	req.ClientID = "page-1"
	resp, err := s.host.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get(HeaderSource))
}

func TestInstalled(t *testing.T) {
	s := newSite(t)
	m, err := New(Config{Version: "v1", Scope: scope}, s.storage, s.origin)
	require.NoError(t, err)

	ok, err := m.Installed(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Precache(context.Background()))
	ok, err = m.Installed(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleInstanceDoesNotRecreateGeneration(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	m1 := s.install(t, "v1")
	s.install(t, "v2")

	resp, err := m1.Respond(ctx, fetch.MustRequest(http.MethodGet, scope, "/topics/go.html"))
	require.NoError(t, err)
	assert.Equal(t, SourceMiss, resp.Header.Get(HeaderSource))
	assert.Equal(t, "r1:go", text(t, resp))

	keys, err := s.storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, keys)
}

func TestPurgedGenerationIsReinstalled(t *testing.T) {
	ctx := context.Background()
	o := newOrigin("r1")
	st, err := file.New(t.TempDir())
	require.NoError(t, err)
	regs := &container.MemoryRegistrations{}

	m, err := New(Config{Version: "v1", Scope: scope}, st, o)
	require.NoError(t, err)
	_, err = container.New(o, container.WithRegistrations(regs)).Register(ctx, m)
	require.NoError(t, err)

	_, err = st.Delete(ctx, "v1")
	require.NoError(t, err)
	_, err = m.Respond(ctx, fetch.MustRequest(http.MethodGet, scope, "/topics/go.html"))
	require.NoError(t, err)
	ok, err := st.Has(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, ok)

	before := o.total()
	host := container.New(o, container.WithRegistrations(regs))
	_, err = host.Register(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultResources), o.total()-before)

	o.setDown(true)
	req := fetch.MustRequest(http.MethodGet, scope, "/topics/unknown.html")
	req.Mode = fetch.ModeNavigate
	resp, err := host.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "r1:/", text(t, resp))
}

// failingPuts refuses to store one path.
type failingPuts struct {
	store.Storage
	path string
}

func (f failingPuts) Open(ctx context.Context, name string) (store.Generation, error) {
	g, err := f.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return failingGeneration{Generation: g, path: f.path}, nil
}

type failingGeneration struct {
	store.Generation
	path string
}

func (g failingGeneration) Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error {
	if req.URL.Path == g.path {
		return errors.New("disk full")
	}
	return g.Generation.Put(ctx, req, resp)
}

func TestPrecacheStoreFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("new generation is removed", func(t *testing.T) {
		mem := store.NewMemory()
		m, err := New(Config{Version: "v1", Scope: scope}, failingPuts{Storage: mem, path: "/assets/js/main.js"}, newOrigin("r1"))
		require.NoError(t, err)

		var ie *InstallError
		require.ErrorAs(t, m.Precache(ctx), &ie)
		assert.Equal(t, "https://docs.example.com/assets/js/main.js", ie.URL)
		ok, err := mem.Has(ctx, "v1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("existing generation keeps what was written", func(t *testing.T) {
		mem := store.NewMemory()
		_, err := mem.Open(ctx, "v1")
		require.NoError(t, err)
		m, err := New(Config{Version: "v1", Scope: scope}, failingPuts{Storage: mem, path: "/assets/js/main.js"}, newOrigin("r1"))
		require.NoError(t, err)

		require.Error(t, m.Precache(ctx))
		gen, err := mem.Lookup(ctx, "v1")
		require.NoError(t, err)
		entries, err := gen.Entries(ctx)
		require.NoError(t, err)
		// "/", "/index.html" and the stylesheet precede the failing script.
		assert.Len(t, entries, 3)
	})
}

func TestResolveResources(t *testing.T) {
	cfg := Config{Scope: scope, Resources: []string{"/", "index.html", "/index.html#top", "", "https://cdn.example.com/x.js"}}
	got, err := cfg.resolve()
	require.NoError(t, err)

	var urls []string
	for _, u := range got {
		urls = append(urls, u.String())
	}
	assert.Equal(t, []string{
		"https://docs.example.com/",
		"https://docs.example.com/index.html",
		"https://cdn.example.com/x.js",
	}, urls)

	_, err = Config{Resources: []string{"/"}}.resolve()
	assert.Error(t, err)
}

func TestManifestResources(t *testing.T) {
	raw := []byte(`{
		"name": "docs",
		"start_url": "/index.html",
		"icons": [
			{"src": "/assets/images/goofy72x72.png", "sizes": "72x72"},
			{"src": "/assets/images/goofy512x512.png", "sizes": "512x512"}
		]
	}`)
	got, err := ManifestResources(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"/index.html", "/assets/images/goofy72x72.png", "/assets/images/goofy512x512.png"}, got)

	_, err = ManifestResources([]byte("{"))
	assert.Error(t, err)
}
