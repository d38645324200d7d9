// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/apex/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/staranto/docsite/internal/container"
	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
)

// HeaderSource tells where a response came from.
const HeaderSource = "X-Docsite-Cache"

// Values of HeaderSource.
const (
	SourceHit     = "hit"
	SourceMiss    = "miss"
	SourceOffline = "offline"
)

// ErrBadStatus is the cause of an InstallError for a resource the origin
// answered with a non-2xx status.
var ErrBadStatus = errors.New("unexpected status")

// InstallError reports the resource that kept a generation from being
// populated.
type InstallError struct {
	URL string
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to precache %s: %v", e.URL, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Manager is the worker script. It satisfies container.Script and
// container.Restorable.
type Manager struct {
	cfg       Config
	resources []*url.URL
	storage   store.Storage
	network   fetch.Fetcher
}

var (
	_ container.Script     = (*Manager)(nil)
	_ container.Restorable = (*Manager)(nil)
)

// New returns a Manager caching into storage and fetching misses from
// network.
func New(cfg Config, storage store.Storage, network fetch.Fetcher) (*Manager, error) {
	cfg = cfg.withDefaults()
	resources, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, resources: resources, storage: storage, network: network}, nil
}

// Version implements container.Script.
func (m *Manager) Version() string {
	return m.cfg.Version
}

// Resources returns the resolved resource list.
func (m *Manager) Resources() []*url.URL {
	return m.resources
}

// Installed implements container.Restorable. The generation is the only
// state a previous install leaves behind.
func (m *Manager) Installed(ctx context.Context) (bool, error) {
	return m.storage.Has(ctx, m.cfg.Version)
}

// Install implements container.Script.
func (m *Manager) Install(e *container.InstallEvent) {
	e.WaitUntil(func(ctx context.Context) error {
		if err := m.Precache(ctx); err != nil {
			return err
		}
		e.SkipWaiting()
		return nil
	})
}

// Precache fetches every resource and stores them all in the current
// generation. Nothing is stored unless every fetch succeeded. When storing
// fails partway, a generation this call created is removed; an existing
// generation keeps whatever was already written.
func (m *Manager) Precache(ctx context.Context) error {
	existed, err := m.storage.Has(ctx, m.cfg.Version)
	if err != nil {
		return err
	}

	gen, err := m.storage.Open(ctx, m.cfg.Version)
	if err != nil {
		return fmt.Errorf("failed to open generation %s: %w", m.cfg.Version, err)
	}

	err = m.precache(ctx, gen)
	if err != nil && !existed {
		if _, derr := m.storage.Delete(context.WithoutCancel(ctx), m.cfg.Version); derr != nil {
			log.WithError(derr).WithField("generation", m.cfg.Version).Error("failed to remove incomplete generation")
		}
	}
	return err
}

func (m *Manager) precache(ctx context.Context, gen store.Generation) error {
	reqs := make([]*fetch.Request, len(m.resources))
	resps := make([]*fetch.Response, len(m.resources))

	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(m.cfg.Concurrency)
	for i, u := range m.resources {
		reqs[i] = &fetch.Request{Method: http.MethodGet, URL: u, Header: http.Header{}}
		p.Go(func(ctx context.Context) error {
			resp, err := m.network.Fetch(ctx, reqs[i])
			if err != nil {
				return &InstallError{URL: u.String(), Err: err}
			}
			if !resp.OK() {
				return &InstallError{URL: u.String(), Err: fmt.Errorf("%w %d", ErrBadStatus, resp.Status)}
			}
			resps[i] = resp
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	for i, req := range reqs {
		if err := gen.Put(ctx, req, resps[i]); err != nil {
			return &InstallError{URL: req.URL.String(), Err: err}
		}
	}
	log.WithField("generation", gen.Name()).Infof("precached %d resources", len(reqs))
	return nil
}

// Activate implements container.Script.
func (m *Manager) Activate(e *container.ActivateEvent) {
	e.WaitUntil(func(ctx context.Context) error {
		if _, err := m.Prune(ctx); err != nil {
			return err
		}
		e.Claim()
		return nil
	})
}

// Prune deletes every generation but the current one and returns the
// names it removed.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	names, err := m.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	removed := []string{}
	var errs []error
	for _, name := range names {
		if name == m.cfg.Version {
			continue
		}
		if _, err := m.storage.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete generation %s: %w", name, err))
			continue
		}
		log.WithField("generation", name).Info("deleted stale generation")
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

// Fetch implements container.Script. Only GET requests are answered;
// everything else goes to the network untouched.
func (m *Manager) Fetch(e *container.FetchEvent) {
	if e.Request.Method != http.MethodGet {
		return
	}
	req := e.Request
	e.RespondWith(func(ctx context.Context) (*fetch.Response, error) {
		return m.Respond(ctx, req)
	})
}

// Respond answers req from the current generation, then the network, then
// the offline fallbacks. It never returns a network error. A generation
// that no longer exists is not recreated: the request is a miss and the
// response is not stored.
func (m *Manager) Respond(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	logger := log.WithFields(log.Fields{"generation": m.cfg.Version, "request": req.Key()})

	gen, err := m.storage.Lookup(ctx, m.cfg.Version)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug("generation gone")
		} else {
			logger.WithError(err).Error("cache storage error")
		}
		gen = nil
	} else if resp, ok, err := gen.Match(ctx, req); err != nil {
		logger.WithError(err).Error("cache storage error")
	} else if ok {
		logger.Debug("hit")
		return mark(resp, SourceHit), nil
	}

	resp, err := m.network.Fetch(ctx, req)
	if err == nil {
		if gen != nil && cacheable(resp) {
			m.store(ctx, logger, gen, req, resp)
		}
		logger.Debugf("miss -> %d", resp.Status)
		return mark(resp, SourceMiss), nil
	}
	if !errors.Is(err, fetch.ErrNetwork) {
		return nil, err
	}

	logger.WithError(err).Warn("network unavailable")
	if req.IsNavigation() && gen != nil {
		if doc, ok := m.fallbackDocument(ctx, gen, req); ok {
			return mark(doc, SourceOffline), nil
		}
	}
	return mark(fetch.Offline(m.cfg.FallbackBody), SourceOffline), nil
}

func (m *Manager) store(ctx context.Context, logger log.Interface, gen store.Generation, req *fetch.Request, resp *fetch.Response) {
	clone, err := resp.Clone()
	if err != nil {
		logger.WithError(err).Error("cache storage error")
		return
	}
	if err := gen.Put(ctx, req, clone); err != nil {
		logger.WithError(err).Error("cache storage error")
	}
}

func (m *Manager) fallbackDocument(ctx context.Context, gen store.Generation, req *fetch.Request) (*fetch.Response, bool) {
	ref, err := url.Parse(m.cfg.FallbackNavigation)
	if err != nil {
		return nil, false
	}
	base := req.URL
	if m.cfg.Scope != nil {
		base = m.cfg.Scope
	}
	doc := req.WithURL(base.ResolveReference(ref))
	doc.Method = http.MethodGet
	resp, ok, err := gen.Match(ctx, doc)
	if err != nil {
		log.WithError(err).WithField("request", doc.Key()).Error("cache storage error")
		return nil, false
	}
	return resp, ok
}

func cacheable(resp *fetch.Response) bool {
	return resp.Status == http.StatusOK
}

func mark(resp *fetch.Response, source string) *fetch.Response {
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.Header.Set(HeaderSource, source)
	return resp
}
